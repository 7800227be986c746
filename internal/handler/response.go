package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/logger"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/internal/service"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

const maxBodySize = 64 << 10

// errorResponse is the body of every error reply. Code is set for rule violations.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

// statusFor maps a rule violation category to an HTTP status.
func statusFor(kind supergame.ErrorKind) int {
	switch kind {
	case supergame.KindAuthorization:
		return http.StatusForbidden
	case supergame.KindBounds:
		return http.StatusBadRequest
	case supergame.KindResource:
		return http.StatusUnprocessableEntity
	case supergame.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError translates a service or rules error into a response. Unexpected errors are
// logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case errors.Is(err, service.ErrInvalidTurnTimeLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrTooManyActiveGames):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "too_many_active_games"})
	case supergame.KindOf(err) != 0:
		writeJSON(w, statusFor(supergame.KindOf(err)), errorResponse{Error: err.Error(), Code: supergame.CodeOf(err)})
	default:
		l := logger.ForRequest(r.Context())
		l.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
