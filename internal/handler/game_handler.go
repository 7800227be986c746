package handler

import (
	"net/http"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/logger"
	"github.com/lunar-flights/super-game/internal/service"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

// GameHandler handles game lifecycle and in-game action endpoints.
type GameHandler struct {
	gameSvc *service.GameService
	turnSvc *service.TurnService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService, turnSvc *service.TurnService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc, turnSvc: turnSvc}
}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		MaxPlayers    int    `json:"max_players"`
		Multiplayer   bool   `json:"multiplayer"`
		MapSize       string `json:"map_size,omitempty"`
		TurnTimeLimit string `json:"turn_time_limit,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	game, err := h.gameSvc.CreateGame(r.Context(), userID, req.MaxPlayers, req.Multiplayer, req.MapSize, req.TurnTimeLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	l := logger.ForGame(r.Context(), game.ID, userID)
	l.Info().Int("maxPlayers", game.MaxPlayers).Bool("multiplayer", game.Multiplayer).Msg("Game created")
	writeJSON(w, http.StatusCreated, game)
}

// ListGames handles GET /api/v1/games?filter=my|active|finished. Without a filter, open lobbies
// are listed.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	games, err := h.gameSvc.ListGames(r.Context(), userID, r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.gameSvc.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// GetState handles GET /api/v1/games/{id}/state
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	gs, err := h.gameSvc.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// JoinGame handles POST /api/v1/games/{id}/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.gameSvc.JoinGame(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// Move handles POST /api/v1/games/{id}/move
func (h *GameHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From supergame.Coord `json:"from"`
		To   supergame.Coord `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.turnSvc.MoveUnit(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.From, req.To)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Recruit handles POST /api/v1/games/{id}/recruit
func (h *GameHandler) Recruit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitType string          `json:"unit_type"`
		Quantity uint16          `json:"quantity"`
		At       supergame.Coord `json:"at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.turnSvc.RecruitUnits(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.UnitType, req.Quantity, req.At)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Build handles POST /api/v1/games/{id}/build
func (h *GameHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildingType string          `json:"building_type"`
		At           supergame.Coord `json:"at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.turnSvc.BuildConstruction(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.At, req.BuildingType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// EndTurn handles POST /api/v1/games/{id}/end-turn
func (h *GameHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	report, err := h.turnSvc.EndTurn(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
