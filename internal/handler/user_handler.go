package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/internal/service"
)

const maxDisplayName = 32

// UserHandler handles user and profile endpoints.
type UserHandler struct {
	userRepo repository.UserRepository
	gameSvc  *service.GameService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userRepo repository.UserRepository, gameSvc *service.GameService) *UserHandler {
	return &UserHandler{userRepo: userRepo, gameSvc: gameSvc}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, auth.UserIDFromContext(r.Context()))
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		writeError(w, http.StatusBadRequest, "display_name is too long")
		return
	}

	if err := h.userRepo.UpdateDisplayName(r.Context(), userID, name); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeUser(w, r, userID)
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, r.PathValue("id"))
}

// GetProfile handles GET /api/v1/users/me/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.gameSvc.GetProfile(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.userRepo.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
