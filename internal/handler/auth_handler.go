package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/repository"
)

const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// AuthHandler handles OAuth2 login flows and token refresh.
type AuthHandler struct {
	google   *auth.OAuthProvider
	jwtMgr   *auth.JWTManager
	userRepo repository.UserRepository
	devMode  bool
}

// NewAuthHandler creates an AuthHandler. Dev logins are only served when devMode is set.
func NewAuthHandler(google *auth.OAuthProvider, jwtMgr *auth.JWTManager, userRepo repository.UserRepository, devMode bool) *AuthHandler {
	return &AuthHandler{google: google, jwtMgr: jwtMgr, userRepo: userRepo, devMode: devMode}
}

// GoogleLogin redirects to Google's OAuth2 consent screen. The state is kept in a short-lived
// cookie and checked on the callback.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || !h.google.Enabled() {
		writeError(w, http.StatusNotFound, "google login is not configured")
		return
	}
	state := randomState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback handles the OAuth2 callback from Google.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || !h.google.Enabled() {
		writeError(w, http.StatusNotFound, "google login is not configured")
		return
	}
	cookie, err := r.Cookie(stateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	info, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		log.Warn().Err(err).Str("provider", h.google.Name()).Msg("OAuth exchange failed")
		writeError(w, http.StatusUnauthorized, "oauth exchange failed")
		return
	}

	user, err := h.userRepo.Upsert(r.Context(), h.google.Name(), info.ID, info.Name, info.Picture)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upsert Google user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	h.writeTokens(w, user.ID)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.jwtMgr.ValidateToken(req.RefreshToken, auth.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	h.writeTokens(w, claims.UserID)
}

// DevLogin creates or upserts a test user and returns a JWT token pair.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devMode {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name parameter")
		return
	}

	user, err := h.userRepo.Upsert(r.Context(), "dev", fmt.Sprintf("dev-%s", name), name, "")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to upsert dev user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	h.writeTokens(w, user.ID)
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, userID string) {
	tokens, err := h.jwtMgr.GenerateTokenPair(userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to generate tokens")
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func randomState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
