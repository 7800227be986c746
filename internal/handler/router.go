package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/metrics"
	"github.com/lunar-flights/super-game/internal/middleware"
)

// Handlers groups the endpoint handlers served by NewRouter.
type Handlers struct {
	Auth   *AuthHandler
	User   *UserHandler
	Game   *GameHandler
	WS     *WSHandler
	Health http.Handler

	Metrics *metrics.Recorder // optional
}

// NewRouter builds the HTTP handler: public auth and health routes, and the JWT protected API
// under /api/v1.
func NewRouter(h Handlers, jwtMgr *auth.JWTManager, allowedOrigins string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", h.Health)

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", h.Auth.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.Auth.GoogleCallback)
	mux.HandleFunc("POST /auth/refresh", h.Auth.RefreshToken)
	mux.HandleFunc("GET /auth/dev", h.Auth.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", h.User.GetMe)
	api.HandleFunc("PATCH /users/me", h.User.UpdateMe)
	api.HandleFunc("GET /users/me/profile", h.User.GetProfile)
	api.HandleFunc("GET /users/{id}", h.User.GetUser)
	api.HandleFunc("POST /games", h.Game.CreateGame)
	api.HandleFunc("GET /games", h.Game.ListGames)
	api.HandleFunc("GET /games/{id}", h.Game.GetGame)
	api.HandleFunc("GET /games/{id}/state", h.Game.GetState)
	api.HandleFunc("POST /games/{id}/join", h.Game.JoinGame)
	api.HandleFunc("POST /games/{id}/move", h.Game.Move)
	api.HandleFunc("POST /games/{id}/recruit", h.Game.Recruit)
	api.HandleFunc("POST /games/{id}/build", h.Game.Build)
	api.HandleFunc("POST /games/{id}/end-turn", h.Game.EndTurn)
	// WebSocket clients pass the access token as ?token=
	api.HandleFunc("GET /ws", h.WS.ServeWS)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(api)))

	return middleware.Chain(mux,
		middleware.Logger,
		middleware.Recover,
		middleware.Metrics(h.Metrics),
		middleware.CORS(allowedOrigins),
		middleware.JSON,
	)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health reports ok, or 503 with the failing dependencies.
func Health(checks ...HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				failed[c.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
