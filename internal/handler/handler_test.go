package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/bot"
	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository/gormstore"
	"github.com/lunar-flights/super-game/internal/repository/memory"
	"github.com/lunar-flights/super-game/internal/service"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

// testApp runs the real services on the embedded store behind the full router.
type testApp struct {
	srv     *httptest.Server
	hub     *Hub
	jwtMgr  *auth.JWTManager
	users   *gormstore.UserRepo
	gameSvc *service.GameService
	turnSvc *service.TurnService
	handler Handlers
}

func newTestApp(t *testing.T, devMode bool) *testApp {
	t.Helper()
	db, err := gormstore.Open(gormstore.MemoryDSN)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := gormstore.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := gormstore.NewUserRepo(db)
	profiles := gormstore.NewProfileRepo(db)
	store := service.NewStore(gormstore.NewGameRepo(db), memory.NewCache())

	hub := NewHub()
	gameSvc := service.NewGameService(store, users, profiles, hub, nil)
	turnSvc := service.NewTurnService(store, profiles, bot.PolicyForDifficulty("passive"), hub, nil)
	jwtMgr := auth.NewJWTManager("test-secret")

	h := Handlers{
		Auth:   NewAuthHandler(auth.NewGoogleOAuth("", "", ""), jwtMgr, users, devMode),
		User:   NewUserHandler(users, gameSvc),
		Game:   NewGameHandler(gameSvc, turnSvc),
		WS:     NewWSHandler(hub, "*"),
		Health: Health(),
	}
	srv := httptest.NewServer(NewRouter(h, jwtMgr, "*"))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, hub: hub, jwtMgr: jwtMgr, users: users, gameSvc: gameSvc, turnSvc: turnSvc, handler: h}
}

// login signs a user in through the dev endpoint and returns the user and an access token.
func (a *testApp) login(t *testing.T, name string) (*model.User, string) {
	t.Helper()
	resp := a.do(t, http.MethodGet, "/auth/dev?name="+url.QueryEscape(name), "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dev login: expected 200, got %d", resp.StatusCode)
	}
	var tokens auth.TokenPair
	decodeBody(t, resp, &tokens)

	claims, err := a.jwtMgr.ValidateToken(tokens.AccessToken, auth.AccessToken)
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	user, err := a.users.FindByID(context.Background(), claims.UserID)
	if err != nil || user == nil {
		t.Fatalf("user %s not stored: %v", name, err)
	}
	return user, tokens.AccessToken
}

func (a *testApp) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func reqWithUserID(method, path string, body string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

// --- User Handler Tests ---

func TestGetMe(t *testing.T) {
	app := newTestApp(t, true)
	alice, token := app.login(t, "alice")

	resp := app.do(t, http.MethodGet, "/api/v1/users/me", token, "")
	expectStatus(t, resp, http.StatusOK)
	var user model.User
	decodeBody(t, resp, &user)
	if user.ID != alice.ID || user.DisplayName != "alice" {
		t.Errorf("expected alice, got %+v", user)
	}
}

func TestGetMeNotFound(t *testing.T) {
	app := newTestApp(t, false)

	req := reqWithUserID(http.MethodGet, "/users/me", "", "00000000-0000-0000-0000-000000000000")
	rec := httptest.NewRecorder()
	app.handler.User.GetMe(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	resp := app.do(t, http.MethodPatch, "/api/v1/users/me", token, `{"display_name":"  Bob "}`)
	expectStatus(t, resp, http.StatusOK)
	var user model.User
	decodeBody(t, resp, &user)
	if user.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %s", user.DisplayName)
	}
}

func TestUpdateMeRejectsBadNames(t *testing.T) {
	app := newTestApp(t, false)
	for name, body := range map[string]string{
		"empty":    `{"display_name":" "}`,
		"too long": fmt.Sprintf(`{"display_name":%q}`, strings.Repeat("x", maxDisplayName+1)),
		"not json": "not json",
	} {
		t.Run(name, func(t *testing.T) {
			req := reqWithUserID(http.MethodPatch, "/users/me", body, "user-1")
			rec := httptest.NewRecorder()
			app.handler.User.UpdateMe(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestGetProfileOfNewPlayer(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	resp := app.do(t, http.MethodGet, "/api/v1/users/me/profile", token, "")
	expectStatus(t, resp, http.StatusOK)
	var p model.Profile
	decodeBody(t, resp, &p)
	if p.Experience != 0 || len(p.ActiveGames) != 0 {
		t.Errorf("expected an empty profile, got %+v", p)
	}
}

// --- Game Handler Tests ---

func TestCreateGameValidation(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	tests := []struct {
		body     string
		wantCode int
		wantErr  string
	}{
		{`{"max_players":5}`, http.StatusBadRequest, "invalid_player_count"},
		{`{"max_players":2,"map_size":"huge"}`, http.StatusBadRequest, "invalid_map_size"},
		{`{"max_players":2,"turn_time_limit":"soon"}`, http.StatusBadRequest, ""},
		{`not json`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		resp := app.do(t, http.MethodPost, "/api/v1/games", token, tt.body)
		expectStatus(t, resp, tt.wantCode)
		var body errorResponse
		decodeBody(t, resp, &body)
		if body.Code != tt.wantErr {
			t.Errorf("%s: expected code %q, got %q", tt.body, tt.wantErr, body.Code)
		}
	}
}

func TestGetGameNotFound(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	resp := app.do(t, http.MethodGet, "/api/v1/games/00000000-0000-0000-0000-000000000000", token, "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestListGamesEmpty(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	resp := app.do(t, http.MethodGet, "/api/v1/games?filter=finished", token, "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestSinglePlayerGameFlow(t *testing.T) {
	app := newTestApp(t, true)
	alice, token := app.login(t, "alice")
	_, bobToken := app.login(t, "bob")

	resp := app.do(t, http.MethodPost, "/api/v1/games", token, `{"max_players":2,"turn_time_limit":"1h"}`)
	expectStatus(t, resp, http.StatusCreated)
	var game model.Game
	decodeBody(t, resp, &game)
	if game.Status != "live" || game.CurrentPlayer != alice.ID || len(game.Players) != 2 {
		t.Fatalf("expected a live game on alice's turn, got %+v", game)
	}
	base := supergame.Small.BasePositions()[0]

	resp = app.do(t, http.MethodGet, "/api/v1/games/"+game.ID+"/state", token, "")
	expectStatus(t, resp, http.StatusOK)
	raw, _ := io.ReadAll(resp.Body)
	gs, err := supergame.Unmarshal(raw)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if tile, _ := gs.Grid.Tile(base); tile.Owner != supergame.PlayerID(alice.ID) {
		t.Fatalf("expected alice to own %v, got %q", base, tile.Owner)
	}

	recruit := fmt.Sprintf(`{"unit_type":"infantry","quantity":2,"at":{"row":%d,"col":%d}}`, base.Row, base.Col)
	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/recruit", bobToken, recruit)
	expectStatus(t, resp, http.StatusForbidden)

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/recruit", token, recruit)
	expectStatus(t, resp, http.StatusNoContent)

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/recruit", token,
		fmt.Sprintf(`{"unit_type":"infantry","quantity":500,"at":{"row":%d,"col":%d}}`, base.Row, base.Col))
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/move", token, `{"from":{"row":-1,"col":0},"to":{"row":0,"col":0}}`)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/end-turn", token, "")
	expectStatus(t, resp, http.StatusOK)
	var report supergame.TurnReport
	decodeBody(t, resp, &report)
	if report.Completed || report.NextPlayer != supergame.PlayerID(alice.ID) {
		t.Errorf("expected the turn to come back to alice, got %+v", report)
	}

	resp = app.do(t, http.MethodGet, "/api/v1/games?filter=my", token, "")
	expectStatus(t, resp, http.StatusOK)
	var mine []model.Game
	decodeBody(t, resp, &mine)
	if len(mine) != 1 || mine[0].ID != game.ID {
		t.Errorf("expected alice's game in her list, got %+v", mine)
	}

	resp = app.do(t, http.MethodGet, "/api/v1/users/me/profile", token, "")
	expectStatus(t, resp, http.StatusOK)
	var p model.Profile
	decodeBody(t, resp, &p)
	if len(p.ActiveGames) != 1 || p.ActiveGames[0] != game.ID {
		t.Errorf("expected one active game, got %+v", p)
	}
}

func TestJoinMultiplayerLobby(t *testing.T) {
	app := newTestApp(t, true)
	alice, token := app.login(t, "alice")
	bob, bobToken := app.login(t, "bob")

	resp := app.do(t, http.MethodPost, "/api/v1/games", token, `{"max_players":2,"multiplayer":true}`)
	expectStatus(t, resp, http.StatusCreated)
	var game model.Game
	decodeBody(t, resp, &game)

	resp = app.do(t, http.MethodGet, "/api/v1/games", bobToken, "")
	expectStatus(t, resp, http.StatusOK)
	var open []model.Game
	decodeBody(t, resp, &open)
	if len(open) != 1 || open[0].ID != game.ID {
		t.Fatalf("expected the lobby to be listed, got %+v", open)
	}

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/join", bobToken, "")
	expectStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &game)
	if game.Status != "live" || game.CurrentPlayer != alice.ID || game.Players[1].UserID != bob.ID {
		t.Errorf("expected a live game with bob seated, got %+v", game)
	}

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/join", bobToken, "")
	expectStatus(t, resp, http.StatusConflict)
}

func TestAPIRequiresToken(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodGet, "/api/v1/games", "", "")
	expectStatus(t, resp, http.StatusUnauthorized)

	refresh, _ := app.jwtMgr.GenerateRefreshToken("user-1")
	resp = app.do(t, http.MethodGet, "/api/v1/games", refresh, "")
	expectStatus(t, resp, http.StatusUnauthorized)
}

// --- Auth Handler Tests ---

func TestDevLoginDisabled(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodGet, "/auth/dev?name=alice", "", "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRefreshTokenValid(t *testing.T) {
	app := newTestApp(t, false)

	refresh, _ := app.jwtMgr.GenerateRefreshToken("user-1")
	resp := app.do(t, http.MethodPost, "/auth/refresh", "", fmt.Sprintf(`{"refresh_token":"%s"}`, refresh))
	expectStatus(t, resp, http.StatusOK)
	var tokens auth.TokenPair
	decodeBody(t, resp, &tokens)
	if tokens.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
}

func TestRefreshTokenRejectsAccessTokens(t *testing.T) {
	app := newTestApp(t, false)

	access, _ := app.jwtMgr.GenerateAccessToken("user-1")
	for _, body := range []string{fmt.Sprintf(`{"refresh_token":"%s"}`, access), `{"refresh_token":"invalid"}`} {
		resp := app.do(t, http.MethodPost, "/auth/refresh", "", body)
		expectStatus(t, resp, http.StatusUnauthorized)
	}

	resp := app.do(t, http.MethodPost, "/auth/refresh", "", "not json")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodGet, "/auth/google/login", "", "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestGoogleLoginSetsStateCookie(t *testing.T) {
	h := NewAuthHandler(auth.NewGoogleOAuth("client", "secret", "http://localhost/auth/google/callback"), auth.NewJWTManager("s"), nil, false)

	rec := httptest.NewRecorder()
	h.GoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", rec.Code)
	}
	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("expected a state cookie")
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil || loc.Query().Get("state") != state {
		t.Errorf("expected the redirect to carry state %s, got %s", state, rec.Header().Get("Location"))
	}
}

func TestGoogleCallbackRejectsStateMismatch(t *testing.T) {
	h := NewAuthHandler(auth.NewGoogleOAuth("client", "secret", "http://localhost/auth/google/callback"), auth.NewJWTManager("s"), nil, false)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "expected"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(HealthCheck{Name: "store", Check: func(context.Context) error { return nil }}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Health(HealthCheck{Name: "cache", Check: func(context.Context) error { return errors.New("down") }}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"cache":"down"`) {
		t.Errorf("expected 503 naming the cache, got %d: %s", rec.Code, rec.Body.String())
	}
}

// --- WebSocket ---

func TestWebSocketReceivesGameEvents(t *testing.T) {
	app := newTestApp(t, true)
	_, token := app.login(t, "alice")

	resp := app.do(t, http.MethodPost, "/api/v1/games", token, `{"max_players":2}`)
	expectStatus(t, resp, http.StatusCreated)
	var game model.Game
	decodeBody(t, resp, &game)

	wsURL := "ws" + strings.TrimPrefix(app.srv.URL, "http") + "/api/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var event WSEvent
	if err := conn.ReadJSON(&event); err != nil || event.Type != EventConnected {
		t.Fatalf("expected a connected event, got %+v (%v)", event, err)
	}

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, GameID: game.ID}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for app.hub.GameSubscriberCount(game.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp = app.do(t, http.MethodPost, "/api/v1/games/"+game.ID+"/end-turn", token, "")
	expectStatus(t, resp, http.StatusOK)

	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != service.EventTurnEnded || event.GameID != game.ID {
		t.Errorf("expected a turn_ended event for %s, got %+v", game.ID, event)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	app := newTestApp(t, false)

	wsURL := "ws" + strings.TrimPrefix(app.srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}
