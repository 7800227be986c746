package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
)

type mockGameRepo struct {
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
	saves   int
	saveErr error
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, creatorID string, maxPlayers int, multiplayer bool, mapSize, turnTimeLimit string) (*model.Game, error) {
	g := &model.Game{
		ID:            fmt.Sprintf("game-%d", len(m.games)+1),
		CreatorID:     creatorID,
		Status:        "not_started",
		Multiplayer:   multiplayer,
		MaxPlayers:    maxPlayers,
		MapSize:       mapSize,
		TurnTimeLimit: turnTimeLimit,
		CreatedAt:     time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockGameRepo) AddPlayer(_ context.Context, gameID, userID string, seat int, isBot bool) error {
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:   gameID,
		UserID:   userID,
		Seat:     seat,
		IsBot:    isBot,
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockGameRepo) RemovePlayer(_ context.Context, gameID, userID string) error {
	m.players[gameID] = slices.DeleteFunc(m.players[gameID], func(p model.GamePlayer) bool { return p.UserID == userID })
	return nil
}

func (m *mockGameRepo) SaveState(_ context.Context, gameID string, u model.StateUpdate) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	g.Status = u.Status
	g.Winner = u.Winner
	g.Round = u.Round
	g.CurrentPlayer = u.CurrentPlayer
	g.State = append(json.RawMessage(nil), u.State...)
	m.saves++
	return nil
}

func (m *mockGameRepo) list(keep func(*model.Game) bool) []model.Game {
	var result []model.Game
	for _, g := range m.games {
		if keep(g) {
			result = append(result, *g)
		}
	}
	return result
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "not_started" && g.Multiplayer }), nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool {
		return slices.ContainsFunc(m.players[g.ID], func(p model.GamePlayer) bool { return p.UserID == userID })
	}), nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "live" }), nil
}

func (m *mockGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "completed" }), nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	u := &model.User{
		ID:          fmt.Sprintf("%s-%s", provider, providerID),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		IsBot:       provider == "bot",
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

func (m *mockUserRepo) EnsureBots(ctx context.Context, n int) ([]model.User, error) {
	bots := make([]model.User, 0, n)
	for i := 1; i <= n; i++ {
		u, err := m.Upsert(ctx, "bot", fmt.Sprintf("%d", i), fmt.Sprintf("Bot %d", i), "")
		if err != nil {
			return nil, err
		}
		bots = append(bots, *u)
	}
	return bots, nil
}

type mockProfileRepo struct {
	profiles map[string]*model.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) Get(_ context.Context, userID string) (*model.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.ActiveGames = slices.Clone(p.ActiveGames)
	return &cp, nil
}

func (m *mockProfileRepo) profile(userID string) *model.Profile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &model.Profile{UserID: userID}
		m.profiles[userID] = p
	}
	return p
}

func (m *mockProfileRepo) AddActiveGame(_ context.Context, userID, gameID string, limit int) error {
	p := m.profile(userID)
	if slices.Contains(p.ActiveGames, gameID) {
		return nil
	}
	if len(p.ActiveGames) >= limit {
		return repository.ErrTooManyActiveGames
	}
	p.ActiveGames = append(p.ActiveGames, gameID)
	return nil
}

func (m *mockProfileRepo) RemoveActiveGame(_ context.Context, userID, gameID string) error {
	p := m.profile(userID)
	p.ActiveGames = slices.DeleteFunc(p.ActiveGames, func(id string) bool { return id == gameID })
	return nil
}

func (m *mockProfileRepo) CompleteGame(_ context.Context, userID, gameID string, experience int) error {
	p := m.profile(userID)
	p.ActiveGames = slices.DeleteFunc(p.ActiveGames, func(id string) bool { return id == gameID })
	p.Experience += experience
	p.CompletedGames++
	return nil
}

type mockCache struct {
	mu      sync.Mutex
	states  map[string]json.RawMessage
	timers  map[string]time.Time
	failSet bool
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		timers: make(map[string]time.Time),
	}
}

func (m *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("cache unavailable")
	}
	m.states[gameID] = append(json.RawMessage(nil), state...)
	return nil
}

func (m *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[gameID], nil
}

func (m *mockCache) SetTurnTimer(_ context.Context, gameID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[gameID] = deadline
	return nil
}

func (m *mockCache) ClearTurnTimer(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, gameID)
	return nil
}

func (m *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, gameID)
	delete(m.timers, gameID)
	return nil
}

type recordedEvent struct {
	gameID    string
	eventType string
	data      any
}

type recordingBroadcaster struct {
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	b.events = append(b.events, recordedEvent{gameID: gameID, eventType: eventType, data: data})
}

func (b *recordingBroadcaster) types() []string {
	var out []string
	for _, e := range b.events {
		out = append(out, e.eventType)
	}
	return out
}
