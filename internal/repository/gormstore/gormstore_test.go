package gormstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
)

// Compile-time interface checks
var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.GameRepository    = (*GameRepo)(nil)
	_ repository.ProfileRepository = (*ProfileRepo)(nil)
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(MemoryDSN)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestUserUpsertCreatesAndUpdates(t *testing.T) {
	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	u, err := repo.Upsert(ctx, "google", "goog-123", "Alice", "https://avatar/alice")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.IsBot)

	again, err := repo.Upsert(ctx, "google", "goog-123", "Alice B", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Alice B", again.DisplayName)

	found, err := repo.FindByProviderID(ctx, "google", "goog-123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	require.NoError(t, repo.UpdateDisplayName(ctx, u.ID, "Al"))
	found, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Al", found.DisplayName)

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEnsureBotsIsIdempotent(t *testing.T) {
	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	first, err := repo.EnsureBots(ctx, 3)
	require.NoError(t, err)
	second, err := repo.EnsureBots(ctx, 2)
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 2)
	for i := range second {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.True(t, second[i].IsBot)
	}
	assert.Equal(t, "Bot 1", first[0].DisplayName)
}

func TestGameLifecycle(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepo(db)
	repo := NewGameRepo(db)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }
	ctx := context.Background()

	alice, err := users.Upsert(ctx, "google", "alice", "Alice", "")
	require.NoError(t, err)
	bots, err := users.EnsureBots(ctx, 1)
	require.NoError(t, err)

	g, err := repo.Create(ctx, alice.ID, 3, true, "small", "1h0m0s")
	require.NoError(t, err)
	assert.Equal(t, "not_started", g.Status)
	assert.Equal(t, 3, g.MaxPlayers)

	require.NoError(t, repo.AddPlayer(ctx, g.ID, bots[0].ID, 2, true))
	require.NoError(t, repo.AddPlayer(ctx, g.ID, alice.ID, 0, false))
	require.NoError(t, repo.AddPlayer(ctx, g.ID, alice.ID, 0, false))

	open, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Nil(t, open[0].State)

	state := json.RawMessage(`{"id":"x","round":1}`)
	require.NoError(t, repo.SaveState(ctx, g.ID, model.StateUpdate{Status: "live", Round: 1, CurrentPlayer: alice.ID, State: state}))

	found, err := repo.FindByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "live", found.Status)
	assert.Equal(t, alice.ID, found.CurrentPlayer)
	require.NotNil(t, found.StartedAt)
	assert.True(t, found.StartedAt.Equal(t0))
	assert.JSONEq(t, string(state), string(found.State))
	require.Len(t, found.Players, 2)
	assert.Equal(t, alice.ID, found.Players[0].UserID)
	assert.Equal(t, 2, found.Players[1].Seat)
	assert.True(t, found.Players[1].IsBot)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	mine, err := repo.ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	open, err = repo.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	repo.now = func() time.Time { return t0.Add(time.Hour) }
	require.NoError(t, repo.SaveState(ctx, g.ID, model.StateUpdate{Status: "completed", Winner: alice.ID, Round: 9, State: state}))
	finished, err := repo.ListFinished(ctx)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, alice.ID, finished[0].Winner)
	require.NotNil(t, finished[0].FinishedAt)
	assert.True(t, finished[0].StartedAt.Equal(t0), "started_at is stamped once")

	require.NoError(t, repo.Delete(ctx, g.ID))
	gone, err := repo.FindByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSaveStateUnknownGame(t *testing.T) {
	repo := NewGameRepo(openTestDB(t))
	err := repo.SaveState(context.Background(), "missing", model.StateUpdate{Status: "live", State: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestProfileActiveGameLimit(t *testing.T) {
	repo := NewProfileRepo(openTestDB(t))
	ctx := context.Background()

	p, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, p)

	for _, id := range []string{"g1", "g2", "g2"} {
		require.NoError(t, repo.AddActiveGame(ctx, "alice", id, 2), "AddActiveGame(%s)", id)
	}
	err = repo.AddActiveGame(ctx, "alice", "g3", 2)
	assert.ErrorIs(t, err, repository.ErrTooManyActiveGames)

	require.NoError(t, repo.CompleteGame(ctx, "alice", "g1", 10))
	p, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 10, p.Experience)
	assert.Equal(t, 1, p.CompletedGames)
	assert.Equal(t, []string{"g2"}, p.ActiveGames)

	assert.NoError(t, repo.AddActiveGame(ctx, "alice", "g3", 2))
}

func TestCompleteGameCreatesProfile(t *testing.T) {
	repo := NewProfileRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CompleteGame(ctx, "bob", "g1", 1))
	p, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Experience)
	assert.Empty(t, p.ActiveGames)
	assert.NotNil(t, p.ActiveGames)
}

func TestRemoveActiveGameCreditsNothing(t *testing.T) {
	repo := NewProfileRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.AddActiveGame(ctx, "alice", "g1", 1))
	require.NoError(t, repo.RemoveActiveGame(ctx, "alice", "g1"))
	p, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Empty(t, p.ActiveGames)
	assert.Zero(t, p.Experience)
	assert.Zero(t, p.CompletedGames)

	assert.NoError(t, repo.AddActiveGame(ctx, "alice", "g2", 1), "the freed slot must be reusable")
}

func TestRemovePlayerLeavesOtherSeats(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepo(db)
	repo := NewGameRepo(db)
	ctx := context.Background()

	alice, err := users.Upsert(ctx, "google", "alice", "Alice", "")
	require.NoError(t, err)
	bob, err := users.Upsert(ctx, "google", "bob", "Bob", "")
	require.NoError(t, err)
	g, err := repo.Create(ctx, alice.ID, 2, true, "small", "1h0m0s")
	require.NoError(t, err)
	require.NoError(t, repo.AddPlayer(ctx, g.ID, alice.ID, 0, false))
	require.NoError(t, repo.AddPlayer(ctx, g.ID, bob.ID, 1, false))

	require.NoError(t, repo.RemovePlayer(ctx, g.ID, bob.ID))
	found, err := repo.FindByID(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, found.Players, 1)
	assert.Equal(t, alice.ID, found.Players[0].UserID)

	mine, err := repo.ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
