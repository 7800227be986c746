//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

// createTestUser is a helper that inserts a user and returns it.
func createTestUser(t *testing.T, repo *UserRepo, suffix string) *model.User {
	t.Helper()
	u, err := repo.Upsert(context.Background(), "google", "provider-"+suffix, "User "+suffix, "https://avatar/"+suffix)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

// --- UserRepo Tests ---

func TestUserUpsertCreatesAndUpdates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	u, err := repo.Upsert(ctx, "google", "goog-123", "Alice", "https://avatar/alice")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID == "" || u.IsBot {
		t.Fatalf("unexpected user %+v", u)
	}

	again, err := repo.Upsert(ctx, "google", "goog-123", "Alice B", "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != u.ID || again.DisplayName != "Alice B" {
		t.Fatalf("expected update of %s, got %+v", u.ID, again)
	}

	found, err := repo.FindByProviderID(ctx, "google", "goog-123")
	if err != nil || found == nil || found.ID != u.ID {
		t.Fatalf("FindByProviderID: %v %+v", err, found)
	}
	missing, err := repo.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v %v", missing, err)
	}
}

func TestEnsureBotsIsIdempotent(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	first, err := repo.EnsureBots(ctx, 3)
	if err != nil {
		t.Fatalf("EnsureBots: %v", err)
	}
	second, err := repo.EnsureBots(ctx, 2)
	if err != nil {
		t.Fatalf("EnsureBots: %v", err)
	}
	if len(first) != 3 || len(second) != 2 {
		t.Fatalf("expected 3 and 2 bots, got %d and %d", len(first), len(second))
	}
	for i := range second {
		if second[i].ID != first[i].ID || !second[i].IsBot {
			t.Errorf("bot %d: expected stable bot identity, got %+v", i, second[i])
		}
	}
}

// --- GameRepo Tests ---

func TestGameLifecycle(t *testing.T) {
	setup(t)
	users := NewUserRepo(testDB)
	repo := NewGameRepo(testDB)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bots, err := users.EnsureBots(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	g, err := repo.Create(ctx, alice.ID, 3, true, "small", "1h0m0s")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != "not_started" || g.MaxPlayers != 3 || !g.Multiplayer {
		t.Fatalf("unexpected game %+v", g)
	}
	if err := repo.AddPlayer(ctx, g.ID, alice.ID, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := repo.AddPlayer(ctx, g.ID, bots[0].ID, 2, true); err != nil {
		t.Fatal(err)
	}

	open, err := repo.ListOpen(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open game, got %d (%v)", len(open), err)
	}

	state := json.RawMessage(`{"id":"x","round":1}`)
	err = repo.SaveState(ctx, g.ID, model.StateUpdate{Status: "live", Round: 1, CurrentPlayer: alice.ID, State: state})
	if err != nil {
		t.Fatalf("save state: %v", err)
	}

	found, err := repo.FindByID(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Status != "live" || found.StartedAt == nil || found.CurrentPlayer != alice.ID {
		t.Errorf("expected live game with start time, got %+v", found)
	}
	if len(found.Players) != 2 || found.Players[1].Seat != 2 || !found.Players[1].IsBot {
		t.Errorf("unexpected players %+v", found.Players)
	}
	var decoded map[string]any
	if err := json.Unmarshal(found.State, &decoded); err != nil || decoded["round"] != float64(1) {
		t.Errorf("state did not round-trip: %s", found.State)
	}

	active, _ := repo.ListActive(ctx)
	mine, _ := repo.ListByUser(ctx, alice.ID)
	if len(active) != 1 || len(mine) != 1 {
		t.Errorf("expected 1 active and 1 user game, got %d and %d", len(active), len(mine))
	}

	err = repo.SaveState(ctx, g.ID, model.StateUpdate{Status: "completed", Winner: alice.ID, Round: 9, State: state})
	if err != nil {
		t.Fatal(err)
	}
	finished, _ := repo.ListFinished(ctx)
	if len(finished) != 1 || finished[0].Winner != alice.ID || finished[0].FinishedAt == nil {
		t.Errorf("expected finished game won by alice, got %+v", finished)
	}

	if err := repo.Delete(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if gone, _ := repo.FindByID(ctx, g.ID); gone != nil {
		t.Error("expected game to be deleted")
	}
}

func TestSaveStateUnknownGame(t *testing.T) {
	setup(t)
	repo := NewGameRepo(testDB)
	err := repo.SaveState(context.Background(), "00000000-0000-0000-0000-000000000000", model.StateUpdate{Status: "live", State: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected an error for an unknown game")
	}
}

// --- ProfileRepo Tests ---

func TestProfileActiveGameLimit(t *testing.T) {
	setup(t)
	users := NewUserRepo(testDB)
	repo := NewProfileRepo(testDB)
	ctx := context.Background()
	alice := createTestUser(t, users, "alice")

	if p, err := repo.Get(ctx, alice.ID); err != nil || p != nil {
		t.Fatalf("expected no profile yet, got %+v %v", p, err)
	}
	for _, id := range []string{"g1", "g2", "g2"} {
		if err := repo.AddActiveGame(ctx, alice.ID, id, 2); err != nil {
			t.Fatalf("AddActiveGame(%s): %v", id, err)
		}
	}
	if err := repo.AddActiveGame(ctx, alice.ID, "g3", 2); !errors.Is(err, repository.ErrTooManyActiveGames) {
		t.Fatalf("expected ErrTooManyActiveGames, got %v", err)
	}

	if err := repo.CompleteGame(ctx, alice.ID, "g1", 10); err != nil {
		t.Fatal(err)
	}
	p, err := repo.Get(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Experience != 10 || p.CompletedGames != 1 || len(p.ActiveGames) != 1 || p.ActiveGames[0] != "g2" {
		t.Errorf("unexpected profile %+v", p)
	}
	if err := repo.AddActiveGame(ctx, alice.ID, "g3", 2); err != nil {
		t.Errorf("expected a free slot after completion, got %v", err)
	}
}
