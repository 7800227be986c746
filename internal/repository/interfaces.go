package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lunar-flights/super-game/internal/model"
)

// ErrTooManyActiveGames is returned when a profile already holds the maximum number of active games.
var ErrTooManyActiveGames = errors.New("too many active games")

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	// EnsureBots returns n bot users, creating any that do not exist yet.
	EnsureBots(ctx context.Context, n int) ([]model.User, error)
}

// GameRepository defines game and seat data operations.
type GameRepository interface {
	Create(ctx context.Context, creatorID string, maxPlayers int, multiplayer bool, mapSize, turnTimeLimit string) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	AddPlayer(ctx context.Context, gameID, userID string, seat int, isBot bool) error
	RemovePlayer(ctx context.Context, gameID, userID string) error
	SaveState(ctx context.Context, gameID string, update model.StateUpdate) error
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	ListFinished(ctx context.Context) ([]model.Game, error)
	Delete(ctx context.Context, gameID string) error
}

// ProfileRepository defines player profile operations.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	AddActiveGame(ctx context.Context, userID, gameID string, limit int) error
	RemoveActiveGame(ctx context.Context, userID, gameID string) error
	CompleteGame(ctx context.Context, userID, gameID string, experience int) error
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	SetTurnTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTurnTimer(ctx context.Context, gameID string) error
	DeleteGameData(ctx context.Context, gameID string) error
}
