package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/metrics"
	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrInvalidTurnTimeLimit = errors.New("invalid turn time limit")
)

const (
	// DefaultMaxActiveGames caps how many unfinished games a player can be part of.
	DefaultMaxActiveGames = 10
	// DefaultTurnTimeLimit applies when a game is created without one.
	DefaultTurnTimeLimit = 24 * time.Hour
)

// GameService handles game lifecycle operations.
type GameService struct {
	store       *Store
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	broadcaster Broadcaster
	metrics     *metrics.Recorder

	maxActiveGames int
	turnTimeLimit  time.Duration
	now            func() time.Time
}

// NewGameService creates a GameService.
func NewGameService(
	store *Store,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	broadcaster Broadcaster,
	rec *metrics.Recorder,
) *GameService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &GameService{
		store:          store,
		userRepo:       userRepo,
		profileRepo:    profileRepo,
		broadcaster:    broadcaster,
		metrics:        rec,
		maxActiveGames: DefaultMaxActiveGames,
		turnTimeLimit:  DefaultTurnTimeLimit,
		now:            time.Now,
	}
}

// SetLimits overrides the active game cap and the default turn time limit. Zero values keep the
// defaults.
func (s *GameService) SetLimits(maxActiveGames int, turnTimeLimit time.Duration) {
	if maxActiveGames > 0 {
		s.maxActiveGames = maxActiveGames
	}
	if turnTimeLimit > 0 {
		s.turnTimeLimit = turnTimeLimit
	}
}

// CreateGame creates a game with the creator in the first seat and bots in every seat not
// reserved for a human. Single player games start immediately.
func (s *GameService) CreateGame(ctx context.Context, creatorID string, maxPlayers int, multiplayer bool, mapSize, turnTimeLimit string) (*model.Game, error) {
	size := supergame.MapSize(mapSize)
	if size == "" {
		size = supergame.Small
	}
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %q", supergame.ErrInvalidMapSize, mapSize)
	}
	if maxPlayers < 2 || maxPlayers > supergame.MaxPlayers {
		return nil, fmt.Errorf("%w: got %d", supergame.ErrInvalidPlayerCount, maxPlayers)
	}
	limit, err := parseTurnLimit(turnTimeLimit, s.turnTimeLimit)
	if err != nil {
		return nil, err
	}

	game, err := s.store.games.Create(ctx, creatorID, maxPlayers, multiplayer, string(size), limit.String())
	if err != nil {
		return nil, err
	}

	gs, err := s.setupGame(ctx, game.ID, supergame.CreateOptions{
		ID:            game.ID,
		Creator:       supergame.PlayerID(creatorID),
		MaxPlayers:    maxPlayers,
		Multiplayer:   multiplayer,
		MapSize:       size,
		Seed:          uint64(s.now().UnixNano()),
		TurnTimeLimit: limit,
		Now:           s.now(),
	})
	if err != nil {
		if derr := s.store.games.Delete(ctx, game.ID); derr != nil {
			log.Error().Err(derr).Str("gameId", game.ID).Msg("Failed to remove half-created game")
		}
		return nil, err
	}

	s.metrics.GameCreated(ctx, string(size), gs.Status == supergame.StatusLive)
	log.Info().Str("gameId", gs.ID).Str("creator", creatorID).Int("players", maxPlayers).
		Bool("multiplayer", multiplayer).Str("mapSize", string(size)).Msg("Game created")
	return s.GetGame(ctx, gs.ID)
}

// setupGame seats the creator and the bots, lays out the board and persists it.
func (s *GameService) setupGame(ctx context.Context, gameID string, opts supergame.CreateOptions) (*supergame.GameState, error) {
	bots, err := s.userRepo.EnsureBots(ctx, opts.BotsNeeded())
	if err != nil {
		return nil, fmt.Errorf("bot users: %w", err)
	}
	for _, b := range bots {
		opts.BotIDs = append(opts.BotIDs, supergame.PlayerID(b.ID))
	}

	gs, err := supergame.NewGame(opts)
	if err != nil {
		return nil, err
	}

	if err := s.profileRepo.AddActiveGame(ctx, string(opts.Creator), gameID, s.maxActiveGames); err != nil {
		return nil, err
	}
	if err := s.seatAndSave(ctx, gs); err != nil {
		s.dropActiveGame(ctx, string(opts.Creator), gameID)
		return nil, err
	}
	return gs, nil
}

func (s *GameService) seatAndSave(ctx context.Context, gs *supergame.GameState) error {
	for seat, p := range gs.Players {
		if p.Open() {
			continue
		}
		if err := s.store.games.AddPlayer(ctx, gs.ID, string(p.ID), seat, p.IsBot); err != nil {
			return fmt.Errorf("seat %d: %w", seat, err)
		}
	}
	return s.store.Save(ctx, gs)
}

// dropActiveGame undoes AddActiveGame after a later write failed.
func (s *GameService) dropActiveGame(ctx context.Context, userID, gameID string) {
	if err := s.profileRepo.RemoveActiveGame(ctx, userID, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("userId", userID).Msg("Failed to roll back active game")
	}
}

// JoinGame seats a second human in a multiplayer lobby. The game goes live once every seat is
// filled.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	unlock := s.store.lock(gameID)
	defer unlock()

	gs, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	next := gs.Clone()
	if err := supergame.JoinGame(next, supergame.PlayerID(userID)); err != nil {
		return nil, err
	}
	seat, _ := next.PlayerIndex(supergame.PlayerID(userID))

	if err := s.profileRepo.AddActiveGame(ctx, userID, gameID, s.maxActiveGames); err != nil {
		return nil, err
	}
	if err := s.store.games.AddPlayer(ctx, gameID, userID, seat, false); err != nil {
		s.dropActiveGame(ctx, userID, gameID)
		return nil, err
	}
	if next.Status == supergame.StatusLive {
		next.TurnTimestamp = s.now()
	}
	if err := s.store.Save(ctx, next); err != nil {
		if rerr := s.store.games.RemovePlayer(ctx, gameID, userID); rerr != nil {
			log.Error().Err(rerr).Str("gameId", gameID).Str("userId", userID).Msg("Failed to roll back seat")
		}
		s.dropActiveGame(ctx, userID, gameID)
		return nil, err
	}

	s.broadcaster.BroadcastGameEvent(gameID, EventPlayerJoined, map[string]any{
		"player": userID,
		"seat":   seat,
	})
	if next.Status == supergame.StatusLive {
		s.metrics.GameStarted(ctx)
		s.broadcaster.BroadcastGameEvent(gameID, EventGameStarted, map[string]any{
			"current_player": string(next.Players[next.CurrentPlayerIndex].ID),
		})
		log.Info().Str("gameId", gameID).Msg("Game started")
	}
	return s.store.games.FindByID(ctx, gameID)
}

// GetGame returns a game by ID.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.store.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// GetState returns the live engine state of a game.
func (s *GameService) GetState(ctx context.Context, gameID string) (*supergame.GameState, error) {
	return s.store.Load(ctx, gameID)
}

// ListGames returns open lobbies, the user's games, live games or finished games.
func (s *GameService) ListGames(ctx context.Context, userID string, filter string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.store.games.ListByUser(ctx, userID)
	case "active":
		return s.store.games.ListActive(ctx)
	case "finished":
		return s.store.games.ListFinished(ctx)
	default:
		return s.store.games.ListOpen(ctx)
	}
}

// GetProfile returns a player's profile. Players that never played get an empty one.
func (s *GameService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &model.Profile{UserID: userID, ActiveGames: []string{}}, nil
	}
	return p, nil
}

// parseTurnLimit accepts Go duration strings ("90s", "5m", "24h"). Empty input yields def.
func parseTurnLimit(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTurnTimeLimit, s)
	}
	return d, nil
}
