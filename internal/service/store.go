package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

// Store loads and persists engine state. GameService and TurnService share one Store so that
// every mutation of a game goes through the same lock.
type Store struct {
	games repository.GameRepository
	cache repository.GameCache

	// locks serializes mutations per game. HTTP actions, the keyspace listener and the
	// deadline poller can all hit the same game at once. An entry lives only while someone
	// holds or waits for it.
	locksMu sync.Mutex
	locks   map[string]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a Store. cache may be nil.
func NewStore(games repository.GameRepository, cache repository.GameCache) *Store {
	return &Store{games: games, cache: cache, locks: make(map[string]*gameLock)}
}

func (s *Store) lock(gameID string) func() {
	s.locksMu.Lock()
	l := s.locks[gameID]
	if l == nil {
		l = &gameLock{}
		s.locks[gameID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, gameID)
		}
		s.locksMu.Unlock()
	}
}

// lockCount reports how many games currently have a lock entry.
func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// Load returns the current state of a game, preferring the cache.
func (s *Store) Load(ctx context.Context, gameID string) (*supergame.GameState, error) {
	if s.cache != nil {
		data, err := s.cache.GetGameState(ctx, gameID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("gameId", gameID).Msg("Cache read failed, falling back to database")
		case data != nil:
			gs, err := supergame.Unmarshal(data)
			if err == nil {
				return gs, nil
			}
			log.Warn().Err(err).Str("gameId", gameID).Msg("Cached state is corrupt, falling back to database")
		}
	}

	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil || len(game.State) == 0 {
		return nil, ErrGameNotFound
	}
	gs, err := supergame.Unmarshal(game.State)
	if err != nil {
		return nil, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	if s.cache != nil && gs.Status != supergame.StatusCompleted {
		if err := s.cache.SetGameState(ctx, gameID, game.State); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to warm cache")
		}
	}
	return gs, nil
}

// Save writes gs to the database and then to the cache. The database is authoritative: a cache
// failure is logged and the cached copy dropped so it cannot shadow the saved state.
func (s *Store) Save(ctx context.Context, gs *supergame.GameState) error {
	data, err := supergame.Marshal(gs)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", gs.ID, err)
	}
	update := model.StateUpdate{
		Status: string(gs.Status),
		Winner: string(gs.Winner),
		Round:  int(gs.Round),
		State:  data,
	}
	if p, err := gs.CurrentPlayer(); err == nil && gs.Status == supergame.StatusLive {
		update.CurrentPlayer = string(p.ID)
	}
	if err := s.games.SaveState(ctx, gs.ID, update); err != nil {
		return fmt.Errorf("save game %s: %w", gs.ID, err)
	}
	s.syncCache(ctx, gs, data)
	return nil
}

func (s *Store) syncCache(ctx context.Context, gs *supergame.GameState, data []byte) {
	if s.cache == nil {
		return
	}
	if gs.Status == supergame.StatusCompleted {
		if err := s.cache.DeleteGameData(ctx, gs.ID); err != nil {
			log.Warn().Err(err).Str("gameId", gs.ID).Msg("Failed to drop cached game data")
		}
		return
	}
	if err := s.cache.SetGameState(ctx, gs.ID, data); err != nil {
		log.Warn().Err(err).Str("gameId", gs.ID).Msg("Failed to cache game state")
		if err := s.cache.DeleteGameData(ctx, gs.ID); err != nil {
			log.Error().Err(err).Str("gameId", gs.ID).Msg("Stale cached state could not be dropped")
		}
		return
	}
	if gs.Status == supergame.StatusLive && gs.TurnTimeLimit > 0 {
		deadline := gs.TurnTimestamp.Add(gs.TurnTimeLimit)
		if err := s.cache.SetTurnTimer(ctx, gs.ID, deadline); err != nil {
			log.Warn().Err(err).Str("gameId", gs.ID).Msg("Failed to set turn timer")
		}
	}
}

// Recover rehydrates the cache for every live game. Called on startup so timers lost with a
// Redis restart come back.
func (s *Store) Recover(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	games, err := s.games.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	if len(games) == 0 {
		log.Info().Msg("No active games to recover")
		return nil
	}
	log.Info().Int("count", len(games)).Msg("Recovering active games after restart")
	for _, game := range games {
		if len(game.State) == 0 {
			log.Warn().Str("gameId", game.ID).Msg("Active game has no state, skipping")
			continue
		}
		gs, err := supergame.Unmarshal(game.State)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to decode state during recovery")
			continue
		}
		s.syncCache(ctx, gs, game.State)
	}
	return nil
}
