// Package memory provides an in-process GameCache for single-instance deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache keeps live game state and turn deadlines in process memory.
type Cache struct {
	mu     sync.RWMutex
	states map[string]json.RawMessage
	timers map[string]time.Time
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		states: make(map[string]json.RawMessage),
		timers: make(map[string]time.Time),
	}
}

// SetGameState stores a copy of the serialized state.
func (c *Cache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = append(json.RawMessage(nil), state...)
	return nil
}

// GetGameState returns the cached state, or nil if none is stored.
func (c *Cache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[gameID]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), s...), nil
}

// SetTurnTimer records the deadline of the current turn.
func (c *Cache) SetTurnTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[gameID] = deadline
	return nil
}

// TurnDeadline returns the deadline of the running turn timer, or the zero time if none runs.
func (c *Cache) TurnDeadline(_ context.Context, gameID string) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timers[gameID], nil
}

// ClearTurnTimer removes the turn deadline.
func (c *Cache) ClearTurnTimer(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, gameID)
	return nil
}

// DeleteGameData removes everything cached for a game.
func (c *Cache) DeleteGameData(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	delete(c.timers, gameID)
	return nil
}
