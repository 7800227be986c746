package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis game state. The timer key is matched by the service's expiry listener.
func stateKey(gameID string) string { return "game:" + gameID + ":state" }
func timerKey(gameID string) string { return "game:" + gameID + ":turn_timer" }

// turnGracePeriod is the extra time after the displayed deadline before the turn is forfeited,
// giving players a few seconds of leeway.
const turnGracePeriod = 5 * time.Second

// SetGameState stores the live game state JSON.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), stateTTL).Err()
}

// GetGameState retrieves the live game state JSON. A missing key yields nil, nil.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetTurnTimer creates a timer key with a TTL. When the key expires, Redis keyspace
// notifications trigger the forfeit of the current turn.
func (c *Client) SetTurnTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + turnGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// TurnDeadline returns the deadline of the running turn timer, or the zero time if none runs.
func (c *Client) TurnDeadline(ctx context.Context, gameID string) (time.Time, error) {
	unix, err := c.rdb.Get(ctx, timerKey(gameID)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get turn timer: %w", err)
	}
	return time.Unix(unix, 0), nil
}

// ClearTurnTimer removes the timer for a game.
func (c *Client) ClearTurnTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// DeleteGameData removes all Redis data for a game (on game end).
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID), timerKey(gameID)).Err()
}
