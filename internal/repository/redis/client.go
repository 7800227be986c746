package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// stateTTL bounds how long a cached game state outlives its last write. The database holds the
// authoritative copy, so an expired entry only costs one reload.
const stateTTL = 7 * 24 * time.Hour

// Client is the Redis-backed game cache: live game states and turn timers.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to redisURL and enables expired-key notifications, which drive turn
// forfeits.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	c := &Client{rdb: redis.NewClient(opts)}
	if err := c.Ping(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	// Managed Redis often forbids CONFIG; the deadline poller covers for missing notifications.
	if err := c.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Could not enable keyspace notifications, relying on the deadline poller")
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
	return c, nil
}

// NewClientFromPool wraps an existing redis.Client.
func NewClientFromPool(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping checks that Redis answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw redis client for keyspace notifications, or nil on a nil Client.
func (c *Client) Underlying() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
