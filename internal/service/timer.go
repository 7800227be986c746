package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	timerKeyPrefix = "game:"
	timerKeySuffix = ":turn_timer"
)

// TimerListener listens for Redis keyspace notifications on expired turn timer keys and forfeits
// the turn of a player who ran out of time. A polling fallback catches expirations when keyspace
// notifications are unavailable or Redis is not configured.
type TimerListener struct {
	rdb          *redis.Client
	turnSvc      *TurnService
	pollInterval time.Duration
}

// NewTimerListener creates a TimerListener. rdb may be nil, leaving only the poller.
func NewTimerListener(rdb *redis.Client, turnSvc *TurnService) *TimerListener {
	return &TimerListener{rdb: rdb, turnSvc: turnSvc, pollInterval: 10 * time.Second}
}

// Start begins listening for expired key events and runs the polling fallback until ctx ends.
func (t *TimerListener) Start(ctx context.Context) {
	if t.rdb != nil {
		go t.listenKeyspace(ctx)
	}
	t.pollExpiredTurns(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollExpiredTurns periodically forfeits turns past their deadline.
func (t *TimerListener) pollExpiredTurns(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.pollInterval).Msg("Turn deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Turn deadline poller stopped")
			return
		case <-ticker.C:
			t.turnSvc.CheckExpiredTurns(ctx)
		}
	}
}

// handleExpiry processes an expired key. Only acts on turn timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	gameID, ok := gameIDFromTimerKey(key)
	if !ok {
		return
	}
	log.Info().Str("gameId", gameID).Msg("Turn timer expired")
	if err := t.turnSvc.ForfeitTurn(ctx, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Forfeit failed after timer expiry")
	}
}

func gameIDFromTimerKey(key string) (string, bool) {
	if !strings.HasPrefix(key, timerKeyPrefix) || !strings.HasSuffix(key, timerKeySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, timerKeyPrefix), timerKeySuffix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
