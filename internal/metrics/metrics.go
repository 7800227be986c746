package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/lunar-flights/super-game/internal/metrics"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Recorder counts game activity. It uses the global OTel meter provider, which is a no-op unless
// the binary installs one.
type Recorder struct {
	gamesCreated   metric.Int64Counter
	gamesCompleted metric.Int64Counter
	liveGames      metric.Int64UpDownCounter
	actions        metric.Int64Counter
	combats        metric.Int64Counter
	turns          metric.Int64Counter

	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
	wsConnections metric.Int64UpDownCounter
	wsDropped     metric.Int64Counter
}

// New creates a Recorder.
func New() (*Recorder, error) {
	m := meter()
	r := &Recorder{}

	var err error
	r.gamesCreated, err = m.Int64Counter(
		"games.created",
		metric.WithDescription("Total games created"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating games created counter: %w", err)
	}

	r.gamesCompleted, err = m.Int64Counter(
		"games.completed",
		metric.WithDescription("Total games that reached a winner"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating games completed counter: %w", err)
	}

	r.liveGames, err = m.Int64UpDownCounter(
		"games.live",
		metric.WithDescription("Games currently in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating live games counter: %w", err)
	}

	r.actions, err = m.Int64Counter(
		"game.actions",
		metric.WithDescription("Player actions by kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating actions counter: %w", err)
	}

	r.combats, err = m.Int64Counter(
		"game.combats",
		metric.WithDescription("Resolved engagements by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating combats counter: %w", err)
	}

	r.turns, err = m.Int64Counter(
		"game.turns",
		metric.WithDescription("Ended turns, including forfeits"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}

	r.httpRequests, err = m.Int64Counter(
		"http.requests",
		metric.WithDescription("HTTP requests by method and status class"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http requests counter: %w", err)
	}

	r.httpDuration, err = m.Float64Histogram(
		"http.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http duration histogram: %w", err)
	}

	r.wsConnections, err = m.Int64UpDownCounter(
		"ws.connections",
		metric.WithDescription("Open WebSocket connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ws connections counter: %w", err)
	}

	r.wsDropped, err = m.Int64Counter(
		"ws.dropped",
		metric.WithDescription("Events dropped because a client fell behind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ws dropped counter: %w", err)
	}

	return r, nil
}

// GameCreated records a new game. Games that start live count towards games.live.
func (r *Recorder) GameCreated(ctx context.Context, mapSize string, live bool) {
	if r == nil {
		return
	}
	r.gamesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("map_size", mapSize)))
	if live {
		r.liveGames.Add(ctx, 1)
	}
}

// GameStarted records a lobby going live.
func (r *Recorder) GameStarted(ctx context.Context) {
	if r == nil {
		return
	}
	r.liveGames.Add(ctx, 1)
}

// GameCompleted records a finished game.
func (r *Recorder) GameCompleted(ctx context.Context, botWon bool) {
	if r == nil {
		return
	}
	r.gamesCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("bot_won", botWon)))
	r.liveGames.Add(ctx, -1)
}

// Action records a player action. outcome is "ok" or the rule error code.
func (r *Recorder) Action(ctx context.Context, action, outcome string) {
	if r == nil {
		return
	}
	r.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// Combat records an engagement result.
func (r *Recorder) Combat(ctx context.Context, result string, bot bool) {
	if r == nil {
		return
	}
	r.combats.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.Bool("bot", bot),
	))
}

// TurnEnded records an ended turn.
func (r *Recorder) TurnEnded(ctx context.Context, forfeit bool) {
	if r == nil {
		return
	}
	r.turns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("forfeit", forfeit)))
}

// Request records a served HTTP request.
func (r *Recorder) Request(ctx context.Context, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", fmt.Sprintf("%dxx", status/100)),
	)
	r.httpRequests.Add(ctx, 1, attrs)
	r.httpDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// Connection tracks a WebSocket connection opening (delta 1) or closing (delta -1).
func (r *Recorder) Connection(ctx context.Context, delta int64) {
	if r == nil {
		return
	}
	r.wsConnections.Add(ctx, delta)
}

// EventDropped records an event that a slow WebSocket client never got.
func (r *Recorder) EventDropped(ctx context.Context, eventType string) {
	if r == nil {
		return
	}
	r.wsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}
