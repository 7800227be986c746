package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/pkg/supergame"
)

// eventWait bounds how long a player waits for the turn notification before falling back to
// polling the game.
const eventWait = 2 * time.Second

// OrchestratorConfig describes a remote match.
type OrchestratorConfig struct {
	Players       int // seats in the lobby; two are human, the rest are server bots
	MapSize       string
	TurnTimeLimit time.Duration
	MaxRounds     int
}

// MatchResult summarizes a remote match.
type MatchResult struct {
	GameID    string `json:"game_id"`
	Winner    string `json:"winner,omitempty"`
	Rounds    int    `json:"rounds"`
	Completed bool   `json:"completed"`
}

// Orchestrator drives two human seats of a multiplayer game through the HTTP and WebSocket API.
type Orchestrator struct {
	baseURL string
	cfg     OrchestratorConfig
	players []*Client
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(baseURL string, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Players == 0 {
		cfg.Players = 2
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 200
	}
	return &Orchestrator{baseURL: baseURL, cfg: cfg}
}

// Run executes a full game: log in, create and join the lobby, then play until the game ends
// or the round cap is reached.
func (o *Orchestrator) Run(ctx context.Context) (*MatchResult, error) {
	log.Info().Int("players", o.cfg.Players).Str("mapSize", o.cfg.MapSize).
		Int("maxRounds", o.cfg.MaxRounds).Msg("Starting remote match")

	for _, name := range []string{"remote-host", "remote-guest"} {
		c := NewClient(name, o.baseURL)
		if err := c.Login(); err != nil {
			return nil, fmt.Errorf("login %s: %w", name, err)
		}
		o.players = append(o.players, c)
	}
	defer func() {
		for _, c := range o.players {
			c.CloseWS()
		}
	}()

	host, guest := o.players[0], o.players[1]
	game, err := host.CreateGame(o.cfg.Players, o.cfg.MapSize, o.cfg.TurnTimeLimit)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	log.Info().Str("gameId", game.ID).Msg("Game created")

	for _, c := range o.players {
		if err := c.ConnectWS(); err != nil {
			return nil, fmt.Errorf("connect %s: %w", c.Name(), err)
		}
		if err := c.SubscribeGame(game.ID); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", c.Name(), err)
		}
	}

	if err := guest.JoinGame(game.ID); err != nil {
		return nil, fmt.Errorf("join game: %w", err)
	}

	return o.playLoop(ctx, game.ID)
}

func (o *Orchestrator) playLoop(ctx context.Context, gameID string) (*MatchResult, error) {
	res := &MatchResult{GameID: gameID}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		game, err := o.players[0].GetGame(gameID)
		if err != nil {
			return res, fmt.Errorf("get game: %w", err)
		}
		res.Rounds = game.Round
		if game.Status == string(supergame.StatusCompleted) {
			res.Completed = true
			res.Winner = game.Winner
			log.Info().Str("gameId", gameID).Str("winner", game.Winner).Int("rounds", game.Round).Msg("Game over")
			return res, nil
		}
		if game.Round > o.cfg.MaxRounds {
			log.Info().Str("gameId", gameID).Int("rounds", game.Round).Msg("Round cap reached")
			return res, nil
		}

		current := o.playerByID(game.CurrentPlayer)
		if current == nil {
			// A bot or a lapsed turn; the server advances it on its own.
			o.waitForTurn(ctx, o.players[0])
			continue
		}
		if err := o.playTurn(current, gameID); err != nil {
			return res, err
		}
		for _, c := range o.players {
			o.waitForTurn(ctx, c)
		}
	}
}

func (o *Orchestrator) playTurn(c *Client, gameID string) error {
	gs, err := c.GetState(gameID)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	id := supergame.PlayerID(c.UserID())

	for _, r := range PlanRecruits(TakeSnapshot(gs, id)) {
		if err := c.Recruit(gameID, r); err != nil {
			log.Warn().Err(err).Str("player", c.Name()).Msg("Recruit rejected")
		}
	}

	// Refetch so the plan sees the units just bought.
	if gs, err = c.GetState(gameID); err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	moves := 0
	for _, a := range PlanAttacks(gs, id) {
		if _, err := c.Move(gameID, a.From, a.To); err != nil {
			log.Warn().Err(err).Str("player", c.Name()).Stringer("from", a.From).Stringer("to", a.To).Msg("Move rejected")
			continue
		}
		moves++
	}

	report, err := c.EndTurn(gameID)
	if err != nil {
		return fmt.Errorf("end turn %s: %w", c.Name(), err)
	}
	log.Debug().Str("player", c.Name()).Int("moves", moves).Uint32("round", report.Round).Msg("Turn played")
	return nil
}

func (o *Orchestrator) playerByID(userID string) *Client {
	for _, c := range o.players {
		if c.UserID() == userID {
			return c
		}
	}
	return nil
}

// waitForTurn drains events until the turn changes hands. Events may be dropped under load, so
// a timeout is not an error.
func (o *Orchestrator) waitForTurn(ctx context.Context, c *Client) {
	err := waitForEvent(ctx, c.Events(), eventWait, "turn_ended", "game_ended")
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("player", c.Name()).Msg("No turn event")
	}
}

func waitForEvent(ctx context.Context, events <-chan WSEvent, timeout time.Duration, types ...string) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %v", types)
		case e, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			for _, t := range types {
				if e.Type == t {
					return nil
				}
			}
		}
	}
}
