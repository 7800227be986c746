package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/metrics"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

var errTurnNotExpired = errors.New("turn has not expired")

const (
	winnerExperience      = 10
	participantExperience = 1
)

// TurnService applies player actions and ends turns. Every operation loads the game under its
// lock, applies the rule on a copy and persists the copy only if the rule accepted it.
type TurnService struct {
	store       *Store
	profileRepo repository.ProfileRepository
	bots        supergame.BotPolicy
	broadcaster Broadcaster
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewTurnService creates a TurnService. bots decides for every bot seat.
func NewTurnService(
	store *Store,
	profileRepo repository.ProfileRepository,
	bots supergame.BotPolicy,
	broadcaster Broadcaster,
	rec *metrics.Recorder,
) *TurnService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &TurnService{
		store:       store,
		profileRepo: profileRepo,
		bots:        bots,
		broadcaster: broadcaster,
		metrics:     rec,
		now:         time.Now,
	}
}

// mutate runs fn on a copy of the game's state and saves the copy when fn succeeds.
func (s *TurnService) mutate(ctx context.Context, gameID, action string, fn func(gs *supergame.GameState) error) (*supergame.GameState, error) {
	unlock := s.store.lock(gameID)
	defer unlock()

	gs, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	next := gs.Clone()
	if err := fn(next); err != nil {
		s.metrics.Action(ctx, action, outcome(err))
		return nil, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, err
	}
	s.metrics.Action(ctx, action, "ok")
	return next, nil
}

// MoveUnit moves or attacks with the stack on from.
func (s *TurnService) MoveUnit(ctx context.Context, gameID, userID string, from, to supergame.Coord) (supergame.MoveResult, error) {
	var res supergame.MoveResult
	_, err := s.mutate(ctx, gameID, "move", func(gs *supergame.GameState) error {
		var err error
		res, err = supergame.MoveUnit(gs, supergame.PlayerID(userID), from, to)
		return err
	})
	if err != nil {
		return supergame.MoveResult{}, err
	}

	if e := res.Engagement; e != nil {
		s.metrics.Combat(ctx, string(e.Result), false)
		if e.EliminatedOwner != "" {
			log.Info().Str("gameId", gameID).Str("playerId", userID).
				Str("eliminated", string(e.EliminatedOwner)).Msg("Base captured")
		}
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventUnitMoved, map[string]any{
		"player": userID,
		"result": res,
	})
	return res, nil
}

// RecruitUnits buys qty units of unitType on at.
func (s *TurnService) RecruitUnits(ctx context.Context, gameID, userID, unitType string, qty uint16, at supergame.Coord) error {
	ut := supergame.UnitType(unitType)
	_, err := s.mutate(ctx, gameID, "recruit", func(gs *supergame.GameState) error {
		return supergame.RecruitUnits(gs, supergame.PlayerID(userID), ut, qty, at)
	})
	if err != nil {
		return err
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventUnitsRecruited, map[string]any{
		"player":    userID,
		"unit_type": unitType,
		"quantity":  qty,
		"tile":      at,
	})
	return nil
}

// BuildConstruction builds or upgrades a building on at.
func (s *TurnService) BuildConstruction(ctx context.Context, gameID, userID string, at supergame.Coord, buildingType string) (supergame.Building, error) {
	var b supergame.Building
	_, err := s.mutate(ctx, gameID, "build", func(gs *supergame.GameState) error {
		var err error
		b, err = supergame.BuildConstruction(gs, supergame.PlayerID(userID), at, supergame.BuildingType(buildingType))
		return err
	})
	if err != nil {
		return supergame.Building{}, err
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventBuilt, map[string]any{
		"player":   userID,
		"tile":     at,
		"building": b,
	})
	return b, nil
}

// EndTurn ends the caller's turn. Bots act, income is paid and the turn passes on.
func (s *TurnService) EndTurn(ctx context.Context, gameID, userID string) (supergame.TurnReport, error) {
	return s.endTurn(ctx, gameID, false, func(*supergame.GameState) (supergame.PlayerID, error) {
		return supergame.PlayerID(userID), nil
	})
}

// ForfeitTurn ends the current player's turn once its time limit has passed. It is a no-op for
// games that are not live, have no time limit or whose deadline lies in the future; the timer
// that triggered it may be stale.
func (s *TurnService) ForfeitTurn(ctx context.Context, gameID string) error {
	_, err := s.endTurn(ctx, gameID, true, func(gs *supergame.GameState) (supergame.PlayerID, error) {
		id, ok := s.expiredTurn(gs)
		if !ok {
			return "", errTurnNotExpired
		}
		return id, nil
	})
	if errors.Is(err, errTurnNotExpired) {
		return nil
	}
	return err
}

// endTurn ends the turn of the player chosen by pick, which runs under the game lock.
func (s *TurnService) endTurn(ctx context.Context, gameID string, forfeit bool, pick func(*supergame.GameState) (supergame.PlayerID, error)) (supergame.TurnReport, error) {
	action := "end_turn"
	if forfeit {
		action = "forfeit"
	}
	var (
		player supergame.PlayerID
		report supergame.TurnReport
	)
	gs, err := s.mutate(ctx, gameID, action, func(gs *supergame.GameState) error {
		var err error
		if player, err = pick(gs); err != nil {
			return err
		}
		report, err = supergame.EndTurn(gs, player, s.now(), s.bots)
		if err != nil {
			return err
		}
		closeAbandoned(gs, &report)
		return nil
	})
	if err != nil {
		return supergame.TurnReport{}, err
	}

	s.metrics.TurnEnded(ctx, forfeit)
	for _, bt := range report.Bots {
		for range bt.Captured {
			s.metrics.Combat(ctx, string(supergame.ResultCaptured), true)
		}
	}
	log.Info().Str("gameId", gameID).Str("playerId", string(player)).Uint32("round", report.Round).
		Int("bots", len(report.Bots)).Bool("forfeit", forfeit).Msg("Turn ended")

	s.broadcaster.BroadcastGameEvent(gameID, EventTurnEnded, map[string]any{
		"player":  string(player),
		"forfeit": forfeit,
		"report":  report,
	})
	if report.Completed {
		s.finishGame(ctx, gs)
	}
	return report, nil
}

func (s *TurnService) expiredTurn(gs *supergame.GameState) (supergame.PlayerID, bool) {
	if gs.Status != supergame.StatusLive || gs.TurnTimeLimit <= 0 {
		return "", false
	}
	if s.now().Before(gs.TurnTimestamp.Add(gs.TurnTimeLimit)) {
		return "", false
	}
	p, err := gs.CurrentPlayer()
	if err != nil || p.Open() {
		return "", false
	}
	return p.ID, true
}

// CheckExpiredTurns forfeits every live game whose turn deadline has passed.
func (s *TurnService) CheckExpiredTurns(ctx context.Context) {
	games, err := s.store.games.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active games")
		return
	}
	for _, g := range games {
		if err := s.ForfeitTurn(ctx, g.ID); err != nil {
			log.Error().Err(err).Str("gameId", g.ID).Msg("Forfeit failed from poller")
		}
	}
}

// finishGame records experience for every human and announces the result. The game itself is
// already saved; failures here are logged only.
func (s *TurnService) finishGame(ctx context.Context, gs *supergame.GameState) {
	for _, id := range gs.HumanIDs() {
		xp := participantExperience
		if id == gs.Winner {
			xp = winnerExperience
		}
		if err := s.profileRepo.CompleteGame(ctx, string(id), gs.ID, xp); err != nil {
			log.Error().Err(err).Str("gameId", gs.ID).Str("playerId", string(id)).Msg("Failed to update profile")
		}
	}

	botWon := false
	if p, err := gs.PlayerByID(gs.Winner); err == nil {
		botWon = p.IsBot
	}
	s.metrics.GameCompleted(ctx, botWon)
	s.broadcaster.BroadcastGameEvent(gs.ID, EventGameEnded, map[string]any{
		"winner": string(gs.Winner),
		"round":  gs.Round,
	})
	log.Info().Str("gameId", gs.ID).Str("winner", string(gs.Winner)).Uint32("round", gs.Round).Msg("Game completed")
}

// closeAbandoned completes a live game in which no human is left alive to end turns. No winner
// is recorded; a game with a single survivor was already completed by EndTurn.
func closeAbandoned(gs *supergame.GameState, report *supergame.TurnReport) {
	if gs.Status != supergame.StatusLive {
		return
	}
	for _, p := range gs.Players {
		if !p.Open() && !p.IsBot && p.Alive {
			return
		}
	}
	gs.Status = supergame.StatusCompleted
	report.Completed = true
}

// outcome labels an action failure for metrics.
func outcome(err error) string {
	if code := supergame.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, errTurnNotExpired) {
		return "not_expired"
	}
	return "error"
}
