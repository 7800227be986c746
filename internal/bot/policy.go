package bot

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/pkg/supergame"
)

// Policy is the decision procedure of every bot seat. It runs the first ready strategy and then,
// independently, an attack pass.
type Policy struct {
	strategies []Strategy
	attacks    bool
}

// Option configures a Policy.
type Option func(*Policy)

// WithStrategies replaces the economic plan.
func WithStrategies(s ...Strategy) Option {
	return func(p *Policy) { p.strategies = s }
}

// WithoutAttacks disables the attack pass, leaving a purely economic bot.
func WithoutAttacks() Option {
	return func(p *Policy) { p.attacks = false }
}

// NewPolicy returns the default bot policy.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{strategies: DefaultStrategies(), attacks: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PolicyForDifficulty maps a difficulty name to a policy. "passive" bots never attack.
func PolicyForDifficulty(difficulty string) *Policy {
	switch difficulty {
	case "passive":
		return NewPolicy(WithoutAttacks())
	default:
		return NewPolicy()
	}
}

// TakeTurn implements supergame.BotPolicy. Rule violations raised by a strategy or a stale attack
// are logged and skipped; the bot simply does less this turn.
func (p *Policy) TakeTurn(gs *supergame.GameState, seat int) (supergame.BotTurn, error) {
	if seat < 0 || seat >= len(gs.Players) {
		return supergame.BotTurn{}, fmt.Errorf("bot seat %d out of range", seat)
	}
	id := gs.Players[seat].ID
	actor, err := supergame.ActAs(gs, id)
	if err != nil {
		return supergame.BotTurn{}, err
	}
	turn := supergame.BotTurn{Player: id}

	snap := TakeSnapshot(gs, id)
	for _, s := range p.strategies {
		if !s.Ready(snap) {
			continue
		}
		turn.Strategy = s.Name()
		if err := s.Execute(actor, snap); err != nil {
			if !isRuleError(err) {
				return turn, fmt.Errorf("%s: %w", s.Name(), err)
			}
			log.Warn().Err(err).Str("bot", string(id)).Str("strategy", s.Name()).Msg("Bot strategy refused")
		}
		break
	}

	if p.attacks {
		plan := PlanAttacks(gs, id)
		turn.Planned = len(plan)
		for _, a := range plan {
			e, err := actor.Engage(a.From, a.To)
			if err != nil {
				if isRuleError(err) {
					log.Warn().Err(err).Str("bot", string(id)).
						Str("from", a.From.String()).Str("to", a.To.String()).Msg("Bot attack refused")
					continue
				}
				return turn, fmt.Errorf("attack %s -> %s: %w", a.From, a.To, err)
			}
			turn.Executed++
			if e.Result == supergame.ResultCaptured {
				turn.Captured++
			}
		}
	}

	log.Debug().Str("bot", string(id)).Str("strategy", turn.Strategy).
		Int("planned", turn.Planned).Int("executed", turn.Executed).Int("captured", turn.Captured).
		Msg("Bot turn")
	return turn, nil
}

func isRuleError(err error) bool {
	var re *supergame.RuleError
	return errors.As(err, &re)
}
