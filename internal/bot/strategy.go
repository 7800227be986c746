package bot

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/pkg/supergame"
)

// Strategy is one economic move a bot can make on its turn. Ready is the guard evaluated against
// the snapshot; Execute performs the move through the bot's Actor.
type Strategy interface {
	Name() string
	Ready(s Snapshot) bool
	Execute(a *supergame.Actor, s Snapshot) error
}

const (
	// DesiredStackSize is the garrison a bot tops every tile up to.
	DesiredStackSize = 30

	upgradeAtLevel1Units = 5
	upgradeAtLevel2Units = 20
	gasPlantMinUnits     = 10
)

// DefaultStrategies returns the economic plan in priority order: grow the base, build a gas plant,
// otherwise recruit.
func DefaultStrategies() []Strategy {
	return []Strategy{UpgradeBaseStrategy{}, GasPlantStrategy{}, RecruitStrategy{}}
}

// --- UpgradeBaseStrategy ---

// UpgradeBaseStrategy raises the base level once the army is big enough to protect it.
type UpgradeBaseStrategy struct{}

func (UpgradeBaseStrategy) Name() string { return "upgrade_base" }

func (UpgradeBaseStrategy) Ready(s Snapshot) bool {
	return (s.BaseLevel == 1 && s.TotalUnits >= upgradeAtLevel1Units) ||
		(s.BaseLevel == 2 && s.TotalUnits >= upgradeAtLevel2Units)
}

// Execute does nothing when the upgrade is unaffordable; the bot saves up instead.
func (UpgradeBaseStrategy) Execute(a *supergame.Actor, s Snapshot) error {
	cost, ok := supergame.Base.UpgradeCost(s.BaseLevel)
	if !ok || s.Balance < cost {
		return nil
	}
	_, err := a.Build(s.BaseAt, supergame.Base)
	return err
}

// --- GasPlantStrategy ---

// GasPlantStrategy builds the bot's first gas plant on a vacant tile.
type GasPlantStrategy struct{}

func (GasPlantStrategy) Name() string { return "build_gas_plant" }

func (GasPlantStrategy) Ready(s Snapshot) bool {
	cost, _ := supergame.GasPlant.ConstructionCost()
	return s.BaseLevel >= 2 && s.TotalUnits > gasPlantMinUnits && !s.HasGasPlant &&
		s.Balance >= cost && len(s.Vacant) > 0
}

func (GasPlantStrategy) Execute(a *supergame.Actor, s Snapshot) error {
	_, err := a.Build(s.Vacant[0], supergame.GasPlant)
	return err
}

// --- RecruitStrategy ---

// RecruitStrategy buys the units PlanRecruits asks for.
type RecruitStrategy struct{}

func (RecruitStrategy) Name() string { return "recruit" }

func (RecruitStrategy) Ready(Snapshot) bool { return true }

// Execute skips a purchase the rules refuse and goes on with the rest of the plan.
func (RecruitStrategy) Execute(a *supergame.Actor, s Snapshot) error {
	for _, r := range PlanRecruits(s) {
		err := a.Recruit(r.Unit, r.Quantity, r.At)
		if err == nil {
			continue
		}
		if !isRuleError(err) {
			return fmt.Errorf("recruit %d %s at %s: %w", r.Quantity, r.Unit, r.At, err)
		}
		log.Warn().Err(err).Str("bot", string(a.Player().ID)).Str("at", r.At.String()).
			Uint16("quantity", r.Quantity).Msg("Bot recruit refused")
	}
	return nil
}

// Recruit is a queued purchase.
type Recruit struct {
	Unit     supergame.UnitType
	Quantity uint16
	At       supergame.Coord
}

// PlanRecruits tops up infantry on every owned tile toward DesiredStackSize, in row-major order,
// until the money runs out. Tiles holding another unit type are left alone.
func PlanRecruits(s Snapshot) []Recruit {
	unit := supergame.Infantry
	cost := unit.Cost()
	balance := s.Balance
	var plan []Recruit
	for _, c := range s.Owned {
		if balance < cost {
			break
		}
		stack := s.Stacks[c]
		if !stack.Empty() && stack.Type != unit {
			continue
		}
		if stack.Quantity >= DesiredStackSize {
			continue
		}
		n := min(uint32(DesiredStackSize-stack.Quantity), balance/cost)
		plan = append(plan, Recruit{Unit: unit, Quantity: uint16(n), At: c})
		balance -= n * cost
	}
	return plan
}
