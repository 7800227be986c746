package supergame

// CombatResult is the outcome class of an engagement.
type CombatResult string

const (
	// ResultFutile: the defense bonus absorbed the whole attack. The attackers are lost and the
	// target is untouched.
	ResultFutile CombatResult = "futile"
	// ResultStalemate: attacker and defender power were equal, both stacks are destroyed.
	ResultStalemate CombatResult = "stalemate"
	// ResultRepelled: the defender held, the attacking stack is destroyed.
	ResultRepelled CombatResult = "repelled"
	// ResultCaptured: the attacker took the tile.
	ResultCaptured CombatResult = "captured"
)

// Engagement is the pure result of one attack.
type Engagement struct {
	Result         CombatResult `json:"result"`
	AttackerPower  uint32       `json:"attackerPower"`
	EffectivePower uint32       `json:"effectivePower"`
	DefenderPower  uint32       `json:"defenderPower"`
	AttackerLosses uint16       `json:"attackerLosses"`
	DefenderLosses uint16       `json:"defenderLosses"`
	// Target is the new state of the attacked tile.
	Target Tile `json:"target"`
	// BaseDestroyed is set when the engagement razed a Base. EliminatedOwner is its former owner.
	BaseDestroyed   bool     `json:"baseDestroyed"`
	EliminatedOwner PlayerID `json:"eliminatedOwner,omitempty"`
}

// ResolveAttack computes what happens when attacker, owned by `by`, attacks target after paying
// moveCost stamina. The attacking stack always leaves its source tile; if it survives it is found
// on the returned Target.
func ResolveAttack(attacker Stack, by PlayerID, target Tile, moveCost uint8) Engagement {
	e := Engagement{
		AttackerPower: attacker.Power(),
		DefenderPower: target.DefenderPower(),
		Target:        target,
	}
	e.EffectivePower = satSub(e.AttackerPower, target.DefenseBonus())

	if e.EffectivePower == 0 {
		e.Result = ResultFutile
		e.AttackerLosses = attacker.Quantity
		return e
	}

	defUnits := target.Units
	defUnitPower := defUnits.Power()

	switch {
	case e.EffectivePower == e.DefenderPower:
		e.Result = ResultStalemate
		e.AttackerLosses = attacker.Quantity
		e.DefenderLosses = defUnits.Quantity
		e.Target.Units = Stack{}
		if target.HasBase() {
			e.razeBase(target.Owner)
		}

	case e.EffectivePower < e.DefenderPower:
		e.Result = ResultRepelled
		e.AttackerLosses = attacker.Quantity
		var remaining uint16
		if defUnitPower > 0 {
			q := ceilDiv(satSub(defUnitPower, e.EffectivePower), defUnits.Type.Strength())
			remaining = uint16(min(q, uint32(defUnits.Quantity)))
		}
		e.DefenderLosses = defUnits.Quantity - remaining
		if remaining == 0 {
			e.Target.Units = Stack{}
		} else {
			e.Target.Units.Quantity = remaining
		}

	default:
		e.Result = ResultCaptured
		q := ceilDiv(e.EffectivePower-e.DefenderPower, attacker.Type.Strength())
		survivors := uint16(min(q, uint32(attacker.Quantity)))
		e.AttackerLosses = attacker.Quantity - survivors
		e.DefenderLosses = defUnits.Quantity
		if target.HasBase() {
			e.razeBase(target.Owner)
		}
		e.Target.Owner = by
		e.Target.Building = Building{}
		e.Target.Units = Stack{
			Type:     attacker.Type,
			Quantity: survivors,
			Stamina:  satSub8(attacker.Stamina, moveCost),
		}
	}
	return e
}

func (e *Engagement) razeBase(owner PlayerID) {
	e.Target.Building = Building{}
	e.BaseDestroyed = true
	e.EliminatedOwner = owner
}

func satSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

func satSub8(a, b uint8) uint8 {
	if b >= a {
		return 0
	}
	return a - b
}

func satAdd(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
