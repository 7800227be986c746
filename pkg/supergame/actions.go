package supergame

import "fmt"

// MoveResult describes a successful MoveUnit.
type MoveResult struct {
	Kind       MoveKind    `json:"kind"`
	From       Coord       `json:"from"`
	To         Coord       `json:"to"`
	Cost       uint8       `json:"cost"`
	Engagement *Engagement `json:"engagement,omitempty"`
}

// MoveUnit moves the stack on from to the adjacent tile to. Moving onto an owned tile relocates,
// merges or swaps stacks; moving onto any other tile is an attack and costs one attack point.
// Nothing changes unless every check passes.
func MoveUnit(gs *GameState, caller PlayerID, from, to Coord) (MoveResult, error) {
	p, err := gs.requireTurn(caller)
	if err != nil {
		return MoveResult{}, err
	}
	src, dst, cost, err := gs.checkMove(caller, from, to)
	if err != nil {
		return MoveResult{}, err
	}
	res := MoveResult{From: from, To: to, Cost: cost}

	if dst.Owner == caller {
		newSrc, newDst, kind, err := ResolveFriendlyMove(src, dst, cost)
		if err != nil {
			return MoveResult{}, fmt.Errorf("move %s -> %s: %w", from, to, err)
		}
		gs.Grid.writeBack(from, newSrc, to, newDst)
		res.Kind = kind
		return res, nil
	}

	if p.AttackPoints == 0 {
		return MoveResult{}, ErrNotEnoughAttackPoints
	}
	p.AttackPoints--
	e := gs.applyEngagement(caller, from, src, to, dst, cost)
	res.Kind = MoveAttacked
	res.Engagement = &e
	return res, nil
}

// Actor performs actions for one player outside of that player's turn. Bots act through an
// Actor while the human's turn is being ended; they spend currency like anyone else but are not
// limited by attack points.
type Actor struct {
	gs *GameState
	p  *Player
}

// ActAs returns an Actor for the living player id.
func ActAs(gs *GameState, id PlayerID) (*Actor, error) {
	if err := gs.requireLive(); err != nil {
		return nil, err
	}
	p, err := gs.PlayerByID(id)
	if err != nil {
		return nil, err
	}
	if !p.Alive {
		return nil, fmt.Errorf("%w: %s is eliminated", ErrInvalidPlayer, id)
	}
	return &Actor{gs: gs, p: p}, nil
}

// Player returns a copy of the acting player's seat.
func (a *Actor) Player() Player { return *a.p }

// Recruit buys units like RecruitUnits.
func (a *Actor) Recruit(ut UnitType, qty uint16, at Coord) error {
	return recruit(a.gs, a.p, ut, qty, at)
}

// Build erects or upgrades a building like BuildConstruction.
func (a *Actor) Build(at Coord, bt BuildingType) (Building, error) {
	return build(a.gs, a.p, at, bt)
}

// Engage attacks the non-owned tile to with the stack on from.
func (a *Actor) Engage(from, to Coord) (Engagement, error) {
	src, dst, cost, err := a.gs.checkMove(a.p.ID, from, to)
	if err != nil {
		return Engagement{}, err
	}
	if dst.Owner == a.p.ID {
		return Engagement{}, wrap(ErrInvalidMovement, "%s is already owned", to)
	}
	return a.gs.applyEngagement(a.p.ID, from, src, to, dst, cost), nil
}

// checkMove runs the checks shared by moves and attacks and returns copies of both tiles.
func (gs *GameState) checkMove(by PlayerID, from, to Coord) (src, dst Tile, cost uint8, err error) {
	if src, err = gs.Grid.Tile(from); err != nil {
		return
	}
	if dst, err = gs.Grid.Tile(to); err != nil {
		return
	}
	if src.Owner != by {
		err = wrap(ErrTileNotOwned, "%s", from)
		return
	}
	if !src.HasUnits() {
		err = wrap(ErrNoUnitsToMove, "%s", from)
		return
	}
	var ok bool
	if cost, ok = MoveCost(from, to, gs.Rules.Adjacency); !ok {
		err = wrap(ErrInvalidMovement, "%s -> %s", from, to)
		return
	}
	if src.Units.Stamina < cost {
		err = wrap(ErrNotEnoughStamina, "need %d, have %d", cost, src.Units.Stamina)
	}
	return
}

func (gs *GameState) applyEngagement(by PlayerID, from Coord, src Tile, to Coord, dst Tile, cost uint8) Engagement {
	e := ResolveAttack(src.Units, by, dst, cost)
	src.Units = Stack{}
	gs.Grid.writeBack(from, src, to, e.Target)
	if e.BaseDestroyed && e.EliminatedOwner != Neutral {
		if loser, err := gs.PlayerByID(e.EliminatedOwner); err == nil {
			loser.Alive = false
		}
	}
	return e
}

// RecruitUnits buys qty units of type ut on the caller's tile at. Tanks and planes need the
// matching factory on that tile, and an existing stack must be of the same type.
func RecruitUnits(gs *GameState, caller PlayerID, ut UnitType, qty uint16, at Coord) error {
	p, err := gs.requireTurn(caller)
	if err != nil {
		return err
	}
	return recruit(gs, p, ut, qty, at)
}

func recruit(gs *GameState, p *Player, ut UnitType, qty uint16, at Coord) error {
	if qty == 0 {
		return ErrInvalidQuantity
	}
	if !ut.Purchasable() {
		return wrap(ErrInvalidUnitType, "%q", ut)
	}
	t, err := gs.Grid.Tile(at)
	if err != nil {
		return err
	}
	if t.Owner != p.ID {
		return wrap(ErrTileNotOwned, "%s", at)
	}
	if t.HasUnits() && t.Units.Type != ut {
		return wrap(ErrDifferentUnitTypeOnTile, "%s holds %s", at, t.Units.Type)
	}
	switch ut.RequiredBuilding() {
	case TankFactory:
		if t.Building.Type != TankFactory {
			return ErrRequiresTankFactory
		}
	case PlaneFactory:
		if t.Building.Type != PlaneFactory {
			return ErrRequiresPlaneFactory
		}
	}
	cost := uint32(qty) * ut.Cost()
	if p.Balance < cost {
		return wrap(ErrInsufficientFunds, "need %d, have %d", cost, p.Balance)
	}
	if uint32(t.Units.Quantity)+uint32(qty) > maxQuantity {
		return ErrTooManyUnits
	}

	if t.HasUnits() {
		t.Units.Quantity += qty
	} else {
		t.Units = NewStack(ut, qty)
	}
	p.Balance -= cost
	gs.Grid.set(at, t)
	return nil
}

// BuildConstruction erects a new building on the caller's empty tile, or upgrades the building of
// the same type already standing there. Bases can only be upgraded.
func BuildConstruction(gs *GameState, caller PlayerID, at Coord, bt BuildingType) (Building, error) {
	p, err := gs.requireTurn(caller)
	if err != nil {
		return Building{}, err
	}
	return build(gs, p, at, bt)
}

func build(gs *GameState, p *Player, at Coord, bt BuildingType) (Building, error) {
	if !bt.Valid() {
		return Building{}, wrap(ErrInvalidBuildingType, "%q", bt)
	}
	t, err := gs.Grid.Tile(at)
	if err != nil {
		return Building{}, err
	}
	if t.Owner != p.ID {
		return Building{}, wrap(ErrTileNotOwned, "%s", at)
	}

	var cost uint32
	next := Building{Type: bt, Level: 1}
	if !t.Building.Empty() {
		if t.Building.Type != bt {
			return Building{}, wrap(ErrBuildingTypeMismatch, "%s holds %s", at, t.Building.Type)
		}
		c, ok := bt.UpgradeCost(t.Building.Level)
		if !ok {
			return Building{}, ErrMaxLevelReached
		}
		cost = c
		next.Level = t.Building.Level + 1
	} else {
		c, ok := bt.ConstructionCost()
		if !ok {
			return Building{}, ErrCannotBuildBase
		}
		cost = c
	}
	if p.Balance < cost {
		return Building{}, wrap(ErrInsufficientFunds, "need %d, have %d", cost, p.Balance)
	}

	p.Balance -= cost
	t.Building = next
	gs.Grid.set(at, t)
	return next, nil
}
