package supergame

// PlayerID identifies the owner of a tile or a seat in a game.
type PlayerID string

// Neutral is the owner of tiles nobody controls.
const Neutral PlayerID = ""

// UnitType represents the type of a military unit.
type UnitType string

const (
	Infantry UnitType = "infantry"
	Tank     UnitType = "tank"
	Plane    UnitType = "plane"
	Mutants  UnitType = "mutants" // neutral garrison, cannot be recruited
)

// AllUnitTypes returns the unit types in ascending cost order.
func AllUnitTypes() []UnitType {
	return []UnitType{Mutants, Infantry, Tank, Plane}
}

// Valid reports whether u is a known unit type.
func (u UnitType) Valid() bool {
	switch u {
	case Infantry, Tank, Plane, Mutants:
		return true
	}
	return false
}

// Strength is the combat power of a single unit.
func (u UnitType) Strength() uint32 {
	switch u {
	case Infantry, Mutants:
		return 1
	case Tank:
		return 3
	case Plane:
		return 4
	}
	return 0
}

// Cost is the price of recruiting one unit. Mutants cost nothing because they cannot be bought.
func (u UnitType) Cost() uint32 {
	switch u {
	case Infantry:
		return 1
	case Tank:
		return 3
	case Plane:
		return 5
	}
	return 0
}

// MaxStamina is the movement budget a stack of this type gets back every round.
func (u UnitType) MaxStamina() uint8 {
	switch u {
	case Infantry:
		return 1
	case Tank:
		return 3
	case Plane:
		return 5
	}
	return 0
}

// Purchasable reports whether the type can be recruited by a player.
func (u UnitType) Purchasable() bool {
	return u == Infantry || u == Tank || u == Plane
}

// RequiredBuilding is the building a tile needs before u can be recruited on it.
func (u UnitType) RequiredBuilding() BuildingType {
	switch u {
	case Tank:
		return TankFactory
	case Plane:
		return PlaneFactory
	}
	return NoBuilding
}

// Stack is the group of units stationed on a tile. A zero Quantity means the tile holds no units.
type Stack struct {
	Type     UnitType `json:"type"`
	Quantity uint16   `json:"quantity"`
	Stamina  uint8    `json:"stamina"`
}

// Empty reports whether the stack holds no units.
func (s Stack) Empty() bool {
	return s.Quantity == 0
}

// Power is the raw combat power of the stack.
func (s Stack) Power() uint32 {
	if s.Empty() {
		return 0
	}
	return uint32(s.Quantity) * s.Type.Strength()
}

// NewStack returns a stack of qty units at full stamina.
func NewStack(t UnitType, qty uint16) Stack {
	if qty == 0 {
		return Stack{}
	}
	return Stack{Type: t, Quantity: qty, Stamina: t.MaxStamina()}
}
