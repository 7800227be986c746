package supergame

// Tile is one populated position of the board. Tiles are values: copying one copies its
// stack and building.
type Tile struct {
	Owner    PlayerID `json:"owner"`
	Level    uint8    `json:"level"`
	Units    Stack    `json:"units"`
	Building Building `json:"building"`
}

// IsNeutral reports whether nobody owns the tile.
func (t Tile) IsNeutral() bool {
	return t.Owner == Neutral
}

// HasUnits reports whether a stack is stationed on the tile.
func (t Tile) HasUnits() bool {
	return !t.Units.Empty()
}

// HasBase reports whether the tile carries a Base.
func (t Tile) HasBase() bool {
	return t.Building.Type == Base
}

// Yield is the currency the tile produces per round: one for top level terrain plus the building's
// income.
func (t Tile) Yield() uint32 {
	var y uint32
	if t.Level >= 3 {
		y = 1
	}
	return y + t.Building.Yield()
}

// DefenseBonus is subtracted from an attacker's power. Neutral tiles grant none.
func (t Tile) DefenseBonus() uint32 {
	if t.IsNeutral() {
		return 0
	}
	bonus := uint32(t.Level)
	if t.Building.Type == Fort {
		bonus += uint32(t.Building.Level)
	}
	return bonus
}

// DefenderPower is the total power an attacker has to exceed to take the tile.
func (t Tile) DefenderPower() uint32 {
	return t.Units.Power() + t.Building.Strength()
}

// DefaultMutants is the neutral garrison of a tile with the given terrain level.
func DefaultMutants(level uint8) Stack {
	switch level {
	case 1:
		return NewStack(Mutants, 1)
	case 2:
		return NewStack(Mutants, 3)
	case 3:
		return NewStack(Mutants, 8)
	}
	return Stack{}
}

// NeutralTile returns an unowned tile garrisoned by the default mutants for its level.
func NeutralTile(level uint8) Tile {
	return Tile{Owner: Neutral, Level: level, Units: DefaultMutants(level)}
}
