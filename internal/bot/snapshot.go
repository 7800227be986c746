package bot

import "github.com/lunar-flights/super-game/pkg/supergame"

// Snapshot is what a bot knows about its own position when it picks a strategy.
type Snapshot struct {
	Player      supergame.PlayerID
	Balance     uint32
	BaseAt      supergame.Coord
	BaseLevel   uint8 // 0 when the bot has no base
	TotalUnits  uint32
	HasGasPlant bool
	Owned       []supergame.Coord // row-major
	Vacant      []supergame.Coord // owned tiles without a building, row-major
	Stacks      map[supergame.Coord]supergame.Stack
}

// TakeSnapshot summarizes the holdings of player id.
func TakeSnapshot(gs *supergame.GameState, id supergame.PlayerID) Snapshot {
	s := Snapshot{Player: id, Stacks: make(map[supergame.Coord]supergame.Stack)}
	if p, err := gs.PlayerByID(id); err == nil {
		s.Balance = p.Balance
	}
	gs.Grid.Each(func(c supergame.Coord, t supergame.Tile) {
		if t.Owner != id {
			return
		}
		s.Owned = append(s.Owned, c)
		s.Stacks[c] = t.Units
		s.TotalUnits += uint32(t.Units.Quantity)
		switch t.Building.Type {
		case supergame.Base:
			s.BaseAt, s.BaseLevel = c, t.Building.Level
		case supergame.GasPlant:
			s.HasGasPlant = true
		case supergame.NoBuilding:
			s.Vacant = append(s.Vacant, c)
		}
	})
	return s
}
