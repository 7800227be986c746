package bot

import "github.com/lunar-flights/super-game/pkg/supergame"

// Attack is a queued engagement.
type Attack struct {
	From supergame.Coord
	To   supergame.Coord
}

// PlanAttacks picks at most one target per owned tile: the first neighbour in row-major order
// that the bot does not own, that the stack has the stamina to reach, and whose defence it
// strictly overpowers. Planning reads a frozen copy of the grid so one tile's decision never
// depends on another tile's outcome.
func PlanAttacks(gs *supergame.GameState, id supergame.PlayerID) []Attack {
	grid := gs.Grid.Clone()
	adj := gs.Rules.Adjacency
	var plan []Attack
	for _, from := range grid.TilesOwnedBy(id) {
		src, _ := grid.Tile(from)
		if !src.HasUnits() || src.Units.Stamina == 0 {
			continue
		}
		for _, to := range grid.Neighbors(from, adj) {
			dst, _ := grid.Tile(to)
			if dst.Owner == id {
				continue
			}
			cost, ok := supergame.MoveCost(from, to, adj)
			if !ok || cost > src.Units.Stamina {
				continue
			}
			effective := src.Units.Power()
			if bonus := dst.DefenseBonus(); bonus < effective {
				effective -= bonus
			} else {
				effective = 0
			}
			if effective > dst.DefenderPower() {
				plan = append(plan, Attack{From: from, To: to})
				break
			}
		}
	}
	return plan
}
