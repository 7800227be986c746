package supergame

import (
	"fmt"
	"time"
)

// BotPolicy decides and performs the actions of a bot seat during EndTurn.
type BotPolicy interface {
	TakeTurn(gs *GameState, seat int) (BotTurn, error)
}

// BotTurn summarizes what a bot did.
type BotTurn struct {
	Player   PlayerID `json:"player"`
	Strategy string   `json:"strategy"`
	Planned  int      `json:"plannedAttacks"`
	Executed int      `json:"executedAttacks"`
	Captured int      `json:"captures"`
}

// TurnReport summarizes an end-of-turn pass.
type TurnReport struct {
	Round      uint32              `json:"round"`
	Bots       []BotTurn           `json:"bots,omitempty"`
	Income     map[PlayerID]uint32 `json:"income"`
	Eliminated []PlayerID          `json:"eliminated,omitempty"`
	Completed  bool                `json:"completed"`
	Winner     PlayerID            `json:"winner,omitempty"`
	NextPlayer PlayerID            `json:"nextPlayer,omitempty"`
}

// EndTurn finishes the caller's turn: bots act when nobody else is left to move this round, then
// every tile pays its owner and refreshes its stack, eliminated players lose their territory, the
// game completes when at most one player is left and the turn passes on.
func EndTurn(gs *GameState, caller PlayerID, now time.Time, bots BotPolicy) (TurnReport, error) {
	if _, err := gs.requireTurn(caller); err != nil {
		return TurnReport{}, err
	}
	report := TurnReport{Round: gs.Round}

	if bots != nil && gs.botsActAfter(gs.CurrentPlayerIndex) {
		for seat, p := range gs.Players {
			if p.Open() || !p.IsBot || !gs.Players[seat].Alive {
				continue
			}
			bt, err := bots.TakeTurn(gs, seat)
			if err != nil {
				return TurnReport{}, fmt.Errorf("bot %s: %w", p.ID, err)
			}
			report.Bots = append(report.Bots, bt)
		}
	}

	report.Income = gs.collectIncome()
	gs.applyIncome(report.Income)
	report.Eliminated = gs.removeEliminated()

	if gs.AliveCount() <= 1 {
		gs.Status = StatusCompleted
		for _, p := range gs.Players {
			if !p.Open() && p.Alive {
				gs.Winner = p.ID
			}
		}
		report.Completed = true
		report.Winner = gs.Winner
	}

	gs.advance()
	gs.TurnTimestamp = now
	if next, err := gs.CurrentPlayer(); err == nil {
		report.NextPlayer = next.ID
	}
	return report, nil
}

// botsActAfter reports whether every human that still has to act this round has done so once the
// player at seat is finished.
func (gs *GameState) botsActAfter(seat int) bool {
	if !gs.Multiplayer {
		return true
	}
	for i := seat + 1; i < len(gs.Players); i++ {
		p := gs.Players[i]
		if !p.Open() && !p.IsBot && p.Alive {
			return false
		}
	}
	return true
}

// collectIncome restores every stack's stamina and sums tile yields per owner, visiting each tile
// once in row-major order.
func (gs *GameState) collectIncome() map[PlayerID]uint32 {
	income := make(map[PlayerID]uint32)
	for _, p := range gs.Players {
		if !p.Open() {
			income[p.ID] = 0
		}
	}
	g := gs.Grid
	for i := range g.cells {
		t, ok := g.cells[i].Tile()
		if !ok {
			continue
		}
		if t.HasUnits() {
			t.Units.Stamina = t.Units.Type.MaxStamina()
			g.cells[i] = OccupiedCell(t)
		}
		if !t.IsNeutral() {
			income[t.Owner] = satAdd(income[t.Owner], t.Yield())
		}
	}
	return income
}

func (gs *GameState) applyIncome(income map[PlayerID]uint32) {
	for i := range gs.Players {
		p := &gs.Players[i]
		if p.Open() {
			continue
		}
		p.Balance = satAdd(p.Balance, income[p.ID])
		p.AttackPoints = min(p.AttackPoints+gs.Rules.AttackPointRegen, gs.Rules.MaxAttackPoints)
	}
}

// removeEliminated marks every player without a Base as dead and wipes their tiles off the board.
// It returns the players that lost territory or their alive flag in this pass.
func (gs *GameState) removeEliminated() []PlayerID {
	hasBase := make(map[PlayerID]bool)
	owned := make(map[PlayerID]int)
	gs.Grid.Each(func(_ Coord, t Tile) {
		if t.IsNeutral() {
			return
		}
		owned[t.Owner]++
		if t.HasBase() {
			hasBase[t.Owner] = true
		}
	})

	var out []PlayerID
	for i := range gs.Players {
		p := &gs.Players[i]
		if p.Open() || hasBase[p.ID] {
			continue
		}
		if p.Alive || owned[p.ID] > 0 {
			out = append(out, p.ID)
		}
		p.Alive = false
		for _, c := range gs.Grid.TilesOwnedBy(p.ID) {
			gs.Grid.clear(c)
		}
	}
	return out
}

// advance moves the turn pointer. The lone human of a single player game always acts again; in
// multiplayer the next living human takes over and the round ends when the pointer wraps.
func (gs *GameState) advance() {
	if !gs.Multiplayer {
		gs.Round++
		return
	}
	n := len(gs.Players)
	cur := gs.CurrentPlayerIndex
	for step := 1; step <= n; step++ {
		i := (cur + step) % n
		p := gs.Players[i]
		if p.Open() || p.IsBot || !p.Alive {
			continue
		}
		if i <= cur {
			gs.Round++
		}
		gs.CurrentPlayerIndex = i
		return
	}
	gs.Round++
}
