package bot

import (
	"testing"

	"github.com/lunar-flights/super-game/pkg/supergame"
)

func TestPlanRecruits(t *testing.T) {
	a := supergame.Coord{Row: 1, Col: 1}
	b := supergame.Coord{Row: 1, Col: 2}
	c := supergame.Coord{Row: 2, Col: 1}
	d := supergame.Coord{Row: 2, Col: 2}

	tests := []struct {
		name    string
		balance uint32
		stacks  map[supergame.Coord]supergame.Stack
		want    []Recruit
	}{
		{
			name:    "broke",
			balance: 0,
			stacks:  map[supergame.Coord]supergame.Stack{a: {}},
			want:    nil,
		},
		{
			name:    "skips full and foreign stacks",
			balance: 100,
			stacks: map[supergame.Coord]supergame.Stack{
				a: supergame.NewStack(supergame.Infantry, DesiredStackSize),
				b: supergame.NewStack(supergame.Tank, 2),
				c: supergame.NewStack(supergame.Infantry, 25),
				d: {},
			},
			want: []Recruit{
				{Unit: supergame.Infantry, Quantity: 5, At: c},
				{Unit: supergame.Infantry, Quantity: DesiredStackSize, At: d},
			},
		},
		{
			name:    "stops when the money runs out",
			balance: 12,
			stacks:  map[supergame.Coord]supergame.Stack{a: {}, b: {}},
			want:    []Recruit{{Unit: supergame.Infantry, Quantity: 12, At: a}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Snapshot{Balance: tt.balance, Stacks: tt.stacks}
			for _, at := range []supergame.Coord{a, b, c, d} {
				if _, ok := tt.stacks[at]; ok {
					s.Owned = append(s.Owned, at)
				}
			}
			got := PlanRecruits(s)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d recruits, got %+v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("recruit %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestRecruitSkipsRefusedPurchase(t *testing.T) {
	gs := newGame(t)
	place(t, gs, botBase, baseTile(1, 0))
	gs.Players[1].Balance = 100

	snap := TakeSnapshot(gs, botID)
	snap.Balance = 100
	// A stale snapshot still lists the human's base as ours, ahead of the bot's own base.
	lost := supergame.Small.BasePositions()[0]
	snap.Owned = append([]supergame.Coord{lost}, snap.Owned...)
	snap.Stacks[lost] = supergame.Stack{}

	actor, err := supergame.ActAs(gs, botID)
	if err != nil {
		t.Fatal(err)
	}
	if err := (RecruitStrategy{}).Execute(actor, snap); err != nil {
		t.Fatalf("expected refused purchases to be skipped, got %v", err)
	}
	if got := tileAt(t, gs, botBase).Units.Quantity; got != DesiredStackSize {
		t.Errorf("expected the base topped up to %d, got %d", DesiredStackSize, got)
	}
	if owner := tileAt(t, gs, lost).Owner; owner == botID {
		t.Error("the lost tile must not change hands")
	}
}
