package supergame

import "testing"

func TestAttackNeutralMutants(t *testing.T) {
	target := Tile{Owner: Neutral, Level: 2, Units: NewStack(Mutants, 3)}
	e := ResolveAttack(NewStack(Infantry, 10), "alice", target, 1)

	if e.Result != ResultCaptured {
		t.Fatalf("expected capture, got %s", e.Result)
	}
	if e.EffectivePower != 10 || e.DefenderPower != 3 {
		t.Errorf("expected 10 vs 3, got %d vs %d", e.EffectivePower, e.DefenderPower)
	}
	if e.Target.Owner != "alice" {
		t.Errorf("expected alice to own the tile, got %q", e.Target.Owner)
	}
	if e.Target.Units.Quantity != 7 || e.Target.Units.Type != Infantry {
		t.Errorf("expected 7 infantry, got %d %s", e.Target.Units.Quantity, e.Target.Units.Type)
	}
	if e.Target.Units.Stamina != 0 {
		t.Errorf("expected stamina 0 after paying the move, got %d", e.Target.Units.Stamina)
	}
	if e.AttackerLosses != 3 || e.DefenderLosses != 3 {
		t.Errorf("expected losses 3/3, got %d/%d", e.AttackerLosses, e.DefenderLosses)
	}
}

func TestAttackEqualTanksDestroyBoth(t *testing.T) {
	tests := []struct {
		name     string
		attacker Stack
		target   Tile
	}{
		{"no defense bonus", NewStack(Tank, 4), Tile{Owner: Neutral, Level: 1, Units: NewStack(Tank, 4)}},
		{"bonus offsets extra tank", NewStack(Tank, 5), Tile{Owner: "bob", Level: 3, Units: NewStack(Tank, 4)}},
	}
	for _, tt := range tests {
		e := ResolveAttack(tt.attacker, "alice", tt.target, 1)
		if e.Result != ResultStalemate {
			t.Errorf("%s: expected stalemate, got %s", tt.name, e.Result)
			continue
		}
		if e.Target.HasUnits() {
			t.Errorf("%s: expected no units left, got %d", tt.name, e.Target.Units.Quantity)
		}
		if e.Target.Owner != tt.target.Owner {
			t.Errorf("%s: ownership should not change on a stalemate", tt.name)
		}
	}
}

func TestAttackCapturesBase(t *testing.T) {
	target := Tile{Owner: "bob", Level: 1, Units: NewStack(Infantry, 2), Building: Building{Base, 1}}
	e := ResolveAttack(NewStack(Infantry, 9), "alice", target, 1)

	if e.Result != ResultCaptured {
		t.Fatalf("expected capture, got %s", e.Result)
	}
	if !e.BaseDestroyed || e.EliminatedOwner != "bob" {
		t.Errorf("expected bob's base destroyed, got destroyed=%v owner=%q", e.BaseDestroyed, e.EliminatedOwner)
	}
	if !e.Target.Building.Empty() {
		t.Errorf("expected no building, got %s", e.Target.Building.Type)
	}
	if e.Target.Units.Quantity != 1 {
		t.Errorf("expected 1 survivor, got %d", e.Target.Units.Quantity)
	}
}

func TestAttackStalemateOnBaseRazesIt(t *testing.T) {
	// 6 infantry against a level 1 tile: effective 5 equals the level 1 base strength.
	target := Tile{Owner: "bob", Level: 1, Building: Building{Base, 1}}
	e := ResolveAttack(NewStack(Infantry, 6), "alice", target, 1)
	if e.Result != ResultStalemate {
		t.Fatalf("expected stalemate, got %s", e.Result)
	}
	if !e.BaseDestroyed || e.Target.Owner != "bob" {
		t.Errorf("expected base razed and ownership kept, got destroyed=%v owner=%q", e.BaseDestroyed, e.Target.Owner)
	}
}

func TestAttackCaptureRemovesOtherBuildings(t *testing.T) {
	target := Tile{Owner: "bob", Level: 1, Building: Building{GasPlant, 2}}
	e := ResolveAttack(NewStack(Infantry, 3), "alice", target, 1)
	if e.Result != ResultCaptured || !e.Target.Building.Empty() || e.BaseDestroyed {
		t.Errorf("expected capture removing the gas plant, got %s building=%s", e.Result, e.Target.Building.Type)
	}
}

func TestAttackFutile(t *testing.T) {
	target := Tile{Owner: "bob", Level: 2, Units: NewStack(Infantry, 1)}
	e := ResolveAttack(NewStack(Infantry, 2), "alice", target, 1)
	if e.Result != ResultFutile {
		t.Fatalf("expected futile attack, got %s", e.Result)
	}
	if e.Target != target {
		t.Error("futile attack must leave the target unchanged")
	}
	if e.AttackerLosses != 2 {
		t.Errorf("expected the whole attacking stack lost, got %d", e.AttackerLosses)
	}
}

func TestAttackRepelled(t *testing.T) {
	tests := []struct {
		name     string
		attacker Stack
		target   Tile
		left     uint16
	}{
		{"infantry holds", NewStack(Infantry, 3), Tile{Owner: "bob", Level: 1, Units: NewStack(Infantry, 5)}, 3},
		{"tank rounding up", NewStack(Infantry, 4), Tile{Owner: "bob", Level: 1, Units: NewStack(Tank, 2)}, 1},
		{"fort absorbs the rest", NewStack(Infantry, 3), Tile{Owner: "bob", Level: 1, Building: Building{Fort, 1}}, 0},
		{"building soaks the whole attack", NewStack(Infantry, 6), Tile{Owner: "bob", Level: 1, Units: NewStack(Infantry, 1), Building: Building{Base, 1}}, 0},
	}
	for _, tt := range tests {
		e := ResolveAttack(tt.attacker, "alice", tt.target, 1)
		if e.Result != ResultRepelled {
			t.Errorf("%s: expected repelled, got %s", tt.name, e.Result)
			continue
		}
		if e.Target.Units.Quantity != tt.left {
			t.Errorf("%s: expected %d defenders left, got %d", tt.name, tt.left, e.Target.Units.Quantity)
		}
		if tt.left == 0 && e.Target.Units != (Stack{}) {
			t.Errorf("%s: an emptied stack must be absent, got %+v", tt.name, e.Target.Units)
		}
		if e.Target.Owner != "bob" {
			t.Errorf("%s: ownership must not change", tt.name)
		}
	}
}

func TestAttackSurvivorsNeverGrow(t *testing.T) {
	types := []UnitType{Infantry, Tank, Plane}
	for _, at := range types {
		for _, dt := range types {
			for aq := uint16(1); aq <= 20; aq++ {
				for dq := uint16(0); dq <= 20; dq++ {
					for level := uint8(1); level <= 3; level++ {
						target := Tile{Owner: "bob", Level: level, Units: NewStack(dt, dq)}
						e := ResolveAttack(NewStack(at, aq), "alice", target, 1)
						switch e.Result {
						case ResultCaptured:
							if e.Target.Units.Quantity == 0 || e.Target.Units.Quantity > aq {
								t.Fatalf("%d %s vs %d %s: %d survivors", aq, at, dq, dt, e.Target.Units.Quantity)
							}
						case ResultRepelled, ResultFutile:
							if e.Target.Units.Quantity > dq {
								t.Fatalf("%d %s vs %d %s: defenders grew to %d", aq, at, dq, dt, e.Target.Units.Quantity)
							}
						}
					}
				}
			}
		}
	}
}

func TestFriendlyMove(t *testing.T) {
	src := Tile{Owner: "a", Level: 1, Units: Stack{Infantry, 5, 3}}

	t.Run("relocate", func(t *testing.T) {
		s, d, kind, err := ResolveFriendlyMove(src, Tile{Owner: "a", Level: 1}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if kind != MoveRelocated || s.HasUnits() || d.Units != (Stack{Infantry, 5, 2}) {
			t.Errorf("unexpected relocate result: %s %+v %+v", kind, s.Units, d.Units)
		}
	})

	t.Run("merge keeps lower stamina", func(t *testing.T) {
		dst := Tile{Owner: "a", Level: 1, Units: Stack{Infantry, 4, 3}}
		_, d, kind, err := ResolveFriendlyMove(src, dst, 2)
		if err != nil {
			t.Fatal(err)
		}
		if kind != MoveMerged || d.Units.Quantity != 9 || d.Units.Stamina != 1 {
			t.Errorf("unexpected merge result: %s %+v", kind, d.Units)
		}
	})

	t.Run("merge overflow", func(t *testing.T) {
		dst := Tile{Owner: "a", Level: 1, Units: Stack{Infantry, maxQuantity, 1}}
		if _, _, _, err := ResolveFriendlyMove(src, dst, 1); err != ErrTooManyUnits {
			t.Errorf("expected ErrTooManyUnits, got %v", err)
		}
	})

	t.Run("swap", func(t *testing.T) {
		dst := Tile{Owner: "a", Level: 1, Units: Stack{Tank, 2, 3}}
		s, d, kind, err := ResolveFriendlyMove(src, dst, 2)
		if err != nil {
			t.Fatal(err)
		}
		if kind != MoveSwapped || s.Units != (Stack{Tank, 2, 1}) || d.Units != (Stack{Infantry, 5, 1}) {
			t.Errorf("unexpected swap result: %s %+v %+v", kind, s.Units, d.Units)
		}
	})

	t.Run("swap blocked by tired stack", func(t *testing.T) {
		dst := Tile{Owner: "a", Level: 1, Units: Stack{Tank, 2, 0}}
		s, d, _, err := ResolveFriendlyMove(src, dst, 1)
		if err != ErrTileOccupiedByOtherUnitType {
			t.Fatalf("expected ErrTileOccupiedByOtherUnitType, got %v", err)
		}
		if s != src || d != dst {
			t.Error("failed swap must not change either tile")
		}
	})
}
