package supergame

// MoveKind describes what a successful move did.
type MoveKind string

const (
	MoveRelocated MoveKind = "relocated"
	MoveMerged    MoveKind = "merged"
	MoveSwapped   MoveKind = "swapped"
	MoveAttacked  MoveKind = "attacked"
)

// ResolveFriendlyMove moves the stack on src onto dst, a tile owned by the same player, paying
// cost stamina. It returns the new source and destination tiles without touching the inputs.
func ResolveFriendlyMove(src, dst Tile, cost uint8) (Tile, Tile, MoveKind, error) {
	mover := src.Units
	if mover.Empty() {
		return src, dst, "", ErrNoUnitsToMove
	}
	if mover.Stamina < cost {
		return src, dst, "", ErrNotEnoughStamina
	}

	switch {
	case !dst.HasUnits():
		mover.Stamina -= cost
		dst.Units = mover
		src.Units = Stack{}
		return src, dst, MoveRelocated, nil

	case dst.Units.Type == mover.Type:
		total := uint32(dst.Units.Quantity) + uint32(mover.Quantity)
		if total > maxQuantity {
			return src, dst, "", ErrTooManyUnits
		}
		dst.Units.Quantity = uint16(total)
		dst.Units.Stamina = min(dst.Units.Stamina, mover.Stamina-cost)
		src.Units = Stack{}
		return src, dst, MoveMerged, nil

	default:
		other := dst.Units
		if other.Stamina < cost {
			return src, dst, "", ErrTileOccupiedByOtherUnitType
		}
		mover.Stamina -= cost
		other.Stamina -= cost
		src.Units, dst.Units = other, mover
		return src, dst, MoveSwapped, nil
	}
}

const maxQuantity = 1<<16 - 1
