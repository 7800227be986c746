package supergame

// BuildingType represents the kind of structure erected on a tile.
type BuildingType string

const (
	NoBuilding   BuildingType = ""
	Base         BuildingType = "base"
	GasPlant     BuildingType = "gas_plant"
	TankFactory  BuildingType = "tank_factory"
	PlaneFactory BuildingType = "plane_factory"
	Fort         BuildingType = "fort"
)

// Valid reports whether b names a real building.
func (b BuildingType) Valid() bool {
	switch b {
	case Base, GasPlant, TankFactory, PlaneFactory, Fort:
		return true
	}
	return false
}

// MaxLevel is the highest level the building can be upgraded to.
func (b BuildingType) MaxLevel() uint8 {
	switch b {
	case Base, GasPlant, Fort:
		return 3
	case TankFactory, PlaneFactory:
		return 1
	}
	return 0
}

// ConstructionCost is the price of erecting a new level 1 building.
// A Base cannot be constructed, so it reports ok=false.
func (b BuildingType) ConstructionCost() (cost uint32, ok bool) {
	switch b {
	case GasPlant:
		return 12, true
	case TankFactory:
		return 15, true
	case PlaneFactory:
		return 25, true
	case Fort:
		return 10, true
	}
	return 0, false
}

// UpgradeCost is the price of raising the building from level to level+1.
func (b BuildingType) UpgradeCost(level uint8) (cost uint32, ok bool) {
	if level == 0 || level >= b.MaxLevel() {
		return 0, false
	}
	switch b {
	case Base:
		return [...]uint32{12, 22}[level-1], true
	case GasPlant:
		return [...]uint32{15, 25}[level-1], true
	case Fort:
		return [...]uint32{10, 20}[level-1], true
	}
	return 0, false
}

// Yield is the currency the building produces per round at the given level.
func (b BuildingType) Yield(level uint8) uint32 {
	if level == 0 {
		return 0
	}
	switch b {
	case Base:
		return [...]uint32{3, 4, 6}[min(level, 3)-1]
	case GasPlant:
		return uint32(min(level, 3))
	}
	return 0
}

// Strength is the defender power the building adds at the given level.
func (b BuildingType) Strength(level uint8) uint32 {
	switch b {
	case Base:
		return 5 * uint32(level)
	case Fort:
		return 2 * uint32(level)
	}
	return 0
}

// Building is a structure on a tile. The zero value means no building.
type Building struct {
	Type  BuildingType `json:"type"`
	Level uint8        `json:"level"`
}

// Empty reports whether there is no building.
func (b Building) Empty() bool {
	return b.Type == NoBuilding
}

// Yield is the building's per-round income.
func (b Building) Yield() uint32 {
	return b.Type.Yield(b.Level)
}

// Strength is the building's contribution to defender power.
func (b Building) Strength() uint32 {
	return b.Type.Strength(b.Level)
}
