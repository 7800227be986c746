package supergame

import (
	"errors"
	"fmt"
)

// ErrorKind groups rule violations so callers can react to a category rather than a code.
type ErrorKind int

const (
	// KindAuthorization: the caller may not act (not their turn, not their tile).
	KindAuthorization ErrorKind = iota + 1
	// KindBounds: a coordinate, tile or player slot does not exist.
	KindBounds
	// KindResource: not enough currency, stamina or attack points, or a quantity overflow.
	KindResource
	// KindConflict: the state does not allow the action (unit type clash, missing factory, ...).
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindBounds:
		return "bounds"
	case KindResource:
		return "resource"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// RuleError describes why an action was rejected. Rejected actions never change the game.
type RuleError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func ruleErr(kind ErrorKind, code, msg string) *RuleError {
	return &RuleError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNotYourTurn   = ruleErr(KindAuthorization, "not_your_turn", "not your turn")
	ErrTileNotOwned  = ruleErr(KindAuthorization, "tile_not_owned", "tile is not owned by player")
	ErrInvalidPlayer = ruleErr(KindAuthorization, "invalid_player", "player is not part of this game")

	ErrOutOfBounds        = ruleErr(KindBounds, "out_of_bounds", "coordinates out of bounds")
	ErrInvalidTile        = ruleErr(KindBounds, "invalid_tile", "no tile at coordinates")
	ErrInvalidMovement    = ruleErr(KindBounds, "invalid_movement", "destination is not adjacent")
	ErrInvalidMapSize     = ruleErr(KindBounds, "invalid_map_size", "invalid map size")
	ErrInvalidPlayerCount = ruleErr(KindBounds, "invalid_player_count", "a game needs 2 to 4 players")

	ErrNoUnitsToMove         = ruleErr(KindResource, "no_units_to_move", "no units to move")
	ErrNotEnoughStamina      = ruleErr(KindResource, "not_enough_stamina", "not enough stamina")
	ErrNotEnoughAttackPoints = ruleErr(KindResource, "not_enough_attack_points", "not enough attack points")
	ErrInsufficientFunds     = ruleErr(KindResource, "insufficient_funds", "insufficient funds")
	ErrTooManyUnits          = ruleErr(KindResource, "too_many_units", "too many units")
	ErrInvalidQuantity       = ruleErr(KindResource, "invalid_quantity", "quantity must be positive")
	ErrBotKeyNotFound        = ruleErr(KindResource, "bot_key_not_found", "no bot identity left for this game")

	ErrTileOccupiedByOtherUnitType = ruleErr(KindConflict, "tile_occupied_by_other_unit_type", "tile is occupied by another unit type")
	ErrDifferentUnitTypeOnTile     = ruleErr(KindConflict, "different_unit_type_on_tile", "a different unit type is stationed on the tile")
	ErrRequiresTankFactory         = ruleErr(KindConflict, "requires_tank_factory", "tanks require a tank factory")
	ErrRequiresPlaneFactory        = ruleErr(KindConflict, "requires_plane_factory", "planes require a plane factory")
	ErrInvalidUnitType             = ruleErr(KindConflict, "invalid_unit_type", "unit type cannot be recruited")
	ErrInvalidBuildingType         = ruleErr(KindConflict, "invalid_building_type", "unknown building type")
	ErrBuildingTypeMismatch        = ruleErr(KindConflict, "building_type_mismatch", "tile already has a different building")
	ErrMaxLevelReached             = ruleErr(KindConflict, "max_level_reached", "building is at max level")
	ErrCannotBuildBase             = ruleErr(KindConflict, "cannot_build_base", "a base cannot be constructed")
	ErrGameNotLive                 = ruleErr(KindConflict, "game_not_live", "game is not in progress")
	ErrGameAlreadyStarted          = ruleErr(KindConflict, "game_already_started", "game has already started")
	ErrGameIsFull                  = ruleErr(KindConflict, "game_is_full", "game is full")
	ErrPlayerAlreadyInGame         = ruleErr(KindConflict, "player_already_in_game", "player is already in this game")
	ErrGameIsSinglePlayer          = ruleErr(KindConflict, "game_is_single_player", "single player games cannot be joined")
)

// KindOf returns the category of a rule violation found anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// CodeOf returns the machine-readable code of a rule violation in err's chain, or "".
func CodeOf(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// wrap attaches detail to a sentinel without losing errors.Is matching.
func wrap(sentinel *RuleError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
