package supergame

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the overall game status.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusLive       Status = "live"
	StatusCompleted  Status = "completed"
)

const (
	// MaxPlayers is the number of seats a game can have.
	MaxPlayers = 4
	// StartingBalance is the currency every player starts with.
	StartingBalance uint32 = 10
	// StartingInfantry is the garrison placed on every base at creation.
	StartingInfantry uint16 = 10
)

// Rules holds the tunable parts of the ruleset.
type Rules struct {
	Adjacency        Adjacency `json:"adjacency"`
	MaxAttackPoints  uint8     `json:"maxAttackPoints"`
	AttackPointRegen uint8     `json:"attackPointRegen"`
	StartAttackPoint uint8     `json:"startAttackPoints"`
}

// DefaultRules is the ruleset games are created with: eight-way movement with diagonal steps
// costing two stamina, one attack point per round up to three.
var DefaultRules = Rules{
	Adjacency:        Diagonal,
	MaxAttackPoints:  3,
	AttackPointRegen: 1,
	StartAttackPoint: 1,
}

// Player is a seat in a game. An open seat of a multiplayer lobby has an empty ID.
type Player struct {
	ID           PlayerID `json:"id"`
	IsBot        bool     `json:"isBot"`
	Balance      uint32   `json:"balance"`
	AttackPoints uint8    `json:"attackPoints"`
	Alive        bool     `json:"alive"`
}

// Open reports whether the seat is still waiting for a player.
func (p Player) Open() bool {
	return p.ID == ""
}

// GameState is the complete state of one game.
type GameState struct {
	ID                 string        `json:"id"`
	Creator            PlayerID      `json:"creator"`
	Players            []Player      `json:"players"`
	Status             Status        `json:"status"`
	Multiplayer        bool          `json:"multiplayer"`
	MapSize            MapSize       `json:"mapSize"`
	Round              uint32        `json:"round"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	TurnTimestamp      time.Time     `json:"turnTimestamp"`
	TurnTimeLimit      time.Duration `json:"turnTimeLimit"`
	Winner             PlayerID      `json:"winner,omitempty"`
	Rules              Rules         `json:"rules"`
	Grid               *Grid         `json:"grid"`
}

// PlayerIndex returns the seat of id.
func (gs *GameState) PlayerIndex(id PlayerID) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, p := range gs.Players {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Player returns the seat at index i.
func (gs *GameState) Player(i int) (*Player, error) {
	if i < 0 || i >= len(gs.Players) || gs.Players[i].Open() {
		return nil, fmt.Errorf("%w: seat %d", ErrInvalidPlayer, i)
	}
	return &gs.Players[i], nil
}

// PlayerByID returns the seat held by id.
func (gs *GameState) PlayerByID(id PlayerID) (*Player, error) {
	i, ok := gs.PlayerIndex(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlayer, id)
	}
	return &gs.Players[i], nil
}

// CurrentPlayer returns the player whose turn it is.
func (gs *GameState) CurrentPlayer() (*Player, error) {
	return gs.Player(gs.CurrentPlayerIndex)
}

// AliveCount returns the number of seated players still alive.
func (gs *GameState) AliveCount() int {
	n := 0
	for _, p := range gs.Players {
		if !p.Open() && p.Alive {
			n++
		}
	}
	return n
}

// HumanIDs returns the seated human players in seat order.
func (gs *GameState) HumanIDs() []PlayerID {
	var ids []PlayerID
	for _, p := range gs.Players {
		if !p.Open() && !p.IsBot {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// OpenSeats returns how many seats still wait for a player.
func (gs *GameState) OpenSeats() int {
	n := 0
	for _, p := range gs.Players {
		if p.Open() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the game state.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.Players = make([]Player, len(gs.Players))
	copy(c.Players, gs.Players)
	if gs.Grid != nil {
		c.Grid = gs.Grid.Clone()
	}
	return &c
}

// requireLive rejects actions on games that are waiting for players or already finished.
func (gs *GameState) requireLive() error {
	if gs.Status != StatusLive {
		return fmt.Errorf("%w: status %s", ErrGameNotLive, gs.Status)
	}
	return nil
}

// requireTurn checks that caller is a living player whose turn it is.
func (gs *GameState) requireTurn(caller PlayerID) (*Player, error) {
	if err := gs.requireLive(); err != nil {
		return nil, err
	}
	p, err := gs.PlayerByID(caller)
	if err != nil {
		return nil, err
	}
	if gs.Players[gs.CurrentPlayerIndex].ID != caller || !p.Alive {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

type gridJSON struct {
	Size  MapSize   `json:"size"`
	Tiles [][]*Tile `json:"tiles"`
}

// MarshalJSON encodes the grid as a matrix where empty cells are null.
func (g *Grid) MarshalJSON() ([]byte, error) {
	out := gridJSON{Size: g.size, Tiles: make([][]*Tile, g.dim)}
	for r := range out.Tiles {
		out.Tiles[r] = make([]*Tile, g.dim)
		for c := range out.Tiles[r] {
			if t, ok := g.cells[r*g.dim+c].Tile(); ok {
				out.Tiles[r][c] = &t
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a grid written by MarshalJSON.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var in gridJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	dim := in.Size.Dimension()
	if dim == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidMapSize, in.Size)
	}
	if len(in.Tiles) != dim {
		return fmt.Errorf("grid: expected %d rows, got %d", dim, len(in.Tiles))
	}
	g.size, g.dim, g.cells = in.Size, dim, make([]Cell, dim*dim)
	for r, row := range in.Tiles {
		if len(row) != dim {
			return fmt.Errorf("grid: row %d has %d cells, want %d", r, len(row), dim)
		}
		for c, t := range row {
			if t != nil {
				g.cells[r*dim+c] = OccupiedCell(*t)
			}
		}
	}
	return nil
}

// Marshal encodes the game state for storage.
func Marshal(gs *GameState) ([]byte, error) {
	return json.Marshal(gs)
}

// Unmarshal decodes a game state written by Marshal.
func Unmarshal(data []byte) (*GameState, error) {
	var gs GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	if gs.Grid == nil {
		return nil, fmt.Errorf("decode game state: missing grid")
	}
	return &gs, nil
}
