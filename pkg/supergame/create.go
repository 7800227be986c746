package supergame

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// CreateOptions describes a new game.
type CreateOptions struct {
	ID            string
	Creator       PlayerID
	MaxPlayers    int
	Multiplayer   bool
	MapSize       MapSize
	BotIDs        []PlayerID // identities handed to bot seats, in seat order
	Seed          uint64     // mixed into the terrain roll
	TurnTimeLimit time.Duration
	Now           time.Time
}

// BotsNeeded returns how many bot seats a game created with opts has. Multiplayer games reserve
// two seats for humans, single player games one.
func (opts CreateOptions) BotsNeeded() int {
	humans := 1
	if opts.Multiplayer {
		humans = 2
	}
	return max(opts.MaxPlayers-humans, 0)
}

// NewGame creates a game with a rolled terrain layout and a base for every filled seat.
// Single player games start live; multiplayer games wait in StatusNotStarted until JoinGame
// fills the open seat.
func NewGame(opts CreateOptions) (*GameState, error) {
	if !opts.MapSize.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMapSize, opts.MapSize)
	}
	if opts.MaxPlayers < 2 || opts.MaxPlayers > MaxPlayers {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPlayerCount, opts.MaxPlayers)
	}
	if opts.Creator == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidPlayer)
	}
	bots := opts.BotsNeeded()
	if len(opts.BotIDs) < bots {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrBotKeyNotFound, bots, len(opts.BotIDs))
	}

	rules := DefaultRules
	gs := &GameState{
		ID:            opts.ID,
		Creator:       opts.Creator,
		Players:       make([]Player, opts.MaxPlayers),
		Status:        StatusLive,
		Multiplayer:   opts.Multiplayer,
		MapSize:       opts.MapSize,
		Round:         1,
		TurnTimestamp: opts.Now,
		TurnTimeLimit: opts.TurnTimeLimit,
		Rules:         rules,
	}

	seen := map[PlayerID]bool{opts.Creator: true}
	gs.Players[0] = newPlayer(opts.Creator, false, rules)
	next := 1
	if opts.Multiplayer {
		next = 2 // seat 1 stays open for the second human
		gs.Status = StatusNotStarted
	}
	for i := 0; i < bots; i++ {
		id := opts.BotIDs[i]
		if id == "" || seen[id] {
			return nil, fmt.Errorf("%w: duplicate bot identity %q", ErrInvalidPlayer, id)
		}
		seen[id] = true
		gs.Players[next+i] = newPlayer(id, true, rules)
	}

	gs.Grid = NewGrid(opts.MapSize, func(c Coord, index int) Tile {
		return NeutralTile(rollTerrain(opts.ID, index, opts.Seed))
	})
	bases := opts.MapSize.BasePositions()
	for i, p := range gs.Players {
		if !p.Open() {
			gs.Grid.set(bases[i], baseTile(p.ID))
		}
	}
	return gs, nil
}

// JoinGame seats id in the first open seat of a multiplayer lobby and places its base. The game
// goes live once every seat is taken.
func JoinGame(gs *GameState, id PlayerID) error {
	if !gs.Multiplayer {
		return ErrGameIsSinglePlayer
	}
	if gs.Status != StatusNotStarted {
		return ErrGameAlreadyStarted
	}
	if id == "" {
		return fmt.Errorf("%w: empty player id", ErrInvalidPlayer)
	}
	if _, ok := gs.PlayerIndex(id); ok {
		return ErrPlayerAlreadyInGame
	}
	seat := -1
	for i, p := range gs.Players {
		if p.Open() {
			seat = i
			break
		}
	}
	if seat < 0 {
		return ErrGameIsFull
	}

	gs.Players[seat] = newPlayer(id, false, gs.Rules)
	gs.Grid.set(gs.MapSize.BasePositions()[seat], baseTile(id))
	if gs.OpenSeats() == 0 {
		gs.Status = StatusLive
	}
	return nil
}

func newPlayer(id PlayerID, bot bool, rules Rules) Player {
	return Player{
		ID:           id,
		IsBot:        bot,
		Balance:      StartingBalance,
		AttackPoints: rules.StartAttackPoint,
		Alive:        true,
	}
}

func baseTile(owner PlayerID) Tile {
	return Tile{
		Owner:    owner,
		Level:    1,
		Units:    NewStack(Infantry, StartingInfantry),
		Building: Building{Type: Base, Level: 1},
	}
}

// rollTerrain derives a tile level from the game identity, the tile index and the seed.
// Rolls 1-40 give level 1, 41-80 level 2 and 81-100 level 3.
func rollTerrain(gameID string, index int, seed uint64) uint8 {
	h := sha256.New()
	h.Write([]byte(gameID))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	roll := int(h.Sum(nil)[0])%100 + 1
	switch {
	case roll <= 40:
		return 1
	case roll <= 80:
		return 2
	}
	return 3
}
