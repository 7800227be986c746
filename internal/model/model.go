package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user. Bots are users too, created from a fixed pool.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsBot       bool      `json:"is_bot"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game represents a stored game. State holds the serialized rules engine state.
type Game struct {
	ID            string          `json:"id"`
	CreatorID     string          `json:"creator_id"`
	Status        string          `json:"status"` // not_started, live, completed
	Winner        string          `json:"winner,omitempty"`
	Multiplayer   bool            `json:"multiplayer"`
	MaxPlayers    int             `json:"max_players"`
	MapSize       string          `json:"map_size"`
	TurnTimeLimit string          `json:"turn_time_limit"`
	Round         int             `json:"round"`
	CurrentPlayer string          `json:"current_player,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Players       []GamePlayer    `json:"players,omitempty"`
	State         json.RawMessage `json:"state,omitempty"`
}

// GamePlayer represents a player's seat in a game.
type GamePlayer struct {
	GameID   string    `json:"game_id"`
	UserID   string    `json:"user_id"`
	Seat     int       `json:"seat"`
	IsBot    bool      `json:"is_bot"`
	JoinedAt time.Time `json:"joined_at"`
}

// StateUpdate is written after every applied action.
type StateUpdate struct {
	Status        string
	Winner        string
	Round         int
	CurrentPlayer string
	State         json.RawMessage
}

// Profile tracks a user's experience and games.
type Profile struct {
	UserID         string    `json:"user_id"`
	Experience     int       `json:"experience"`
	CompletedGames int       `json:"completed_games"`
	ActiveGames    []string  `json:"active_games"`
	UpdatedAt      time.Time `json:"updated_at"`
}
