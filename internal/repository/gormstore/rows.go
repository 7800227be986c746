package gormstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lunar-flights/super-game/internal/model"
)

type userRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Provider    string `gorm:"size:32;not null;uniqueIndex:idx_users_provider"`
	ProviderID  string `gorm:"size:255;not null;uniqueIndex:idx_users_provider"`
	DisplayName string `gorm:"size:255;not null"`
	AvatarURL   string
	IsBot       bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (userRow) TableName() string { return "users" }

func (u *userRow) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *userRow) toModel() model.User {
	return model.User{
		ID:          u.ID,
		Provider:    u.Provider,
		ProviderID:  u.ProviderID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsBot:       u.IsBot,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type gameRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	CreatorID     string `gorm:"size:36;not null;index"`
	Status        string `gorm:"size:16;not null;index"`
	Winner        string `gorm:"size:36"`
	Multiplayer   bool   `gorm:"not null"`
	MaxPlayers    int    `gorm:"not null"`
	MapSize       string `gorm:"size:8;not null"`
	TurnTimeLimit string `gorm:"size:32;not null"`
	Round         int    `gorm:"not null;default:0"`
	CurrentPlayer string `gorm:"size:36"`
	State         datatypes.JSON
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	Players       []gamePlayerRow `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (gameRow) TableName() string { return "games" }

func (g *gameRow) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

func (g *gameRow) toModel() model.Game {
	m := model.Game{
		ID:            g.ID,
		CreatorID:     g.CreatorID,
		Status:        g.Status,
		Winner:        g.Winner,
		Multiplayer:   g.Multiplayer,
		MaxPlayers:    g.MaxPlayers,
		MapSize:       g.MapSize,
		TurnTimeLimit: g.TurnTimeLimit,
		Round:         g.Round,
		CurrentPlayer: g.CurrentPlayer,
		CreatedAt:     g.CreatedAt,
		StartedAt:     g.StartedAt,
		FinishedAt:    g.FinishedAt,
	}
	if len(g.State) > 0 {
		m.State = json.RawMessage(g.State)
	}
	for _, p := range g.Players {
		m.Players = append(m.Players, p.toModel())
	}
	return m
}

type gamePlayerRow struct {
	GameID   string    `gorm:"primaryKey;size:36;uniqueIndex:idx_game_players_seat"`
	UserID   string    `gorm:"primaryKey;size:36;index"`
	Seat     int       `gorm:"not null;uniqueIndex:idx_game_players_seat"`
	IsBot    bool      `gorm:"not null;default:false"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (gamePlayerRow) TableName() string { return "game_players" }

func (p *gamePlayerRow) toModel() model.GamePlayer {
	return model.GamePlayer{
		GameID:   p.GameID,
		UserID:   p.UserID,
		Seat:     p.Seat,
		IsBot:    p.IsBot,
		JoinedAt: p.JoinedAt,
	}
}

type profileRow struct {
	UserID         string `gorm:"primaryKey;size:36"`
	Experience     int    `gorm:"not null;default:0"`
	CompletedGames int    `gorm:"not null;default:0"`
	ActiveGames    datatypes.JSON
	UpdatedAt      time.Time
}

func (profileRow) TableName() string { return "profiles" }

func (p *profileRow) activeGames() ([]string, error) {
	ids := []string{}
	if len(p.ActiveGames) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(p.ActiveGames, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *profileRow) setActiveGames(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	p.ActiveGames = datatypes.JSON(b)
	return nil
}
