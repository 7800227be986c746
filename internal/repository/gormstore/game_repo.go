package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunar-flights/super-game/internal/model"
)

// listColumns leaves out the state blob, which list views never need.
var listColumns = []string{"id", "creator_id", "status", "winner", "multiplayer", "max_players", "map_size",
	"turn_time_limit", "round", "current_player", "created_at", "started_at", "finished_at"}

// GameRepo handles game and seat persistence.
type GameRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db, now: time.Now}
}

// Create inserts a new game that has not started yet.
func (r *GameRepo) Create(ctx context.Context, creatorID string, maxPlayers int, multiplayer bool, mapSize, turnTimeLimit string) (*model.Game, error) {
	row := gameRow{
		CreatorID:     creatorID,
		Status:        "not_started",
		Multiplayer:   multiplayer,
		MaxPlayers:    maxPlayers,
		MapSize:       mapSize,
		TurnTimeLimit: turnTimeLimit,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	g := row.toModel()
	return &g, nil
}

// FindByID returns a game with its players and state, or nil if it does not exist.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var row gameRow
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("seat") }).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	g := row.toModel()
	return &g, nil
}

// AddPlayer seats a user in a game. Seating the same user twice is a no-op.
func (r *GameRepo) AddPlayer(ctx context.Context, gameID, userID string, seat int, isBot bool) error {
	row := gamePlayerRow{GameID: gameID, UserID: userID, Seat: seat, IsBot: isBot}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// RemovePlayer takes a user off a game's roster.
func (r *GameRepo) RemovePlayer(ctx context.Context, gameID, userID string) error {
	err := r.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).Delete(&gamePlayerRow{}).Error
	if err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	return nil
}

// SaveState stores the engine state with the columns derived from it, stamping started_at and
// finished_at the first time the game is saved live or completed.
func (r *GameRepo) SaveState(ctx context.Context, gameID string, u model.StateUpdate) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row gameRow
		if err := tx.Select("id", "started_at", "finished_at").Where("id = ?", gameID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("game %s not found", gameID)
			}
			return err
		}

		now := r.now().UTC()
		updates := map[string]any{
			"status":         u.Status,
			"winner":         u.Winner,
			"round":          u.Round,
			"current_player": u.CurrentPlayer,
			"state":          datatypes.JSON(u.State),
		}
		if u.Status != "not_started" && row.StartedAt == nil {
			updates["started_at"] = now
		}
		if u.Status == "completed" && row.FinishedAt == nil {
			updates["finished_at"] = now
		}
		return tx.Model(&gameRow{}).Where("id = ?", gameID).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("save game state: %w", err)
	}
	return nil
}

func (r *GameRepo) list(ctx context.Context, what string, scope func(*gorm.DB) *gorm.DB) ([]model.Game, error) {
	var rows []gameRow
	q := r.db.WithContext(ctx).Model(&gameRow{}).Select(qualify("games", listColumns))
	if err := scope(q).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s games: %w", what, err)
	}
	games := make([]model.Game, 0, len(rows))
	for i := range rows {
		games = append(games, rows[i].toModel())
	}
	return games, nil
}

// ListOpen returns multiplayer lobbies that have not started.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	return r.list(ctx, "open", func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND multiplayer = ?", "not_started", true).Order("created_at DESC").Limit(50)
	})
}

// ListByUser returns all games a user is seated in.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return r.list(ctx, "user", func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN game_players ON game_players.game_id = games.id").
			Where("game_players.user_id = ?", userID).
			Order("games.created_at DESC").
			Limit(50)
	})
}

// ListActive returns all live games.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	return r.list(ctx, "active", func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", "live").Order("created_at")
	})
}

// ListFinished returns completed games, most recent first.
func (r *GameRepo) ListFinished(ctx context.Context) ([]model.Game, error) {
	return r.list(ctx, "finished", func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", "completed").Order("finished_at DESC").Limit(100)
	})
}

// Delete removes a game and its seats.
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", gameID).Delete(&gamePlayerRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", gameID).Delete(&gameRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

func qualify(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}
