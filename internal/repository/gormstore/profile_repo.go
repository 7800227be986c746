package gormstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
)

// ProfileRepo handles player profile persistence.
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get returns a user's profile, or nil if the user never joined a game.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*model.Profile, error) {
	var row profileRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	active, err := row.activeGames()
	if err != nil {
		return nil, fmt.Errorf("decode active games: %w", err)
	}
	return &model.Profile{
		UserID:         row.UserID,
		Experience:     row.Experience,
		CompletedGames: row.CompletedGames,
		ActiveGames:    active,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// update loads the profile row under a row lock, creating it when missing, and saves whatever
// fn leaves in it.
func (r *ProfileRepo) update(ctx context.Context, userID string, fn func(*profileRow, []string) ([]string, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var row profileRow
		err := q.Where("user_id = ?", userID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = profileRow{UserID: userID}
		} else if err != nil {
			return err
		}

		active, err := row.activeGames()
		if err != nil {
			return err
		}
		active, err = fn(&row, active)
		if err != nil {
			return err
		}
		if err := row.setActiveGames(active); err != nil {
			return err
		}
		return tx.Save(&row).Error
	})
}

// AddActiveGame records gameID as active for the user unless the user already has limit active
// games. Adding a game twice is a no-op.
func (r *ProfileRepo) AddActiveGame(ctx context.Context, userID, gameID string, limit int) error {
	err := r.update(ctx, userID, func(_ *profileRow, active []string) ([]string, error) {
		if slices.Contains(active, gameID) {
			return active, nil
		}
		if len(active) >= limit {
			return nil, repository.ErrTooManyActiveGames
		}
		return append(active, gameID), nil
	})
	if errors.Is(err, repository.ErrTooManyActiveGames) {
		return err
	}
	if err != nil {
		return fmt.Errorf("add active game: %w", err)
	}
	return nil
}

// RemoveActiveGame drops gameID from the user's active games without crediting anything.
func (r *ProfileRepo) RemoveActiveGame(ctx context.Context, userID, gameID string) error {
	err := r.update(ctx, userID, func(_ *profileRow, active []string) ([]string, error) {
		return slices.DeleteFunc(active, func(id string) bool { return id == gameID }), nil
	})
	if err != nil {
		return fmt.Errorf("remove active game: %w", err)
	}
	return nil
}

// CompleteGame moves gameID out of the user's active games and credits the experience.
func (r *ProfileRepo) CompleteGame(ctx context.Context, userID, gameID string, experience int) error {
	err := r.update(ctx, userID, func(row *profileRow, active []string) ([]string, error) {
		row.Experience += experience
		row.CompletedGames++
		return slices.DeleteFunc(active, func(id string) bool { return id == gameID }), nil
	})
	if err != nil {
		return fmt.Errorf("complete game: %w", err)
	}
	return nil
}
