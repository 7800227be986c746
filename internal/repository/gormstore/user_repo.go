package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lunar-flights/super-game/internal/model"
)

// UserRepo handles user persistence.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) find(ctx context.Context, query string, args ...any) (*model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(query, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := row.toModel()
	return &u, nil
}

// FindByID looks up a user by ID. Returns nil when no such user exists.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.find(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByProviderID looks up a user by OAuth provider and provider-specific ID.
func (r *UserRepo) FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error) {
	u, err := r.find(ctx, "provider = ? AND provider_id = ?", provider, providerID)
	if err != nil {
		return nil, fmt.Errorf("find user by provider: %w", err)
	}
	return u, nil
}

// Upsert creates a user or refreshes the display name and avatar of an existing one.
func (r *UserRepo) Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_id = ?", provider, providerID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = userRow{Provider: provider, ProviderID: providerID, DisplayName: displayName, AvatarURL: avatarURL}
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		row.DisplayName = displayName
		row.AvatarURL = avatarURL
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	u := row.toModel()
	return &u, nil
}

// UpdateDisplayName updates a user's display name.
func (r *UserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	err := r.db.WithContext(ctx).Model(&userRow{ID: id}).Update("display_name", displayName).Error
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// EnsureBots returns the bot users bot-1..bot-n, creating the missing ones.
func (r *UserRepo) EnsureBots(ctx context.Context, n int) ([]model.User, error) {
	bots := make([]model.User, 0, n)
	for i := 1; i <= n; i++ {
		var row userRow
		err := r.db.WithContext(ctx).
			Where(userRow{Provider: "bot", ProviderID: fmt.Sprintf("bot-%d", i)}).
			Attrs(userRow{DisplayName: fmt.Sprintf("Bot %d", i), IsBot: true}).
			FirstOrCreate(&row).Error
		if err != nil {
			return nil, fmt.Errorf("ensure bot %d: %w", i, err)
		}
		bots = append(bots, row.toModel())
	}
	return bots, nil
}
