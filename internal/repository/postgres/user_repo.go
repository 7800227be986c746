package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lunar-flights/super-game/internal/model"
)

const userColumns = `id, provider, provider_id, display_name, avatar_url, is_bot, created_at, updated_at`

// UserRepo handles user database operations.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Provider, &u.ProviderID, &u.DisplayName, &avatar, &u.IsBot, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.AvatarURL = avatar.String
	return &u, nil
}

// FindByProviderID looks up a user by OAuth provider and provider-specific ID.
func (r *UserRepo) FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`,
		provider, providerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by provider: %w", err)
	}
	return u, nil
}

// FindByID looks up a user by their UUID.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// Upsert creates a new user or updates the display name and avatar if they already exist.
// Returns the user (with ID populated).
func (r *UserRepo) Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (provider, provider_id, display_name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (provider, provider_id)
		 DO UPDATE SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url, updated_at = now()
		 RETURNING `+userColumns,
		provider, providerID, displayName, avatarURL,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// UpdateDisplayName updates a user's display name.
func (r *UserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET display_name = $1, updated_at = now() WHERE id = $2`,
		displayName, id,
	)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// EnsureBots returns the bot users bot-1..bot-n, creating the missing ones.
func (r *UserRepo) EnsureBots(ctx context.Context, n int) ([]model.User, error) {
	bots := make([]model.User, 0, n)
	for i := 1; i <= n; i++ {
		u, err := scanUser(r.db.QueryRowContext(ctx,
			`INSERT INTO users (provider, provider_id, display_name, is_bot)
			 VALUES ('bot', $1, $2, true)
			 ON CONFLICT (provider, provider_id) DO UPDATE SET is_bot = true
			 RETURNING `+userColumns,
			fmt.Sprintf("bot-%d", i), fmt.Sprintf("Bot %d", i),
		))
		if err != nil {
			return nil, fmt.Errorf("ensure bot %d: %w", i, err)
		}
		bots = append(bots, *u)
	}
	return bots, nil
}
