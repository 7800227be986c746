package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
)

// ProfileRepo handles player profile database operations.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get returns a user's profile, or nil if the user never joined a game.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, experience, completed_games, active_games, updated_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Experience, &p.CompletedGames, pq.Array(&p.ActiveGames), &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// AddActiveGame records gameID as active for the user unless the user already has limit active
// games. Adding a game twice is a no-op.
func (r *ProfileRepo) AddActiveGame(ctx context.Context, userID, gameID string, limit int) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, active_games) VALUES ($1, ARRAY[$2::text])
		 ON CONFLICT (user_id) DO UPDATE
		   SET active_games = array_append(profiles.active_games, $2::text), updated_at = now()
		   WHERE NOT ($2::text = ANY(profiles.active_games))
		     AND cardinality(profiles.active_games) < $3`,
		userID, gameID, limit,
	)
	if err != nil {
		return fmt.Errorf("add active game: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	p, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if p != nil && slices.Contains(p.ActiveGames, gameID) {
		return nil
	}
	return repository.ErrTooManyActiveGames
}

// RemoveActiveGame drops gameID from the user's active games without crediting anything.
func (r *ProfileRepo) RemoveActiveGame(ctx context.Context, userID, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET active_games = array_remove(active_games, $2::text), updated_at = now()
		 WHERE user_id = $1`,
		userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("remove active game: %w", err)
	}
	return nil
}

// CompleteGame moves gameID out of the user's active games and credits the experience.
func (r *ProfileRepo) CompleteGame(ctx context.Context, userID, gameID string, experience int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, experience, completed_games) VALUES ($1, $3, 1)
		 ON CONFLICT (user_id) DO UPDATE SET
		   experience = profiles.experience + EXCLUDED.experience,
		   completed_games = profiles.completed_games + 1,
		   active_games = array_remove(profiles.active_games, $2::text),
		   updated_at = now()`,
		userID, gameID, experience,
	)
	if err != nil {
		return fmt.Errorf("complete game: %w", err)
	}
	return nil
}
