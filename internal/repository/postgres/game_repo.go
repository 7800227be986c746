package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lunar-flights/super-game/internal/model"
)

const gameColumns = `g.id, g.creator_id, g.status, g.winner, g.multiplayer, g.max_players, g.map_size,
	g.turn_time_limit, g.round, g.current_player, g.created_at, g.started_at, g.finished_at`

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

func scanGame(row interface{ Scan(...any) error }, extra ...any) (*model.Game, error) {
	var g model.Game
	var winner, current sql.NullString
	dest := []any{&g.ID, &g.CreatorID, &g.Status, &winner, &g.Multiplayer, &g.MaxPlayers, &g.MapSize,
		&g.TurnTimeLimit, &g.Round, &current, &g.CreatedAt, &g.StartedAt, &g.FinishedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	g.Winner = winner.String
	g.CurrentPlayer = current.String
	return &g, nil
}

// Create inserts a new game.
func (r *GameRepo) Create(ctx context.Context, creatorID string, maxPlayers int, multiplayer bool, mapSize, turnTimeLimit string) (*model.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`INSERT INTO games AS g (creator_id, max_players, multiplayer, map_size, turn_time_limit)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+gameColumns,
		creatorID, maxPlayers, multiplayer, mapSize, turnTimeLimit,
	))
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

// FindByID returns a game by ID with its players and state.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var state []byte
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+`, g.state FROM games g WHERE g.id = $1`, id,
	), &state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if len(state) > 0 {
		g.State = json.RawMessage(state)
	}

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return g, nil
}

// AddPlayer seats a user in a game.
func (r *GameRepo) AddPlayer(ctx context.Context, gameID, userID string, seat int, isBot bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id, seat, is_bot) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		gameID, userID, seat, isBot,
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// RemovePlayer takes a user off a game's roster.
func (r *GameRepo) RemovePlayer(ctx context.Context, gameID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM game_players WHERE game_id = $1 AND user_id = $2`, gameID, userID,
	); err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	return nil
}

// SaveState stores the engine state together with the columns derived from it. started_at and
// finished_at are stamped the first time the game is saved live or completed.
func (r *GameRepo) SaveState(ctx context.Context, gameID string, u model.StateUpdate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE games SET
		   status = $2,
		   winner = NULLIF($3, ''),
		   round = $4,
		   current_player = NULLIF($5, ''),
		   state = $6,
		   started_at = CASE WHEN $2 <> 'not_started' AND started_at IS NULL THEN now() ELSE started_at END,
		   finished_at = CASE WHEN $2 = 'completed' AND finished_at IS NULL THEN now() ELSE finished_at END
		 WHERE id = $1`,
		gameID, u.Status, u.Winner, u.Round, u.CurrentPlayer, string(u.State),
	)
	if err != nil {
		return fmt.Errorf("save game state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save game state: game %s not found", gameID)
	}
	return nil
}

func (r *GameRepo) queryGames(ctx context.Context, what, query string, args ...any) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s games: %w", what, err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// ListOpen returns multiplayer lobbies that still have a free seat.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	return r.queryGames(ctx, "open",
		`SELECT `+gameColumns+` FROM games g
		 WHERE g.status = 'not_started' AND g.multiplayer
		 ORDER BY g.created_at DESC LIMIT 50`)
}

// ListByUser returns all games a user is seated in.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return r.queryGames(ctx, "user",
		`SELECT `+gameColumns+` FROM games g
		 JOIN game_players gp ON g.id = gp.game_id
		 WHERE gp.user_id = $1
		 ORDER BY g.created_at DESC LIMIT 50`, userID)
}

// ListActive returns all live games. Used by the turn deadline poller and startup recovery.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	return r.queryGames(ctx, "active",
		`SELECT `+gameColumns+` FROM games g WHERE g.status = 'live' ORDER BY g.created_at`)
}

// ListFinished returns completed games, most recent first.
func (r *GameRepo) ListFinished(ctx context.Context) ([]model.Game, error) {
	return r.queryGames(ctx, "finished",
		`SELECT `+gameColumns+` FROM games g
		 WHERE g.status = 'completed'
		 ORDER BY g.finished_at DESC LIMIT 100`)
}

// ListPlayers returns all players in a game in seat order.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, user_id, seat, is_bot, joined_at FROM game_players WHERE game_id = $1 ORDER BY seat`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Seat, &p.IsBot, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// Delete removes a game and its seats.
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}
