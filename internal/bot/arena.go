package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

// IdleHost is the host difficulty that passes every turn.
const IdleHost = "idle"

// ArenaConfig configures a single local game played by bots. The host seat is driven by its own
// policy, or passes every turn when HostDifficulty is IdleHost.
type ArenaConfig struct {
	GameName       string
	Players        int
	MapSize        supergame.MapSize
	HostDifficulty string
	BotDifficulty  string
	MaxRounds      int    // cap before the game is scored as undecided
	Seed           uint64 // terrain roll
	DryRun         bool   // skip DB writes
}

// ArenaResult describes the outcome of an arena game.
type ArenaResult struct {
	GameID    string         `json:"game_id"`
	Winner    string         `json:"winner,omitempty"` // "" when undecided or abandoned
	HostWon   bool           `json:"host_won"`
	Abandoned bool           `json:"abandoned"` // the host was eliminated first
	Rounds    int            `json:"rounds"`
	Tiles     map[string]int `json:"tiles"` // player -> tiles owned at the end
}

// RunGame plays a game to completion, the round cap or the host's elimination. Unless DryRun is
// set, the game and every turn are saved through the repositories.
func RunGame(ctx context.Context, cfg ArenaConfig, gameRepo repository.GameRepository, userRepo repository.UserRepository) (*ArenaResult, error) {
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 200
	}
	if cfg.MapSize == "" {
		cfg.MapSize = supergame.Small
	}
	if cfg.Players == 0 {
		cfg.Players = supergame.MaxPlayers
	}

	opts := supergame.CreateOptions{
		ID:         cfg.GameName,
		Creator:    "host",
		MaxPlayers: cfg.Players,
		MapSize:    cfg.MapSize,
		Seed:       cfg.Seed,
		Now:        time.Now(),
	}
	for i := 0; i < opts.BotsNeeded(); i++ {
		opts.BotIDs = append(opts.BotIDs, supergame.PlayerID(fmt.Sprintf("bot-%d", i+1)))
	}
	if !cfg.DryRun {
		if err := createArenaGame(ctx, cfg, &opts, gameRepo, userRepo); err != nil {
			return nil, fmt.Errorf("create arena game: %w", err)
		}
	}

	gs, err := supergame.NewGame(opts)
	if err != nil {
		return nil, err
	}

	var host *Policy
	if cfg.HostDifficulty != IdleHost {
		host = PolicyForDifficulty(cfg.HostDifficulty)
	}
	bots := PolicyForDifficulty(cfg.BotDifficulty)
	result := &ArenaResult{GameID: gs.ID}

	for gs.Status == supergame.StatusLive && int(gs.Round) <= cfg.MaxRounds {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if p, err := gs.PlayerByID(opts.Creator); err != nil || !p.Alive {
			result.Abandoned = true
			break
		}
		if host != nil {
			if _, err := host.TakeTurn(gs, 0); err != nil {
				return nil, fmt.Errorf("host turn (round %d): %w", gs.Round, err)
			}
		}
		if _, err := supergame.EndTurn(gs, opts.Creator, time.Now(), bots); err != nil {
			return nil, fmt.Errorf("end turn (round %d): %w", gs.Round, err)
		}
		if !cfg.DryRun {
			if err := saveArenaState(ctx, gameRepo, gs); err != nil {
				return nil, err
			}
		}
	}

	result.Rounds = int(gs.Round)
	result.Winner = string(gs.Winner)
	result.HostWon = gs.Winner == opts.Creator
	result.Tiles = make(map[string]int)
	for _, p := range gs.Players {
		if !p.Open() {
			result.Tiles[string(p.ID)] = len(gs.Grid.TilesOwnedBy(p.ID))
		}
	}

	if !cfg.DryRun && gs.Status != supergame.StatusCompleted {
		// Undecided and abandoned games are closed without a winner.
		gs.Status = supergame.StatusCompleted
		if err := saveArenaState(ctx, gameRepo, gs); err != nil {
			return nil, err
		}
	}
	log.Debug().Str("gameId", gs.ID).Str("winner", result.Winner).Int("rounds", result.Rounds).
		Bool("abandoned", result.Abandoned).Msg("Arena game finished")
	return result, nil
}

// createArenaGame stores the game and seats a host user and the bot pool, replacing the
// placeholder identities in opts with stored ones.
func createArenaGame(ctx context.Context, cfg ArenaConfig, opts *supergame.CreateOptions, gameRepo repository.GameRepository, userRepo repository.UserRepository) error {
	host, err := userRepo.Upsert(ctx, "arena", "arena-host", "Arena Host", "")
	if err != nil {
		return fmt.Errorf("upsert host: %w", err)
	}
	bots, err := userRepo.EnsureBots(ctx, opts.BotsNeeded())
	if err != nil {
		return fmt.Errorf("ensure bots: %w", err)
	}

	game, err := gameRepo.Create(ctx, host.ID, cfg.Players, false, string(cfg.MapSize), "0s")
	if err != nil {
		return err
	}
	opts.ID = game.ID
	opts.Creator = supergame.PlayerID(host.ID)
	opts.BotIDs = opts.BotIDs[:0]
	if err := gameRepo.AddPlayer(ctx, game.ID, host.ID, 0, false); err != nil {
		return err
	}
	for i, b := range bots {
		opts.BotIDs = append(opts.BotIDs, supergame.PlayerID(b.ID))
		if err := gameRepo.AddPlayer(ctx, game.ID, b.ID, i+1, true); err != nil {
			return err
		}
	}
	return nil
}

func saveArenaState(ctx context.Context, gameRepo repository.GameRepository, gs *supergame.GameState) error {
	data, err := supergame.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	current := ""
	if gs.Status == supergame.StatusLive {
		if p, err := gs.CurrentPlayer(); err == nil {
			current = string(p.ID)
		}
	}
	err = gameRepo.SaveState(ctx, gs.ID, model.StateUpdate{
		Status:        string(gs.Status),
		Winner:        string(gs.Winner),
		Round:         int(gs.Round),
		CurrentPlayer: current,
		State:         data,
	})
	if err != nil {
		return fmt.Errorf("save state (round %d): %w", gs.Round, err)
	}
	return nil
}
