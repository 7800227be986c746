package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/bot"
	"github.com/lunar-flights/super-game/internal/logger"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/internal/repository/gormstore"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

func main() {
	var (
		numGames  int
		workers   int
		players   int
		mapSize   string
		host      string
		bots      string
		maxRounds int
		seed      uint64
		dbPath    string
		jsonOut   bool
		logLevel  string
	)

	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.IntVar(&players, "players", supergame.MaxPlayers, "Seats per game (2-4)")
	flag.StringVar(&mapSize, "map", string(supergame.Small), "Map size (small or large)")
	flag.StringVar(&host, "host", bot.IdleHost, "Host seat difficulty (idle passes every turn)")
	flag.StringVar(&bots, "bots", "normal", "Bot difficulty (normal or passive)")
	flag.IntVar(&maxRounds, "max-rounds", 200, "Rounds before a game is scored as undecided")
	flag.Uint64Var(&seed, "seed", 0, "Base terrain seed")
	flag.StringVar(&dbPath, "db", "", "SQLite file or postgres:// DSN to save games to (empty = dry run)")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	logger.Init(logger.Options{Level: logLevel, Pretty: true})

	size := supergame.MapSize(mapSize)
	if !size.Valid() {
		log.Fatal().Str("map", mapSize).Msg("Unknown map size")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	dryRun := dbPath == ""
	var gameRepo repository.GameRepository
	var userRepo repository.UserRepository
	if !dryRun {
		db, err := gormstore.Open(dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		if err := gormstore.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		gameRepo = gormstore.NewGameRepo(db)
		userRepo = gormstore.NewUserRepo(db)
	}

	results := make([]*bot.ArenaResult, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	errCount := 0

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			cfg := bot.ArenaConfig{
				GameName:       fmt.Sprintf("botmatch-%d", idx+1),
				Players:        players,
				MapSize:        size,
				HostDifficulty: host,
				BotDifficulty:  bots,
				MaxRounds:      maxRounds,
				Seed:           seed + uint64(idx),
				DryRun:         dryRun,
			}

			result, err := bot.RunGame(ctx, cfg, gameRepo, userRepo)
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Game failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = result
			mu.Unlock()

			log.Info().Int("game", idx+1).Str("winner", result.Winner).Int("rounds", result.Rounds).Msg("Game completed")
		}(i)
	}

	wg.Wait()

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, maxRounds, errCount, dryRun)
	}
}

func printSummary(results []*bot.ArenaResult, maxRounds, errCount int, dryRun bool) {
	var completed, hostWins, abandoned, undecided, totalRounds int
	wins := make(map[string]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		totalRounds += r.Rounds
		switch {
		case r.HostWon:
			hostWins++
		case r.Abandoned:
			abandoned++
		case r.Winner == "":
			undecided++
		default:
			wins[r.Winner]++
		}
	}

	fmt.Printf("\nResults (%d games, max %d rounds):\n", completed, maxRounds)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}
	if completed == 0 {
		return
	}
	fmt.Printf("  host wins:   %d\n", hostWins)
	fmt.Printf("  abandoned:   %d (host eliminated)\n", abandoned)
	fmt.Printf("  undecided:   %d\n", undecided)
	fmt.Printf("  avg rounds:  %.1f\n", float64(totalRounds)/float64(completed))

	winners := make([]string, 0, len(wins))
	for w := range wins {
		winners = append(winners, w)
	}
	sort.Slice(winners, func(i, j int) bool { return wins[winners[i]] > wins[winners[j]] })
	for _, w := range winners {
		fmt.Printf("  %-36s %d wins\n", w, wins[w])
	}

	if !dryRun {
		fmt.Printf("\nGames saved to the database\n")
	}
}

func printJSON(results []*bot.ArenaResult, total, errCount int) {
	out := struct {
		Total   int                `json:"total"`
		Errors  int                `json:"errors"`
		Results []*bot.ArenaResult `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
