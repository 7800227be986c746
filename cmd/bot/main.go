package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/bot"
	"github.com/lunar-flights/super-game/internal/logger"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	players := flag.Int("players", 2, "lobby seats (2-4); seats beyond two are server bots")
	mapSize := flag.String("map", string(supergame.Small), "map size (small or large)")
	turnLimit := flag.Duration("turn-limit", 5*time.Minute, "turn time limit for the game")
	maxRounds := flag.Int("max-rounds", 200, "stop after this many rounds")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	logger.Init(logger.Options{Level: level, Pretty: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	orch := bot.NewOrchestrator(*url, bot.OrchestratorConfig{
		Players:       *players,
		MapSize:       *mapSize,
		TurnTimeLimit: *turnLimit,
		MaxRounds:     *maxRounds,
	})
	res, err := orch.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Remote match failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(res)
}
