package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/auth"
	"github.com/lunar-flights/super-game/internal/bot"
	"github.com/lunar-flights/super-game/internal/config"
	"github.com/lunar-flights/super-game/internal/handler"
	"github.com/lunar-flights/super-game/internal/logger"
	"github.com/lunar-flights/super-game/internal/metrics"
	"github.com/lunar-flights/super-game/internal/repository"
	"github.com/lunar-flights/super-game/internal/repository/gormstore"
	"github.com/lunar-flights/super-game/internal/repository/memory"
	"github.com/lunar-flights/super-game/internal/repository/postgres"
	redisrepo "github.com/lunar-flights/super-game/internal/repository/redis"
	"github.com/lunar-flights/super-game/internal/service"
)

// repos is the storage backend selected by config.
type repos struct {
	users    repository.UserRepository
	games    repository.GameRepository
	profiles repository.ProfileRepository
	ping     func(ctx context.Context) error
	closer   io.Closer
}

func openPostgres(ctx context.Context, url string) (*repos, error) {
	db, err := postgres.Connect(url)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &repos{
		users:    postgres.NewUserRepo(db),
		games:    postgres.NewGameRepo(db),
		profiles: postgres.NewProfileRepo(db),
		ping:     db.PingContext,
		closer:   db,
	}, nil
}

func openGorm(dsn string) (*repos, error) {
	db, err := gormstore.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := gormstore.Migrate(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &repos{
		users:    gormstore.NewUserRepo(db),
		games:    gormstore.NewGameRepo(db),
		profiles: gormstore.NewProfileRepo(db),
		ping:     sqlDB.PingContext,
		closer:   sqlDB,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.OptionsFromEnv())
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logOpts := logger.OptionsFromEnv()
	logOpts.Pretty = logOpts.Pretty || cfg.DevMode
	logger.Init(logOpts)
	log.Info().Str("store", cfg.Store).Bool("devMode", cfg.DevMode).Dur("turnTimeLimit", cfg.TurnTimeLimit).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	var store *repos
	if cfg.Store == config.StoreGorm {
		store, err = openGorm(cfg.GormDSN)
	} else {
		store, err = openPostgres(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Database connection failed")
	}
	defer store.closer.Close()

	// Live state cache and turn timers. Without Redis, an in-process cache and the deadline
	// poller take over.
	checks := []handler.HealthCheck{{Name: "store", Check: store.ping}}
	var cache repository.GameCache
	var redisClient *redisrepo.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisrepo.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		cache = redisClient
		checks = append(checks, handler.HealthCheck{Name: "cache", Check: redisClient.Ping})
	} else {
		log.Warn().Msg("REDIS_URL is empty, using the in-process cache")
		cache = memory.NewCache()
	}

	rec, err := metrics.New()
	if err != nil {
		log.Warn().Err(err).Msg("Metrics disabled")
	}

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	googleOAuth := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	// WebSocket hub
	wsHub := handler.NewHub().WithMetrics(rec)

	// Services
	gameStore := service.NewStore(store.games, cache)
	gameSvc := service.NewGameService(gameStore, store.users, store.profiles, wsHub, rec)
	gameSvc.SetLimits(cfg.MaxActiveGames, cfg.TurnTimeLimit)
	turnSvc := service.NewTurnService(gameStore, store.profiles, bot.PolicyForDifficulty(cfg.BotDifficulty), wsHub, rec)

	timerListener := service.NewTimerListener(redisClient.Underlying(), turnSvc)

	// Router
	router := handler.NewRouter(handler.Handlers{
		Auth:   handler.NewAuthHandler(googleOAuth, jwtMgr, store.users, cfg.DevMode),
		User:   handler.NewUserHandler(store.users, gameSvc),
		Game:   handler.NewGameHandler(gameSvc, turnSvc),
		WS:     handler.NewWSHandler(wsHub, cfg.AllowedOrigins),
		Health: handler.Health(checks...),

		Metrics: rec,
	}, jwtMgr, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rebuild the cache and turn timers from the database after a restart.
	if err := gameStore.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to recover live games (non-fatal)")
	}

	go timerListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
