package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/watchquest/watchquest/watchquest"
	"github.com/watchquest/watchquest/watchquest/api"
	"github.com/watchquest/watchquest/watchquest/database"
	"github.com/watchquest/watchquest/watchquest/database/repositories"
	"github.com/watchquest/watchquest/watchquest/logger"
	"github.com/watchquest/watchquest/watchquest/quests"
	"github.com/watchquest/watchquest/watchquest/services"
	"github.com/watchquest/watchquest/watchquest/telegram"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := watchquest.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting WatchQuest backend",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	defs, err := cfg.QuestDefinitions()
	if err != nil {
		slog.Error("Invalid quest configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	registry, err := quests.NewRegistry(defs)
	if err != nil {
		slog.Error("Invalid quest configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Quest registry loaded", slog.Int("quests", len(defs)))

	userRepo := repositories.NewUserRepository(db.BunDB())
	statusRepo := repositories.NewQuestStatusRepository(db.BunDB())
	counterRepo := repositories.NewCounterRepository(db.BunDB())
	videoRepo := repositories.NewVideoRepository(db.BunDB())

	oracle := telegram.NewOracle(cfg.Telegram.Token, time.Duration(cfg.Telegram.CheckTimeout)*time.Second)
	engine := quests.NewEngine(registry, userRepo, statusRepo, counterRepo, oracle)

	spacesService, err := services.NewSpacesService(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.VideoRoot,
	)
	if err != nil {
		slog.Error("Failed to initialize Spaces service", slog.Any("error", err))
		os.Exit(-1)
	}
	if err := spacesService.HealthCheck(ctx); err != nil {
		// Media URLs still resolve through the CDN; only flag it.
		slog.Warn("Spaces health check failed", slog.Any("error", err))
	}
	videoService := services.NewVideoService(videoRepo, spacesService)

	server := api.NewServer(engine, userRepo, videoService, cfg.API.AllowedOrigins)
	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.LogSystem("API server listening", slog.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.Any("error", err))
		os.Exit(-1)
	}
	logger.LogSystem("Shutdown complete")
}
