package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlchat/sqlchat/internal/dbconn"
	"github.com/sqlchat/sqlchat/internal/demo/seed"
)

// Seeds a small music catalog so a fresh install has something to chat
// with. Defaults to a local duckdb file; point SQLCHAT_DEMO_* at a
// postgres database to seed that instead.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := seed.LoadConfigFromEnv(func(key string) (string, bool) {
		return os.LookupEnv(key)
	})
	if err != nil {
		logger.Error("failed to load demo config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := dbconn.Open(ctx, dbconn.Config{
		Driver:   cfg.Driver,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	service, err := seed.NewService(cfg, logger, db)
	if err != nil {
		logger.Error("failed to build seeder", slog.Any("error", err))
		os.Exit(1)
	}
	summary, err := service.Run(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("done",
		slog.String("database", cfg.Database),
		slog.Int("artists", summary.Artists),
		slog.Int("albums", summary.Albums),
		slog.Int("tracks", summary.Tracks),
	)
}
