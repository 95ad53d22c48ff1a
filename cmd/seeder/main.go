package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/config"
	"github.com/elodkocsis/tenebra/internal/database"
	"github.com/elodkocsis/tenebra/internal/seeder"
	"github.com/elodkocsis/tenebra/internal/shutdown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Debug("config file not found, using env vars", "error", err)
		cfg = config.LoadFromEnv()
	}

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	store := catalogue.New(pool)

	seedFile := "seeds.txt"
	if len(os.Args) > 1 {
		seedFile = os.Args[1]
	}

	if err := seeder.LoadAndSeed(ctx, seedFile, store, logger); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	return nil
}
