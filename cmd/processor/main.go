package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/elodkocsis/tenebra/internal/blacklist"
	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/config"
	"github.com/elodkocsis/tenebra/internal/database"
	"github.com/elodkocsis/tenebra/internal/processor"
	"github.com/elodkocsis/tenebra/internal/queue"
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
		logger.Warn("config file unreadable, falling back to env vars", "error", err)
		cfg = config.LoadFromEnv()
	}

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	qClient, err := queue.New(cfg.MQ.URL(), logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer qClient.Close()

	bl := blacklist.Load(blacklistFilePath(), logger)

	var seen *redis.Client
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, per-link dedup cache disabled", "error", err)
	} else {
		seen = rdb
	}
	defer rdb.Close()

	store := catalogue.New(pool)
	proc := processor.New(store, bl, seen, logger)

	logger.Info("processor starting")
	return qClient.Consume(ctx, queue.ProcessorQueue, proc.Handle)
}

func blacklistFilePath() string {
	if path := os.Getenv("BLACKLIST_FILE"); path != "" {
		return path
	}
	return "blacklist.txt"
}
