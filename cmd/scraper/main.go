package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/elodkocsis/tenebra/internal/archive"
	"github.com/elodkocsis/tenebra/internal/config"
	"github.com/elodkocsis/tenebra/internal/queue"
	"github.com/elodkocsis/tenebra/internal/scraper"
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

	qClient, err := queue.New(cfg.MQ.URL(), logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer qClient.Close()

	fetcher, err := scraper.NewFetcher(cfg.Crawl.ProxyAddr)
	if err != nil {
		return fmt.Errorf("building fetcher: %w", err)
	}

	var controller *scraper.TorController
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, tor identity rotation disabled", "error", err)
	} else {
		controller = scraper.NewTorController(cfg.Crawl.ProxyControlAddr, rdb, logger)
	}
	defer rdb.Close()

	var archiver scraper.Archiver
	if arc, err := archive.New(ctx, cfg.MinIO); err != nil {
		logger.Warn("object store unavailable, raw snapshot archiving disabled", "error", err)
	} else {
		archiver = arc
	}

	worker := scraper.NewWorker(fetcher, qClient, controller, archiver, logger)

	logger.Info("scraper worker starting")
	return qClient.Consume(ctx, queue.WorkerQueue, worker.Handle)
}
