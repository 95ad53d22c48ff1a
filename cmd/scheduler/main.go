package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/config"
	"github.com/elodkocsis/tenebra/internal/database"
	"github.com/elodkocsis/tenebra/internal/queue"
	"github.com/elodkocsis/tenebra/internal/scheduler"
	"github.com/elodkocsis/tenebra/internal/shutdown"
	"github.com/elodkocsis/tenebra/internal/sleeper"
)

// Exit codes per the external interface contract: 0 normal completion, 1
// bad MQ connect, 3 missing/invalid config section.
const (
	exitConfigInvalid = 3
	exitBrokerUnavail = 1
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Warn("config file unreadable, falling back to env vars", "error", err)
		cfg = config.LoadFromEnv()
	}

	if cfg.Crawl.AccessDayDifference <= 0 {
		return &fatalError{code: exitConfigInvalid, err: fmt.Errorf("CRAWL.access_day_difference is not set: it has no implicit default and must be configured explicitly")}
	}

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return &fatalError{code: exitConfigInvalid, err: fmt.Errorf("connect to postgres: %w", err)}
	}
	defer pool.Close()

	qClient, err := queue.New(cfg.MQ.URL(), logger)
	if err != nil {
		return &fatalError{code: exitBrokerUnavail, err: fmt.Errorf("connect to broker: %w", err)}
	}
	defer qClient.Close()

	store := catalogue.New(pool)
	sl := sleeper.New(sleeperStatePath(), logger)

	published, err := scheduler.Run(ctx, sl, cfg.Crawl.SleeperHours, store, qClient, cfg.Crawl.AccessDayDifference, logger)
	if err != nil {
		return fmt.Errorf("scheduling run: %w", err)
	}

	logger.Info("scheduler exiting", "published", published)
	return nil
}

func sleeperStatePath() string {
	if path := os.Getenv("SLEEPER_STATE_PATH"); path != "" {
		return path
	}
	return "sleeper.txt"
}

// fatalError carries the process exit code a given failure maps to, per
// the external interface's exit-code table.
type fatalError struct {
	code int
	err  error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var fe *fatalError
	if errors.As(err, &fe) {
		return fe.code
	}
	return 1
}
