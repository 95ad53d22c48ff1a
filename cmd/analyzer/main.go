package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/elodkocsis/tenebra/internal/analyzer"
	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/config"
	"github.com/elodkocsis/tenebra/internal/database"
	"github.com/elodkocsis/tenebra/internal/rpcserver"
	"github.com/elodkocsis/tenebra/internal/shutdown"
)

// Exit codes: 0 normal completion, 1 missing UPLINK/UPLINK_KEY.
const exitUplinkMissing = 1

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

	uplink, err := config.LoadUplink()
	if err != nil {
		return &fatalError{code: exitUplinkMissing, err: err}
	}

	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	store := catalogue.New(pool)

	manager := analyzer.New(store, store, modelDir(), modelFile(), cfg.Crawl.TrainerThreads, logger)
	manager.Start(ctx)
	defer manager.Stop()

	srv := rpcserver.New(rpcAddr(), uplink.Key, manager, logger)
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.ListenAndServe() }()

	logger.Info("analyzer starting", "rpc_addr", rpcAddr(), "uplink", uplink.URL)

	select {
	case <-ctx.Done():
		logger.Info("analyzer shutting down")
		return srv.Shutdown(context.Background())
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	}
}

func modelDir() string {
	if dir := os.Getenv("MODEL_DIR"); dir != "" {
		return dir
	}
	return "models"
}

func modelFile() string {
	if file := os.Getenv("MODEL_FILE"); file != "" {
		return file
	}
	return "model.t2v"
}

func rpcAddr() string {
	if addr := os.Getenv("RPC_ADDR"); addr != "" {
		return addr
	}
	return ":8090"
}

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
