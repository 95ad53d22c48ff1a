// Package seeder loads a flat file of seed URLs and records each as a
// catalogue placeholder, so a fresh deployment has something for the
// Scheduler's next due-query pass to find. It never touches the work
// queue directly: the Scheduler is the only path from a catalogue row to
// a Scraper worker, and a seeded URL is no exception.
package seeder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Inserter is the subset of catalogue.Store the seeder needs.
type Inserter interface {
	InsertPlaceholder(ctx context.Context, url string, parentURL string) error
}

// LoadAndSeed reads seedFile line by line (blank lines and lines starting
// with '#' are skipped) and records each well-formed URL as a catalogue
// placeholder.
func LoadAndSeed(ctx context.Context, seedFile string, store Inserter, logger *slog.Logger) error {
	f, err := os.Open(seedFile)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed, err := url.Parse(line)
		if err != nil {
			logger.Warn("invalid seed url", "url", line, "error", err)
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			logger.Warn("unsupported scheme in seed url", "url", line, "scheme", parsed.Scheme)
			continue
		}

		if err := store.InsertPlaceholder(ctx, line, ""); err != nil {
			logger.Warn("failed to insert seed url", "url", line, "error", err)
			continue
		}

		count++
		logger.Info("seeded url", "url", line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	logger.Info("seeding complete", "count", count)
	return nil
}
