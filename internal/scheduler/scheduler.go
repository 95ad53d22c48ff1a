// Package scheduler runs the single-shot due-URL sweep: wait out the
// inter-run pacing, list URLs due for a (re)crawl, and hand each one to a
// Scraper worker over the work queue.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/queue"
	"github.com/elodkocsis/tenebra/internal/sleeper"
)

// Publisher is the subset of queue.Client the scheduler needs, accepted as
// an interface so a run can be driven against a fake in tests.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) bool
}

// Run performs one scheduling pass: sleep out the minimum spacing since the
// last completed run, list due URLs, and publish each to the worker queue,
// stopping at the first publish failure so the remainder is picked up by
// the next invocation's list_due query. It returns the number of URLs
// published.
func Run(ctx context.Context, sl *sleeper.Sleeper, sleeperHours int, store *catalogue.Store, pub Publisher, accessDayDifference int, logger *slog.Logger) (int, error) {
	sl.Sleep(ctx, sleeperHours)

	select {
	case <-ctx.Done():
		return 0, nil
	default:
	}

	urls, err := store.ListDue(ctx, accessDayDifference)
	if err != nil {
		return 0, err
	}

	logger.Info("due urls listed", "count", len(urls))

	published := publishAll(ctx, urls, pub, logger)

	logger.Info("scheduling run complete", "published", published, "total_due", len(urls))
	return published, nil
}

// publishAll publishes each URL to the worker queue in order, stopping at
// the first failure or context cancellation, and returns how many
// succeeded.
func publishAll(ctx context.Context, urls []string, pub Publisher, logger *slog.Logger) int {
	published := 0
	for _, url := range urls {
		select {
		case <-ctx.Done():
			return published
		default:
		}

		if !pub.Publish(ctx, queue.WorkerQueue, []byte(url)) {
			logger.Warn("publish failed, stopping run early", "published", published, "remaining", len(urls)-published)
			break
		}
		published++
	}
	return published
}
