// Package sleeper enforces a minimum wall-clock spacing between scheduler
// runs, anchored to the last completion time rather than the last start, so
// a crash mid-wait never resets the clock.
package sleeper

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// timeLayout is the on-disk timestamp format: %Y-%b-%d %H:%M:%S.
const timeLayout = "2006-Jan-02 15:04:05"

const pollInterval = 500 * time.Millisecond

// Sleeper persists the last completion timestamp to path and blocks future
// calls until at least the configured number of hours has elapsed since
// then.
type Sleeper struct {
	path   string
	logger *slog.Logger
}

// New returns a Sleeper that reads and writes its state at path.
func New(path string, logger *slog.Logger) *Sleeper {
	return &Sleeper{path: path, logger: logger}
}

// Sleep blocks until hours have elapsed since the last recorded completion,
// or ctx is cancelled, whichever comes first. A negative hours is treated
// as zero. On return (including cancellation) it writes the current time
// as the new completion mark; write failures are logged and ignored.
func (s *Sleeper) Sleep(ctx context.Context, hours int) {
	if hours < 0 {
		hours = 0
	}

	last, ok := s.readLast()
	if ok {
		target := last.Add(time.Duration(hours) * time.Hour)
		s.waitUntil(ctx, target)
	}

	s.writeNow()
}

func (s *Sleeper) readLast() (time.Time, bool) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return time.Time{}, false
	}

	last, err := time.ParseInLocation(timeLayout, string(contents), time.Local)
	if err != nil {
		s.logger.Warn("sleeper state file malformed, treating as first run", "path", s.path, "error", err)
		return time.Time{}, false
	}
	return last, true
}

func (s *Sleeper) waitUntil(ctx context.Context, target time.Time) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sleeper) writeNow() {
	now := time.Now().Format(timeLayout)
	if err := os.WriteFile(s.path, []byte(now), 0o644); err != nil {
		s.logger.Warn("couldn't persist sleeper state", "path", s.path, "error", err)
	}
}
