package sleeper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSleep_FirstRunDoesNotBlock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	s := New(path, testLogger())

	start := time.Now()
	s.Sleep(context.Background(), 10)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep on first run took %v, want near-instant", elapsed)
	}
}

func TestSleep_PersistsCompletionTimestamp(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	s := New(path, testLogger())

	s.Sleep(context.Background(), 0)

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := time.Parse(timeLayout, string(contents)); err != nil {
		t.Errorf("persisted timestamp %q doesn't match layout: %v", contents, err)
	}
}

func TestSleep_ElapsedTargetReturnsPromptly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	last := time.Now().Add(-900 * time.Millisecond).Format(timeLayout)
	if err := os.WriteFile(path, []byte(last), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(path, testLogger())

	start := time.Now()
	// hours=0 and the persisted last-run timestamp (truncated to whole
	// seconds) is already in the past, so the target has elapsed and Sleep
	// returns without waiting.
	s.Sleep(context.Background(), 0)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Sleep took %v, want a short bounded wait", elapsed)
	}
}

func TestSleep_CancellableByContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	last := time.Now().Format(timeLayout)
	if err := os.WriteFile(path, []byte(last), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(path, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	// hours=5 would otherwise block for 5 hours; cancellation must cut
	// this short within roughly one poll interval.
	s.Sleep(ctx, 5)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Sleep after cancel took %v, want well under 2s", elapsed)
	}
}

func TestSleep_MalformedStateFileTreatedAsFirstRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	if err := os.WriteFile(path, []byte("not a timestamp"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(path, testLogger())

	start := time.Now()
	s.Sleep(context.Background(), 10)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep with malformed state took %v, want near-instant", elapsed)
	}
}

func TestSleep_NegativeHoursClampedToZero(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sleeper.txt")
	last := time.Now().Format(timeLayout)
	if err := os.WriteFile(path, []byte(last), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(path, testLogger())

	start := time.Now()
	s.Sleep(context.Background(), -5)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep with negative hours took %v, want near-instant", elapsed)
	}
}
