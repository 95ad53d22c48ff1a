package scheduler

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakePublisher struct {
	failAfter int // publish fails starting at this call index, -1 means never
	calls     int
	published []string
}

func (f *fakePublisher) Publish(_ context.Context, _ string, body []byte) bool {
	defer func() { f.calls++ }()
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		return false
	}
	f.published = append(f.published, string(body))
	return true
}

func TestPublishAll_PublishesEveryURLOnSuccess(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{failAfter: -1}
	urls := []string{"http://a.onion", "http://b.onion", "http://c.onion"}

	n := publishAll(context.Background(), urls, pub, testLogger())

	if n != 3 {
		t.Errorf("publishAll() = %d, want 3", n)
	}
	if len(pub.published) != 3 {
		t.Errorf("published %v, want all 3 urls", pub.published)
	}
}

func TestPublishAll_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{failAfter: 1}
	urls := []string{"http://a.onion", "http://b.onion", "http://c.onion"}

	n := publishAll(context.Background(), urls, pub, testLogger())

	if n != 1 {
		t.Errorf("publishAll() = %d, want 1 (stop at first failure)", n)
	}
}

func TestPublishAll_CancelledContextStopsImmediately(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{failAfter: -1}
	urls := []string{"http://a.onion", "http://b.onion"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := publishAll(ctx, urls, pub, testLogger())

	if n != 0 {
		t.Errorf("publishAll() with cancelled context = %d, want 0", n)
	}
}

func TestPublishAll_EmptyURLList(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{failAfter: -1}

	n := publishAll(context.Background(), nil, pub, testLogger())

	if n != 0 {
		t.Errorf("publishAll() on empty list = %d, want 0", n)
	}
}
