package processor

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAlreadySeen_NilCacheAlwaysFalse(t *testing.T) {
	t.Parallel()

	p := &Processor{seen: nil, logger: testLogger()}
	if p.alreadySeen(context.Background(), "http://a.onion") {
		t.Error("alreadySeen() with nil cache = true, want false")
	}
}

func TestMarkSeenThenAlreadySeen_RoundTrips(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	p := &Processor{seen: rdb, logger: testLogger()}
	ctx := context.Background()
	link := "http://market.onion/page"

	if p.alreadySeen(ctx, link) {
		t.Fatal("alreadySeen() before mark = true, want false")
	}

	p.markSeen(ctx, link)

	if !p.alreadySeen(ctx, link) {
		t.Error("alreadySeen() after mark = false, want true")
	}
}

func TestAlreadySeen_DistinctLinksDontCollide(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	p := &Processor{seen: rdb, logger: testLogger()}
	ctx := context.Background()

	p.markSeen(ctx, "http://a.onion")

	if p.alreadySeen(ctx, "http://b.onion") {
		t.Error("alreadySeen() for an unmarked link = true, want false")
	}
}

func TestSeenKey_SameLinkSameKey(t *testing.T) {
	t.Parallel()

	a := seenKey("http://a.onion/x")
	b := seenKey("http://a.onion/x")
	c := seenKey("http://a.onion/y")

	if a != b {
		t.Error("seenKey() not stable for identical input")
	}
	if a == c {
		t.Error("seenKey() collided for different links")
	}
}

func TestQuoteStripper_RemovesQuoteCharacters(t *testing.T) {
	t.Parallel()

	in := `http://a.onion/"x"'y'` + "`z`"
	want := "http://a.onion/xyz"
	if got := quoteStripper.Replace(in); got != want {
		t.Errorf("quoteStripper.Replace(%q) = %q, want %q", in, got, want)
	}
}
