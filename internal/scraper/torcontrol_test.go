package scraper

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func torTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeControlPort speaks just enough of the Tor control protocol for
// sendNewnym: it accepts one connection, acks AUTHENTICATE, then replies
// to SIGNAL NEWNYM with the response this test wants to exercise.
func fakeControlPort(t *testing.T, reply string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		r.ReadString('\n') // AUTHENTICATE
		conn.Write([]byte("250 OK\r\n"))
		r.ReadString('\n') // SIGNAL NEWNYM
		conn.Write([]byte(reply))
	}()

	return ln.Addr().String()
}

func TestRequestNewIdentity_NilRedisAlwaysRotates(t *testing.T) {
	t.Parallel()

	addr := fakeControlPort(t, "250 OK\r\n")
	tc := NewTorController(addr, nil, torTestLogger())

	// With a nil redis client there is no cooldown gate and the call dials
	// the fake control port; the test checks only that it does not panic.
	tc.RequestNewIdentity(context.Background())
}

func TestRequestNewIdentity_CooldownSuppressesSecondRotation(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			calls++
			r := bufio.NewReader(conn)
			r.ReadString('\n')
			conn.Write([]byte("250 OK\r\n"))
			r.ReadString('\n')
			conn.Write([]byte("250 OK\r\n"))
			conn.Close()
		}
	}()

	tc := NewTorController(ln.Addr().String(), rdb, torTestLogger())
	ctx := context.Background()

	tc.RequestNewIdentity(ctx)
	tc.RequestNewIdentity(ctx)

	if calls != 1 {
		t.Errorf("control port dialed %d times, want 1: second call should be suppressed by cooldown", calls)
	}
}

func TestRequestNewIdentity_NonOKResponseIsSwallowed(t *testing.T) {
	t.Parallel()

	addr := fakeControlPort(t, "552 Unrecognized command\r\n")
	tc := NewTorController(addr, nil, torTestLogger())

	// RequestNewIdentity has no correctness role: a rejected signal must
	// not propagate as an error to the caller.
	tc.RequestNewIdentity(context.Background())
}
