package scraper

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	newnymCooldown      = 10 * time.Second
	newnymCooldownKey   = "scraper:torcontrol:newnym_cooldown"
	controlDialTimeout  = 5 * time.Second
)

// TorController sends NEWNYM signals over Tor's control port to rotate
// circuit identity after a fetch failure against the proxy, at most once
// per cooldown window. It has no correctness role: a failed fetch is
// dropped whether or not identity rotates; rotation only gives later
// fetches a fresh circuit.
type TorController struct {
	controlAddr string
	rdb         *redis.Client
	logger      *slog.Logger
}

// NewTorController returns a controller that dials controlAddr (Tor's
// control listener) on demand and uses rdb to rate-limit rotations across
// concurrent scraper processes sharing the same Tor instance.
func NewTorController(controlAddr string, rdb *redis.Client, logger *slog.Logger) *TorController {
	return &TorController{controlAddr: controlAddr, rdb: rdb, logger: logger}
}

// RequestNewIdentity asks Tor for a new circuit, but only if no rotation
// has happened within the cooldown window, preventing one misbehaving
// worker from thrashing the shared proxy's circuits.
func (t *TorController) RequestNewIdentity(ctx context.Context) {
	if t.rdb != nil {
		acquired, err := t.rdb.SetNX(ctx, newnymCooldownKey, "1", newnymCooldown).Result()
		if err != nil {
			t.logger.WarnContext(ctx, "newnym cooldown check failed, skipping rotation", "error", err)
			return
		}
		if !acquired {
			return
		}
	}

	if err := t.sendNewnym(ctx); err != nil {
		t.logger.WarnContext(ctx, "tor newnym signal failed", "error", err)
		return
	}
	t.logger.Info("tor identity rotated")
}

func (t *TorController) sendNewnym(ctx context.Context) error {
	dialer := net.Dialer{Timeout: controlDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.controlAddr)
	if err != nil {
		return fmt.Errorf("dialing control port: %w", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "AUTHENTICATE\r\n"); err != nil {
		return fmt.Errorf("sending authenticate: %w", err)
	}
	reader := bufio.NewReader(conn)
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("reading authenticate response: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "SIGNAL NEWNYM\r\n"); err != nil {
		return fmt.Errorf("sending newnym signal: %w", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading newnym response: %w", err)
	}
	if len(line) < 3 || line[:3] != "250" {
		return fmt.Errorf("unexpected control response: %q", line)
	}

	return nil
}
