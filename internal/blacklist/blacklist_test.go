package blacklist

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func digestOf(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func writeBlacklistFile(t *testing.T, entries ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.txt")

	contents := ""
	for i, e := range entries {
		if i > 0 {
			contents += " "
		}
		contents += e
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIsBlocked_FullURLMatch(t *testing.T) {
	t.Parallel()

	url := "http://forbidden.onion/path"
	path := writeBlacklistFile(t, digestOf(url))

	b := Load(path, testLogger())
	if !b.IsBlocked(url) {
		t.Error("IsBlocked() = false, want true for exact-match digest")
	}
}

func TestIsBlocked_StrippedURLMatch(t *testing.T) {
	t.Parallel()

	url := `http://forbidden.onion/path?q="quoted"`
	path := writeBlacklistFile(t, digestOf(Strip(url)))

	b := Load(path, testLogger())
	if !b.IsBlocked(url) {
		t.Error("IsBlocked() = false, want true for stripped-form digest match")
	}
}

func TestIsBlocked_NotPresent(t *testing.T) {
	t.Parallel()

	path := writeBlacklistFile(t, digestOf("http://other.onion"))

	b := Load(path, testLogger())
	if b.IsBlocked("http://clean.onion") {
		t.Error("IsBlocked() = true, want false for unlisted URL")
	}
}

func TestStrip_RemovesQuoteCharacters(t *testing.T) {
	t.Parallel()

	in := "http://a.onion/\"x\"'y'`z`"
	want := "http://a.onion/xyz"
	if got := Strip(in); got != want {
		t.Errorf("Strip(%q) = %q, want %q", in, got, want)
	}
}

func TestLoad_CaseInsensitiveDigests(t *testing.T) {
	t.Parallel()

	url := "http://forbidden.onion"
	path := writeBlacklistFile(t, digestOf(url))

	// tamper with case to confirm digests are lowercased on load
	contents, _ := os.ReadFile(path)
	upper := []byte{}
	for _, c := range contents {
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper = append(upper, c)
	}
	_ = os.WriteFile(path, upper, 0o644)

	b := Load(path, testLogger())
	if !b.IsBlocked(url) {
		t.Error("IsBlocked() = false after case round-trip, want true")
	}
}
