// Package blacklist holds the in-memory set of forbidden URL hashes the
// Processor checks before writing any row to the catalogue. Operating
// without a populated blacklist is not acceptable, so a missing or empty
// file halts the process.
package blacklist

import (
	"crypto/md5" //nolint:gosec // MD5 is the wire format this blacklist file uses, not a security boundary
	"encoding/hex"
	"log/slog"
	"os"
	"strings"
)

// Blacklist is an immutable set of MD5 hex digests loaded once at startup.
type Blacklist struct {
	digests map[string]struct{}
}

// Load reads path, a whitespace-separated list of hex MD5 digests. A
// missing or empty file is fatal with exit code 0 so a supervisor with
// an on-failure restart policy won't loop forever.
func Load(path string, logger *slog.Logger) *Blacklist {
	contents, err := os.ReadFile(path)
	if err != nil {
		logger.Error("couldn't read blacklist file, refusing to run without one", "path", path, "error", err)
		os.Exit(0)
	}

	fields := strings.Fields(string(contents))
	if len(fields) == 0 {
		logger.Error("blacklist file is empty, refusing to run without one", "path", path)
		os.Exit(0)
	}

	digests := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		digests[strings.ToLower(f)] = struct{}{}
	}

	logger.Info("blacklist loaded", "entries", len(digests))
	return &Blacklist{digests: digests}
}

// IsBlocked reports whether url is forbidden: its full-URL MD5 or its
// stripped-form MD5 appears in the loaded digest set.
func (b *Blacklist) IsBlocked(url string) bool {
	_, fullBlocked := b.digests[md5Hex(url)]
	if fullBlocked {
		return true
	}
	_, strippedBlocked := b.digests[md5Hex(Strip(url))]
	return strippedBlocked
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Strip removes quote characters from url, matching the stripped form the
// blacklist file was generated against.
func Strip(url string) string {
	return strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(url)
}
