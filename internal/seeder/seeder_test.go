package seeder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeInserter struct {
	inserted []string
}

func (f *fakeInserter) InsertPlaceholder(_ context.Context, url string, _ string) error {
	f.inserted = append(f.inserted, url)
	return nil
}

func writeSeedFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	return path
}

func TestLoadAndSeed_SkipsBlankAndCommentLines(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "# comment", "", "http://market.onion")
	ins := &fakeInserter{}

	if err := LoadAndSeed(context.Background(), path, ins, testLogger()); err != nil {
		t.Fatalf("LoadAndSeed: %v", err)
	}
	if len(ins.inserted) != 1 || ins.inserted[0] != "http://market.onion" {
		t.Errorf("inserted = %v, want [http://market.onion]", ins.inserted)
	}
}

func TestLoadAndSeed_SkipsUnsupportedScheme(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "ftp://market.onion")
	ins := &fakeInserter{}

	if err := LoadAndSeed(context.Background(), path, ins, testLogger()); err != nil {
		t.Fatalf("LoadAndSeed: %v", err)
	}
	if len(ins.inserted) != 0 {
		t.Errorf("inserted = %v, want none for unsupported scheme", ins.inserted)
	}
}

func TestLoadAndSeed_MissingFileReturnsError(t *testing.T) {
	t.Parallel()

	ins := &fakeInserter{}

	if err := LoadAndSeed(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), ins, testLogger()); err == nil {
		t.Fatal("LoadAndSeed: want error for missing file")
	}
}

func TestLoadAndSeed_SkipsSchemelessLine(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, "invalid-url-no-scheme")
	ins := &fakeInserter{}

	if err := LoadAndSeed(context.Background(), path, ins, testLogger()); err != nil {
		t.Fatalf("LoadAndSeed: %v", err)
	}
	if len(ins.inserted) != 0 {
		t.Errorf("inserted = %v, want none for a schemeless url", ins.inserted)
	}
}
