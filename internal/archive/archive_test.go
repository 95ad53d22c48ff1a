package archive

import (
	"strings"
	"testing"
)

func TestKey_RootPathBecomesIndex(t *testing.T) {
	t.Parallel()

	k := Key("http://market.onion/")
	if !strings.HasPrefix(k, "market.onion/index_") {
		t.Errorf("Key(root) = %q, want prefix market.onion/index_", k)
	}
}

func TestKey_TrailingSlashStripped(t *testing.T) {
	t.Parallel()

	k := Key("http://market.onion/page/")
	if !strings.HasPrefix(k, "market.onion/page_") {
		t.Errorf("Key(trailing slash) = %q, want prefix market.onion/page_", k)
	}
}

func TestKey_DistinctURLsGetDistinctKeys(t *testing.T) {
	t.Parallel()

	a := Key("http://market.onion/page?x=1")
	b := Key("http://market.onion/page?x=2")
	if a == b {
		t.Errorf("Key() collided for query-string variants: %q", a)
	}
}

func TestKey_SameURLIsStable(t *testing.T) {
	t.Parallel()

	a := Key("http://market.onion/page")
	b := Key("http://market.onion/page")
	if a != b {
		t.Errorf("Key() not stable: %q != %q", a, b)
	}
}

func TestKey_InvalidURLFallsBackToSanitizedForm(t *testing.T) {
	t.Parallel()

	k := Key("://invalid")
	if !strings.HasPrefix(k, "unknown/") {
		t.Errorf("Key(invalid) = %q, want unknown/ prefix", k)
	}
}
