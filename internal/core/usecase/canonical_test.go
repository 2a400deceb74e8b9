package usecase

import (
	"strings"
	"testing"
)

func TestCanonicalIDStripsTrackingParams(t *testing.T) {
	got := CanonicalID("https://Example.com/a/?utm_source=mail&q=1&fbclid=zz")
	want := "https://example.com/a?q=1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCanonicalIDIdempotent(t *testing.T) {
	urls := []string{
		"HTTPS://News.Example.com/Path/?utm_medium=x#frag",
		"https://example.com/a",
		"not a url at all",
	}
	for _, u := range urls {
		once := CanonicalID(u)
		twice := CanonicalID(once)
		if once != twice {
			t.Fatalf("canonicalization not idempotent for %q: %q vs %q", u, once, twice)
		}
	}
}

func TestCanonicalIDTrailingSlashAndFragment(t *testing.T) {
	a := CanonicalID("https://x.com/a/")
	b := CanonicalID("https://x.com/a#section")
	if a != b {
		t.Fatalf("expected trailing slash and fragment variants to merge: %q vs %q", a, b)
	}
}

func TestCanonicalIDNonURLFallsBack(t *testing.T) {
	got := CanonicalID("  Some Raw Identifier  ")
	if got != "some raw identifier" {
		t.Fatalf("expected lowercased trim fallback, got %q", got)
	}
}

func TestContentHashStableAndPrefixed(t *testing.T) {
	a := contentHash("  The 2024 minimum wage  ")
	b := contentHash("the 2024 minimum wage")
	if a != b {
		t.Fatalf("expected whitespace/case-insensitive hash, got %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "sha1:") {
		t.Fatalf("expected sha1 prefix, got %q", a)
	}
}
