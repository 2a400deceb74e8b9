package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 10)
	chunks := s.Split("최저임금은 시간당 9,860원입니다.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitOverlapsWindows(t *testing.T) {
	s := NewSplitter(10, 4)
	chunks := s.Split(strings.Repeat("abcdef", 5))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 10 {
			t.Fatalf("chunk exceeds window: %q", c)
		}
	}
	// Consecutive windows share their 4-rune overlap.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	if string(first[len(first)-4:]) != string(second[:4]) {
		t.Fatalf("expected overlap between %q and %q", chunks[0], chunks[1])
	}
}

func TestSplitBlankTextReturnsNothing(t *testing.T) {
	if chunks := NewSplitter(10, 2).Split("   "); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}
