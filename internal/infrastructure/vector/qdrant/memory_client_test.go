package qdrant

import (
	"context"
	"testing"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

type axisEmbedder struct{}

// Maps known texts onto fixed axes so similarity ordering is predictable.
func (axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = axisVector(text)
	}
	return out, nil
}

func (axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return axisVector(text), nil
}

func axisVector(text string) []float32 {
	switch text {
	case "wage", "minimum wage notice":
		return []float32{1, 0}
	default:
		return []float32{0, 1}
	}
}

func TestMemoryAdapterOrdersBySimilarity(t *testing.T) {
	adapter := NewMemoryAdapter(axisEmbedder{})
	err := adapter.Seed(context.Background(), []domain.Evidence{
		{Title: "wage notice", Text: "minimum wage notice"},
		{Title: "unrelated", Text: "course enrollment deadline"},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	out, err := adapter.Search(context.Background(), "wage", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out) != 2 || out[0].Title != "wage notice" {
		t.Fatalf("expected wage notice first, got %+v", out)
	}
	if out[0].RawScore <= out[1].RawScore {
		t.Fatalf("scores not ordered: %f vs %f", out[0].RawScore, out[1].RawScore)
	}
}

func TestMemoryAdapterTopKBound(t *testing.T) {
	adapter := NewMemoryAdapter(axisEmbedder{})
	_ = adapter.Seed(context.Background(), []domain.Evidence{
		{Text: "a"}, {Text: "b"}, {Text: "c"},
	})
	out, err := adapter.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected topK bound of 2, got %d", len(out))
	}
}
