package usecase

import (
	"context"
	"log/slog"
	"math"

	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// EmbeddingScorer computes query/passage relatedness from dense vectors.
// Embedding failures degrade to lexical token overlap so scoring never
// blocks the pipeline.
type EmbeddingScorer struct {
	embedder ports.Embedder
	logger   *slog.Logger
}

func NewEmbeddingScorer(embedder ports.Embedder, logger *slog.Logger) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder, logger: logger}
}

// Relatedness scores every text against the query in [0,1]. One batched
// embed call covers the query and all texts.
func (s *EmbeddingScorer) Relatedness(ctx context.Context, query string, texts []string) []float64 {
	out := make([]float64, len(texts))
	if len(texts) == 0 {
		return out
	}
	if s.embedder != nil {
		batch := make([]string, 0, len(texts)+1)
		batch = append(batch, query)
		batch = append(batch, texts...)
		vectors, err := s.embedder.Embed(ctx, batch)
		if err == nil && len(vectors) == len(batch) {
			for i := range texts {
				out[i] = clamp01((cosine(vectors[0], vectors[i+1]) + 1) / 2)
			}
			return out
		}
		if err != nil && s.logger != nil {
			s.logger.Debug("embedding relatedness degraded to token overlap", "error", err)
		}
	}
	for i, text := range texts {
		out[i] = tokenOverlap(query, text)
	}
	return out
}

// Vectors embeds the texts for pairwise similarity; nil means the caller
// should fall back to a lexical similarity.
func (s *EmbeddingScorer) Vectors(ctx context.Context, texts []string) [][]float32 {
	if s.embedder == nil || len(texts) == 0 {
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		if err != nil && s.logger != nil {
			s.logger.Debug("embedding similarity unavailable", "error", err)
		}
		return nil
	}
	return vectors
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
