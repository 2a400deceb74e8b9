package qdrant

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// MemoryAdapter is an in-process vector source for development and tests.
// It mirrors the real adapter's contract: cosine similarity over stored
// vectors, hits returned best first with RawScore set.
type MemoryAdapter struct {
	embedder ports.Embedder

	mu      sync.RWMutex
	items   []domain.Evidence
	vectors [][]float32
}

func NewMemoryAdapter(embedder ports.Embedder) *MemoryAdapter {
	return &MemoryAdapter{embedder: embedder}
}

func (m *MemoryAdapter) Channel() domain.Channel { return domain.ChannelVector }

// Seed indexes evidence items. Vectors are computed once at seed time.
func (m *MemoryAdapter) Seed(ctx context.Context, items []domain.Evidence) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

func (m *MemoryAdapter) Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error) {
	query, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(m.items))
	for i, vector := range m.vectors {
		hits = append(hits, hit{idx: i, score: cosine32(query, vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if topK > len(hits) {
		topK = len(hits)
	}
	out := make([]domain.Evidence, 0, topK)
	for _, h := range hits[:topK] {
		ev := m.items[h.idx]
		ev.Channel = domain.ChannelVector
		ev.RawScore = h.score
		out = append(out, ev)
	}
	return out, nil
}

func cosine32(a, b []float32) float64 {
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
