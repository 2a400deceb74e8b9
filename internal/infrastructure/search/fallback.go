package search

import (
	"context"
	"log/slog"

	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// Fallback chains two web providers: the secondary is consulted only when
// the primary errors or comes back empty. Both failing returns the
// secondary's error so the orchestrator can log one degraded stage.
type Fallback struct {
	primary   ports.SourceAdapter
	secondary ports.SourceAdapter
	logger    *slog.Logger
}

func NewFallback(primary, secondary ports.SourceAdapter, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Channel() domain.Channel { return f.primary.Channel() }

func (f *Fallback) Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error) {
	out, err := f.primary.Search(ctx, text, topK)
	if err == nil && len(out) > 0 {
		return out, nil
	}
	if f.secondary == nil {
		return out, err
	}
	if err != nil && f.logger != nil {
		f.logger.Debug("primary web provider degraded, trying secondary", "error", err)
	}
	return f.secondary.Search(ctx, text, topK)
}
