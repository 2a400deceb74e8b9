package ports

import (
	"context"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// QueryPlanner turns a raw utterance into sanitized search queries.
type QueryPlanner interface {
	Plan(ctx context.Context, utterance, priorDraft string, maxQueries int) ([]string, error)
}

// ComplexityGate classifies a query for retrieval depth. Pure and
// deterministic for identical input.
type ComplexityGate interface {
	Assess(text string) domain.ComplexityLevel
}

// EvidenceRetriever runs the fail-soft retrieval chain and returns the
// fused, reranked evidence set.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, query domain.Query, hints domain.RetrievalHints) ([]domain.Evidence, error)
}

// ModelRouter decides the model tier for a route signal. Escalate is the
// convenience alias used by the evidence quality guard.
type ModelRouter interface {
	Route(ctx context.Context, signal domain.RouteSignal) domain.ModelTier
	Escalate(ctx context.Context, signal domain.RouteSignal) domain.ModelTier
}
