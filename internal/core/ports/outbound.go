package ports

import (
	"context"
	"time"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// SourceAdapter searches one evidence channel. Implementations must be safe
// for concurrent use and must not fail the request on provider-side errors:
// degraded providers return an empty list together with the error so the
// orchestrator can log and move on.
type SourceAdapter interface {
	Channel() domain.Channel
	Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error)
}

// Generator is the opaque generate(prompt) -> text capability.
type Generator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// Embedder builds vectors for query and evidence text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TermSelector asks a language model for search vocabulary. A nil result
// with nil error means the selector declined; callers fall back to
// rule-based extraction.
type TermSelector interface {
	Select(ctx context.Context, conversation, domainProfile string, maxMust int) (*domain.SelectedTerms, error)
}

// CrossEncoder scores query/passage pairs for the expensive rerank stage.
type CrossEncoder interface {
	Rerank(ctx context.Context, query string, pool []domain.Evidence, limit int) ([]domain.Evidence, error)
}

// CooldownLock is a short-TTL mutual exclusion token guarding expensive
// operations. TryAcquire must fail open: lock-store unavailability reports
// acquired=true so correctness never depends on the store being reachable.
type CooldownLock interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) bool
}

// RateLimiter caps outbound calls per provider key. Fail-open: limiter
// trouble never blocks a request.
type RateLimiter interface {
	Allow(key string) bool
}

// TierStateStore remembers the last routed tier per session so the
// hysteresis policy can avoid oscillation across turns.
type TierStateStore interface {
	LastTier(ctx context.Context, sessionID string) (domain.ModelTier, error)
	SaveTier(ctx context.Context, sessionID string, tier domain.ModelTier) error
}

// DecisionPublisher emits routing decisions for offline analysis.
// Publishing is best effort; failures are logged, never surfaced.
type DecisionPublisher interface {
	PublishRouteDecision(ctx context.Context, decision domain.RouteDecision) error
}
