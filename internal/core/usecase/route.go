package usecase

import (
	"context"
	"log/slog"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// RoutePolicy decides the model tier for one signal. Policies are
// swappable behind the router's public contract; the router only adds
// decision publishing on top.
type RoutePolicy interface {
	Decide(ctx context.Context, signal domain.RouteSignal) (domain.ModelTier, string)
}

// thresholdReason evaluates the escalation rules in a fixed order and
// returns the first that fires, or "" when none do.
func thresholdReason(cfg config.RouterConfig, signal domain.RouteSignal) string {
	switch {
	case signal.Intent == domain.IntentGeneral && signal.MaxTokens >= cfg.TokensThreshold:
		return "max_tokens"
	case signal.Uncertainty >= cfg.UncertaintyThreshold:
		return "uncertainty"
	case signal.Theta >= cfg.WebEvidenceThreshold:
		return "web_evidence"
	case signal.Complexity >= cfg.ComplexityThreshold:
		return "complexity"
	case signal.Preference == domain.PreferenceQuality:
		return "quality_preference"
	case cfg.EscalateOnRigidTemp && signal.RequestedTemp > 0 &&
		isRigidTempModel(cfg, cfg.DefaultModel) && signal.RequestedTemp != cfg.RigidTempDefault:
		// A rigid model pins its temperature; a caller asking for exactly
		// that value is satisfiable on the default tier.
		return "rigid_temperature"
	}
	return ""
}

func isRigidTempModel(cfg config.RouterConfig, model string) bool {
	for _, m := range cfg.RigidTempModels {
		if m == model {
			return true
		}
	}
	return false
}

// ThresholdPolicy is the stateless direct-comparison policy.
type ThresholdPolicy struct {
	cfg config.RouterConfig
}

func NewThresholdPolicy(cfg config.RouterConfig) *ThresholdPolicy {
	return &ThresholdPolicy{cfg: cfg}
}

func (p *ThresholdPolicy) Decide(_ context.Context, signal domain.RouteSignal) (domain.ModelTier, string) {
	if reason := thresholdReason(p.cfg, signal); reason != "" {
		return domain.TierHigh, reason
	}
	return domain.TierDefault, "below_thresholds"
}

// HysteresisPolicy wraps the threshold rules with per-session stickiness:
// a session routed HIGH last turn stays HIGH while its continuous signals
// sit within the margin below their thresholds, so borderline signals do
// not flip tiers every turn. Store trouble fails open to the plain
// threshold decision.
type HysteresisPolicy struct {
	cfg    config.RouterConfig
	store  ports.TierStateStore
	logger *slog.Logger
}

func NewHysteresisPolicy(cfg config.RouterConfig, store ports.TierStateStore, logger *slog.Logger) *HysteresisPolicy {
	return &HysteresisPolicy{cfg: cfg, store: store, logger: logger}
}

func (p *HysteresisPolicy) Decide(ctx context.Context, signal domain.RouteSignal) (domain.ModelTier, string) {
	tier := domain.TierDefault
	reason := thresholdReason(p.cfg, signal)
	if reason != "" {
		tier = domain.TierHigh
	} else {
		reason = "below_thresholds"
		if p.holds(ctx, signal) {
			tier = domain.TierHigh
			reason = "hysteresis_hold"
		}
	}
	p.save(ctx, signal.SessionID, tier)
	return tier, reason
}

func (p *HysteresisPolicy) holds(ctx context.Context, signal domain.RouteSignal) bool {
	if p.store == nil || signal.SessionID == "" {
		return false
	}
	last, err := p.store.LastTier(ctx, signal.SessionID)
	if err != nil {
		if p.logger != nil {
			p.logger.Debug("tier state unavailable, falling back to threshold decision", "error", err)
		}
		return false
	}
	if last != domain.TierHigh {
		return false
	}
	margin := p.cfg.HysteresisMargin
	return signal.Uncertainty >= p.cfg.UncertaintyThreshold-margin ||
		signal.Theta >= p.cfg.WebEvidenceThreshold-margin ||
		signal.Complexity >= p.cfg.ComplexityThreshold-margin
}

func (p *HysteresisPolicy) save(ctx context.Context, sessionID string, tier domain.ModelTier) {
	if p.store == nil || sessionID == "" {
		return
	}
	if err := p.store.SaveTier(ctx, sessionID, tier); err != nil && p.logger != nil {
		p.logger.Debug("tier state save failed", "error", err)
	}
}

// Router is the public routing facade: delegate to the policy, publish the
// decision best-effort, return the tier.
type Router struct {
	policy    RoutePolicy
	publisher ports.DecisionPublisher
	logger    *slog.Logger
}

func NewRouter(policy RoutePolicy, publisher ports.DecisionPublisher, logger *slog.Logger) *Router {
	return &Router{policy: policy, publisher: publisher, logger: logger}
}

// Route implements ports.ModelRouter.
func (r *Router) Route(ctx context.Context, signal domain.RouteSignal) domain.ModelTier {
	tier, _ := r.RouteWithReason(ctx, signal)
	return tier
}

// RouteWithReason exposes the winning rule for diagnostics.
func (r *Router) RouteWithReason(ctx context.Context, signal domain.RouteSignal) (domain.ModelTier, string) {
	tier, reason := r.policy.Decide(ctx, signal)
	if tier == domain.TierHigh && r.logger != nil {
		r.logger.Info("route promoted",
			"session_id", signal.SessionID,
			"reason", reason,
			"uncertainty", signal.Uncertainty,
			"theta", signal.Theta,
			"max_tokens", signal.MaxTokens)
	}
	r.publish(ctx, signal, tier, reason)
	return tier, reason
}

// Escalate is the alias used by the evidence quality guard.
func (r *Router) Escalate(ctx context.Context, signal domain.RouteSignal) domain.ModelTier {
	return r.Route(ctx, signal)
}

func (r *Router) publish(ctx context.Context, signal domain.RouteSignal, tier domain.ModelTier, reason string) {
	if r.publisher == nil {
		return
	}
	decision := domain.RouteDecision{
		SessionID:   signal.SessionID,
		Tier:        tier,
		Escalated:   tier == domain.TierHigh,
		Theta:       signal.Theta,
		Uncertainty: signal.Uncertainty,
		MaxTokens:   signal.MaxTokens,
		Reason:      reason,
	}
	if err := r.publisher.PublishRouteDecision(ctx, decision); err != nil && r.logger != nil {
		r.logger.Debug("route decision publish failed", "error", err)
	}
}
