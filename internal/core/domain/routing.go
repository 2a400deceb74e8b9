package domain

// ModelTier is the routing outcome: stay on the default model or escalate
// to the high-capability one.
type ModelTier string

const (
	TierDefault ModelTier = "DEFAULT"
	TierHigh    ModelTier = "HIGH"
)

// Intent is the coarse query domain used for token-based promotion.
type Intent string

const (
	IntentGeneral  Intent = "GENERAL"
	IntentVertical Intent = "VERTICAL"
)

// Verbosity hints at the expected answer depth.
type Verbosity string

const (
	VerbosityBrief Verbosity = "BRIEF"
	VerbosityDeep  Verbosity = "DEEP"
	VerbosityUltra Verbosity = "ULTRA"
)

// Preference is the caller's speed/quality trade-off.
type Preference string

const (
	PreferenceSpeed   Preference = "SPEED"
	PreferenceQuality Preference = "QUALITY"
)

// RouteSignal aggregates the heuristics the model router compares against
// its thresholds. Signals are built fresh per request and never mutated; a
// guard that wants to escalate builds a new signal with raised fields.
type RouteSignal struct {
	SessionID     string
	Complexity    float64
	Uncertainty   float64
	Theta         float64 // fused web-evidence score
	Intent        Intent
	Verbosity     Verbosity
	MaxTokens     int
	Preference    Preference
	RequestedTemp float64
}

// WithUncertainty returns a copy of the signal with a raised uncertainty
// score, used by guards when drafting fails coverage.
func (s RouteSignal) WithUncertainty(u float64) RouteSignal {
	out := s
	out.Uncertainty = u
	return out
}

// RouteDecision is published after every routing call for offline analysis.
type RouteDecision struct {
	SessionID   string    `json:"session_id"`
	Tier        ModelTier `json:"tier"`
	Escalated   bool      `json:"escalated"`
	Theta       float64   `json:"theta"`
	Uncertainty float64   `json:"uncertainty"`
	MaxTokens   int       `json:"max_tokens"`
	Reason      string    `json:"reason"`
}
