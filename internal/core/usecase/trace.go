package usecase

// PlanTrace records planner intermediates for one request: what the
// extractors proposed, what survived hygiene, and what was returned. A
// fresh trace is built per plan call and threaded explicitly, never stored
// on the planner.
type PlanTrace struct {
	Utterance string   `json:"utterance"`
	Domain    string   `json:"domain"`
	Subject   string   `json:"subject,omitempty"`
	Proposed  []string `json:"proposed"`
	Kept      []string `json:"kept"`
	Final     []string `json:"final"`
	Fallback  bool     `json:"fallback"`
}

// RetrievalTrace captures per-stage outcomes for diagnostics.
type RetrievalTrace struct {
	Level          string         `json:"level"`
	Stages         []StageOutcome `json:"stages"`
	ShortCircuited bool           `json:"short_circuited"`
	RiskScore      float64        `json:"risk_score"`
	EffectiveTopK  int            `json:"effective_top_k"`
}

// StageOutcome is one stage's contribution to the evidence pool.
type StageOutcome struct {
	Stage    string `json:"stage"`
	Count    int    `json:"count"`
	Degraded bool   `json:"degraded"`
	Skipped  bool   `json:"skipped"`
}
