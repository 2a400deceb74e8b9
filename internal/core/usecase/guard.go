package usecase

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
)

var infoNonePattern = regexp.MustCompile(`(?i)(정보\s*없음|insufficient\s*information|no\s*info)`)

// EscalateFunc is the router callback the guard invokes on weak coverage.
type EscalateFunc func(ctx context.Context, signal domain.RouteSignal) domain.ModelTier

// GuardResult is the outcome of one coverage check.
type GuardResult struct {
	FinalAnswer string
	Escalated   bool
	Tier        domain.ModelTier
	Covered     int
}

// Guard estimates whether a drafted answer is supported by the selected
// evidence and escalates the route signal when it is not.
type Guard struct {
	cfg config.GuardConfig
}

func NewGuard(cfg config.GuardConfig) *Guard {
	if cfg.MinEntitiesCovered <= 0 {
		cfg.MinEntitiesCovered = 1
	}
	if cfg.MinDraftLength <= 0 {
		cfg.MinDraftLength = 12
	}
	return &Guard{cfg: cfg}
}

// EnsureCoverage counts how many evidence items have at least one title
// token present in the lowercased draft. With evidence on hand, coverage
// under the minimum or an "insufficient information" draft triggers the
// escalate callback with uncertainty raised to the ceiling.
func (g *Guard) EnsureCoverage(ctx context.Context, draft string, evidence []domain.Evidence, escalate EscalateFunc, signal domain.RouteSignal) GuardResult {
	result := GuardResult{FinalAnswer: draft, Tier: domain.TierDefault}
	result.Covered = coveredCount(draft, evidence)

	if len(evidence) == 0 || escalate == nil {
		return result
	}
	if result.Covered >= g.cfg.MinEntitiesCovered && !infoNonePattern.MatchString(draft) {
		return result
	}
	result.Escalated = true
	result.Tier = escalate(ctx, signal.WithUncertainty(1.0))
	return result
}

// LooksWeak flags drafts too short to be useful or matching the
// "no information" pattern. Used to suppress persisting low-value turns.
func (g *Guard) LooksWeak(draft string) bool {
	trimmed := strings.TrimSpace(draft)
	if utf8.RuneCountInString(trimmed) < g.cfg.MinDraftLength {
		return true
	}
	return infoNonePattern.MatchString(trimmed)
}

// ShouldOverdrive reports whether the retrieval pass should rerun in a
// deeper mode: coverage ratio or mean authority under their floors.
func (g *Guard) ShouldOverdrive(coverageRatio, meanAuthority float64) bool {
	return coverageRatio < g.cfg.OverdriveCoverage || meanAuthority < g.cfg.OverdriveAuthority
}

// CoverageRatio is the fraction of evidence items covered by the draft.
func CoverageRatio(draft string, evidence []domain.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	return float64(coveredCount(draft, evidence)) / float64(len(evidence))
}

func coveredCount(draft string, evidence []domain.Evidence) int {
	lowerDraft := strings.ToLower(draft)
	covered := 0
	for _, ev := range evidence {
		title := ev.Title
		if title == "" {
			title = ev.Text
		}
		for _, token := range tokenizeLower(title) {
			if utf8.RuneCountInString(token) < 2 {
				continue
			}
			if strings.Contains(lowerDraft, token) {
				covered++
				break
			}
		}
	}
	return covered
}
