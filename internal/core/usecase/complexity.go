package usecase

import (
	"strings"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// HeuristicGate classifies an utterance into one of three complexity
// levels that pick the retrieval stage chain.
type HeuristicGate struct{}

func NewHeuristicGate() *HeuristicGate { return &HeuristicGate{} }

var comparativeCues = []string{
	"비교", "차이", "장단점", "versus", " vs ", "compare", "difference",
	"trade-off", "tradeoff",
}

var multiHopCues = []string{
	"그리고", "각각", "모두", "순서대로", "단계별", "and also", "step by step",
	"respectively", "as well as",
}

var ambiguousCues = []string{
	"어떤", "뭐가", "어느", "알려줘", "which", "what kind", "any",
}

// Assess maps an utterance to a complexity level. Multi-clause or
// comparative questions go COMPLEX, underspecified ones AMBIGUOUS,
// everything else SIMPLE. Empty input is SIMPLE so the caller still runs
// the cheapest chain.
func (g *HeuristicGate) Assess(text string) domain.ComplexityLevel {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.ComplexitySimple
	}
	lower := strings.ToLower(trimmed)

	questionMarks := strings.Count(lower, "?") + strings.Count(lower, "？")
	if questionMarks >= 2 {
		return domain.ComplexityComplex
	}
	for _, cue := range comparativeCues {
		if strings.Contains(lower, cue) {
			return domain.ComplexityComplex
		}
	}
	tokens := tokenizeLower(lower)
	if len(tokens) >= 25 {
		return domain.ComplexityComplex
	}
	hops := 0
	for _, cue := range multiHopCues {
		if strings.Contains(lower, cue) {
			hops++
		}
	}
	if hops >= 2 {
		return domain.ComplexityComplex
	}

	if len(tokens) <= 2 {
		return domain.ComplexityAmbiguous
	}
	for _, cue := range ambiguousCues {
		if strings.Contains(lower, cue) {
			return domain.ComplexityAmbiguous
		}
	}
	if hops == 1 || len(tokens) >= 15 {
		return domain.ComplexityAmbiguous
	}
	return domain.ComplexitySimple
}
