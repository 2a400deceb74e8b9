package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// Planner turns a raw utterance into sanitized search queries. Term
// selection is delegated to a language model when available; every failure
// mode degrades to deterministic rule-based extraction, never to an error.
type Planner struct {
	selector ports.TermSelector
	hygiene  *Hygiene
	cfg      config.PlannerConfig
	logger   *slog.Logger
}

func NewPlanner(selector ports.TermSelector, cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	if cfg.MaxQueryTokens <= 0 {
		cfg.MaxQueryTokens = 12
	}
	if cfg.SelectorMaxMust <= 0 {
		cfg.SelectorMaxMust = 3
	}
	return &Planner{
		selector: selector,
		hygiene:  NewHygiene(cfg),
		cfg:      cfg,
		logger:   logger,
	}
}

// Plan implements ports.QueryPlanner.
func (p *Planner) Plan(ctx context.Context, utterance, priorDraft string, maxQueries int) ([]string, error) {
	queries, _ := p.PlanWithTrace(ctx, utterance, priorDraft, maxQueries)
	return queries, nil
}

// PlanWithTrace runs the full planning chain and returns the request-scoped
// trace alongside the queries. The trace is built fresh here on every call.
func (p *Planner) PlanWithTrace(ctx context.Context, utterance, priorDraft string, maxQueries int) ([]string, *PlanTrace) {
	trace := &PlanTrace{Utterance: utterance}

	cleaned := clipNoise(utterance)
	if cleaned == "" {
		trace.Domain = domain.DomainGeneral
		return nil, trace
	}
	if maxQueries <= 0 {
		maxQueries = p.cfg.MaxQueries
	}
	if maxQueries <= 0 {
		maxQueries = 4
	}

	domainLabel := inferDomain(cleaned)
	subject := inferSubject(cleaned)
	trace.Domain = domainLabel
	trace.Subject = subject

	terms := p.selectTerms(ctx, cleaned, priorDraft, domainLabel)
	var proposed []string
	if terms != nil {
		proposed = p.assembleFromTerms(terms, subject)
	}
	if len(proposed) == 0 {
		trace.Fallback = true
		proposed = p.fallbackQueries(cleaned, subject, domainLabel)
	}
	trace.Proposed = proposed

	kept := p.hygiene.SanitizeAnchored(proposed, subject, domainLabel)
	trace.Kept = kept

	if len(kept) > maxQueries {
		kept = kept[:maxQueries]
	}
	trace.Final = kept
	return kept, trace
}

func (p *Planner) selectTerms(ctx context.Context, cleaned, priorDraft, domainLabel string) *domain.SelectedTerms {
	if p.selector == nil {
		return nil
	}
	selectorCtx := ctx
	if p.cfg.SelectorTimeout > 0 {
		var cancel context.CancelFunc
		selectorCtx, cancel = context.WithTimeout(ctx, p.cfg.SelectorTimeout)
		defer cancel()
	}
	conversation := cleaned
	if strings.TrimSpace(priorDraft) != "" {
		conversation = cleaned + "\n---\n" + priorDraft
	}
	terms, err := p.selector.Select(selectorCtx, conversation, domainLabel, p.cfg.SelectorMaxMust)
	if err != nil {
		if p.logger != nil {
			p.logger.Debug("term selection degraded to rule-based extraction", "error", err)
		}
		return nil
	}
	if terms == nil || (len(terms.Must) == 0 && len(terms.Exact) == 0) {
		return nil
	}
	return terms
}

// assembleFromTerms builds the primary query from quoted exact phrases plus
// must and should terms, deduplicated and capped at MaxQueryTokens, then an
// optional subject-prefixed variant.
func (p *Planner) assembleFromTerms(terms *domain.SelectedTerms, subject string) []string {
	seen := make(map[string]struct{})
	parts := make([]string, 0, p.cfg.MaxQueryTokens)
	budget := p.cfg.MaxQueryTokens

	add := func(term string, quote bool) {
		term = strings.TrimSpace(term)
		if term == "" || budget <= 0 {
			return
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return
		}
		cost := len(strings.Fields(term))
		if cost == 0 || cost > budget {
			return
		}
		seen[key] = struct{}{}
		if quote {
			term = `"` + term + `"`
		}
		parts = append(parts, term)
		budget -= cost
	}

	for _, t := range terms.Exact {
		add(t, true)
	}
	for _, t := range terms.Must {
		add(t, false)
	}
	for _, t := range terms.Should {
		add(t, false)
	}
	if len(parts) == 0 {
		return nil
	}

	primary := strings.Join(parts, " ")
	out := []string{primary}
	if subject != "" && !strings.Contains(strings.ToLower(primary), strings.ToLower(subject)) {
		out = append(out, subject+" "+primary)
	}
	return out
}

// fallbackQueries is the deterministic rule-based path: proper-noun-ish
// tokens become must terms, and a handful of query shapes are proposed for
// hygiene to prune. Always yields at least one query for non-empty input.
func (p *Planner) fallbackQueries(cleaned, subject, domainLabel string) []string {
	musts := properNounTerms(cleaned)
	if len(musts) == 0 {
		musts = []string{cleaned}
	}

	out := make([]string, 0, 4)
	out = append(out, cleaned)
	joined := strings.Join(musts, " ")
	if joined != cleaned {
		out = append(out, joined)
	}
	if subject != "" {
		out = append(out, subject+" "+joined)
	}
	if domainLabel != domain.DomainGeneral {
		out = append(out, joined+" "+strings.ToLower(domainLabel))
	}
	return out
}

var noisePrefixes = []string{
	"안녕하세요", "질문이 있어요", "궁금한게 있는데", "혹시", "저기요",
	"please tell me", "can you tell me", "i was wondering",
}

var noiseSuffixes = []string{
	"알려주세요", "알려줘", "부탁해요", "부탁드립니다", "해주세요", "입니다", "인가요",
	"please", "thanks", "thank you",
}

// clipNoise strips politeness boilerplate from both ends and collapses
// whitespace. Punctuation-only residue clips to empty.
func clipNoise(utterance string) string {
	s := strings.Join(strings.Fields(utterance), " ")
	lower := strings.ToLower(s)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			lower = strings.ToLower(s)
			break
		}
	}
	s = strings.TrimRight(s, " ?!.？。")
	lower = strings.ToLower(s)
	for _, suffix := range noiseSuffixes {
		if strings.HasSuffix(lower, suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	s = strings.TrimRight(s, " ?!.？。")
	if len(tokenizeLower(s)) == 0 {
		return ""
	}
	return s
}

var educationCues = []string{
	"수강", "강의", "학점", "등록금", "수업", "교수", "시험", "과제", "학사",
	"course", "lecture", "syllabus", "tuition", "enrollment",
}

func inferDomain(cleaned string) string {
	lower := strings.ToLower(cleaned)
	for _, cue := range educationCues {
		if strings.Contains(lower, cue) {
			return domain.DomainEducation
		}
	}
	return domain.DomainGeneral
}

// inferSubject picks the anchor subject: the longest proper-noun-ish token
// run near the front of the utterance, or empty when nothing qualifies.
func inferSubject(cleaned string) string {
	terms := properNounTerms(cleaned)
	if len(terms) == 0 {
		return ""
	}
	best := terms[0]
	for _, t := range terms[1:] {
		if utf8.RuneCountInString(t) > utf8.RuneCountInString(best) {
			best = t
		}
	}
	return best
}

var stopTokens = map[string]struct{}{
	"그리고": {}, "하지만": {}, "그래서": {}, "대해": {}, "대한": {}, "관련": {},
	"뭐": {}, "어떤": {}, "어떻게": {}, "무엇": {},
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "what": {},
	"how": {}, "when": {}, "where": {}, "which": {}, "about": {}, "for": {},
	"and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "on": {},
}

// properNounTerms extracts candidate entity tokens: length >= 2 runes, not
// a stopword, and either capitalized Latin, numeric-bearing, or Hangul.
func properNounTerms(text string) []string {
	out := make([]string, 0, 4)
	for _, tok := range strings.Fields(text) {
		trimmed := strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(trimmed) < 2 {
			continue
		}
		if _, stop := stopTokens[strings.ToLower(trimmed)]; stop {
			continue
		}
		first, _ := utf8.DecodeRuneInString(trimmed)
		hasDigit := strings.IndexFunc(trimmed, unicode.IsDigit) >= 0
		if unicode.IsUpper(first) || hasDigit || unicode.Is(unicode.Hangul, first) {
			out = append(out, trimmed)
		}
	}
	return out
}
