package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

// RetrievalObserver receives per-stage outcomes. Implementations live in
// the observability layer; a nil observer disables instrumentation.
type RetrievalObserver interface {
	ObserveStage(stage string, count int, degraded bool)
	ObserveShortCircuit()
}

// retrievalState accumulates one request's progress across stages.
type retrievalState struct {
	query   domain.Query
	hints   domain.RetrievalHints
	queries []string
	// planned marks how many entries of queries came from the planner;
	// anything appended past it is an analyze-stage expansion.
	planned int
	buckets [][]domain.Evidence
	trace   *RetrievalTrace
}

func (s *retrievalState) poolSize() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	return n
}

// stage is one fail-soft retrieval step. handle returns false to stop the
// chain early; errors never cross a stage boundary.
type stage struct {
	name   string
	handle func(ctx context.Context, st *retrievalState) bool
}

// Orchestrator runs the complexity-dependent stage chain, fuses the
// per-stage buckets and hands the result to the rerank pipeline.
type Orchestrator struct {
	planner   *Planner
	gate      ports.ComplexityGate
	web       ports.SourceAdapter
	vector    ports.SourceAdapter
	kg        ports.SourceAdapter
	generator ports.Generator
	fuser     *Fuser
	reranker  *RerankPipeline
	authority *AuthorityScorer
	limiter   ports.RateLimiter
	cfg       config.RetrievalConfig
	logger    *slog.Logger
	observer  RetrievalObserver
}

func NewOrchestrator(
	planner *Planner,
	gate ports.ComplexityGate,
	web, vector, kg ports.SourceAdapter,
	generator ports.Generator,
	fuser *Fuser,
	reranker *RerankPipeline,
	authority *AuthorityScorer,
	limiter ports.RateLimiter,
	cfg config.RetrievalConfig,
	logger *slog.Logger,
	observer RetrievalObserver,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.WebTopK <= 0 {
		cfg.WebTopK = 10
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 3
	}
	return &Orchestrator{
		planner:   planner,
		gate:      gate,
		web:       web,
		vector:    vector,
		kg:        kg,
		generator: generator,
		fuser:     fuser,
		reranker:  reranker,
		authority: authority,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		observer:  observer,
	}
}

// Retrieve implements ports.EvidenceRetriever.
func (o *Orchestrator) Retrieve(ctx context.Context, query domain.Query, hints domain.RetrievalHints) ([]domain.Evidence, error) {
	evidence, _, err := o.RetrieveWithTrace(ctx, query, hints)
	return evidence, err
}

// RetrieveWithTrace additionally returns the per-stage diagnostic trace.
func (o *Orchestrator) RetrieveWithTrace(ctx context.Context, query domain.Query, hints domain.RetrievalHints) ([]domain.Evidence, *RetrievalTrace, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, nil, domain.ErrEmptyQuery
	}

	level := domain.ComplexitySimple
	if o.gate != nil {
		level = o.gate.Assess(query.Text)
	}
	st := &retrievalState{
		query: query,
		hints: hints,
		trace: &RetrievalTrace{Level: string(level)},
	}
	st.queries = o.planQueries(ctx, query)
	st.planned = len(st.queries)

	for _, s := range o.stagesFor(level, query.Flags) {
		if !o.runStage(ctx, s, st) {
			break
		}
	}

	topK := o.effectiveTopK(st)
	st.trace.EffectiveTopK = topK

	fused := o.fuser.Fuse(ctx, st.buckets, topK, query.Text)
	fused = o.applyProfileFilter(fused, query, hints)
	if len(fused) == 0 {
		return nil, st.trace, domain.ErrNoEvidence
	}

	if o.reranker != nil {
		fused = o.reranker.Rerank(ctx, query.Text, fused, topK)
	}
	if len(fused) == 0 {
		return nil, st.trace, domain.ErrNoEvidence
	}
	return fused, st.trace, nil
}

func (o *Orchestrator) planQueries(ctx context.Context, query domain.Query) []string {
	if o.planner != nil {
		planned, _ := o.planner.PlanWithTrace(ctx, query.Text, query.Hints["prior_draft"], 0)
		if len(planned) > 0 {
			return planned
		}
	}
	return []string{strings.TrimSpace(query.Text)}
}

// stagesFor builds the stage slice per complexity level. The order is an
// explicit literal so it stays inspectable in one place.
func (o *Orchestrator) stagesFor(level domain.ComplexityLevel, flags domain.QueryFlags) []stage {
	webStage := stage{name: "web", handle: o.handleWeb}
	vectorStage := stage{name: "vector", handle: o.handleVector}
	vectorIfShort := stage{name: "vector", handle: func(ctx context.Context, st *retrievalState) bool {
		if st.poolSize() >= o.cfg.TopK {
			st.trace.Stages = append(st.trace.Stages, StageOutcome{Stage: "vector", Skipped: true})
			return true
		}
		return o.handleVector(ctx, st)
	}}
	supplementary := stage{name: "kg", handle: func(ctx context.Context, st *retrievalState) bool {
		if st.poolSize() >= o.cfg.TopK {
			st.trace.Stages = append(st.trace.Stages, StageOutcome{Stage: "kg", Skipped: true})
			return true
		}
		return o.handleKG(ctx, st)
	}}
	analyze := stage{name: "analyze", handle: o.handleAnalyze}
	selfAsk := stage{name: "self_ask", handle: o.handleSelfAsk}

	var chain []stage
	switch level {
	case domain.ComplexityComplex:
		chain = []stage{selfAsk, analyze, webStage, vectorStage, supplementary}
	case domain.ComplexityAmbiguous:
		chain = []stage{analyze, webStage, vectorStage, supplementary}
	default:
		chain = []stage{webStage, vectorIfShort, supplementary}
	}

	out := make([]stage, 0, len(chain))
	for _, s := range chain {
		switch s.name {
		case "web":
			if !flags.UseWeb || o.web == nil {
				continue
			}
		case "vector":
			if !flags.UseVector || o.vector == nil {
				continue
			}
		case "kg":
			if !flags.UseKG || o.kg == nil {
				continue
			}
		case "analyze", "self_ask":
			if o.generator == nil {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func (o *Orchestrator) runStage(ctx context.Context, s stage, st *retrievalState) bool {
	if ctx.Err() != nil {
		return false
	}
	return s.handle(ctx, st)
}

func (o *Orchestrator) recordStage(st *retrievalState, name string, count int, degraded bool) {
	st.trace.Stages = append(st.trace.Stages, StageOutcome{Stage: name, Count: count, Degraded: degraded})
	if o.observer != nil {
		o.observer.ObserveStage(name, count, degraded)
	}
}

// handleWeb fans the planned queries out over the web adapter with a
// bounded worker pool. Buckets are assigned per query slot so output order
// is independent of goroutine scheduling. Results of analyze-appended
// queries keep their provenance via the ANALYZE channel tag.
func (o *Orchestrator) handleWeb(ctx context.Context, st *retrievalState) bool {
	topK := o.cfg.WebTopK
	if st.hints.WebTopK > 0 {
		topK = st.hints.WebTopK
	}
	if st.hints.Depth == domain.DepthLight && topK > o.cfg.TopK {
		topK = o.cfg.TopK
	}
	// Precision trades recall for a tighter fan-out per query.
	if st.hints.Precision || st.query.Flags.Precision {
		topK = (topK + 1) / 2
	}

	results := make([][]domain.Evidence, len(st.queries))
	degraded := false
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.MaxParallel)
	for i, q := range st.queries {
		i, q := i, q
		group.Go(func() error {
			evs, err := o.searchOne(groupCtx, o.web, "web", q, topK)
			if i >= st.planned {
				for j := range evs {
					evs[j].Channel = domain.ChannelAnalyze
				}
			}
			mu.Lock()
			if err != nil {
				degraded = true
			}
			results[i] = evs
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	merged := make([]domain.Evidence, 0, topK)
	for _, evs := range results {
		merged = append(merged, evs...)
	}
	if len(merged) > 0 {
		st.buckets = append(st.buckets, merged)
	}
	o.recordStage(st, "web", len(merged), degraded)
	return true
}

// handleVector searches the dense index with the primary query and applies
// the adaptive short-circuit: enough strong vector hits end the chain.
func (o *Orchestrator) handleVector(ctx context.Context, st *retrievalState) bool {
	evs, err := o.searchOne(ctx, o.vector, "vector", st.query.Text, o.cfg.TopK)
	if len(evs) > 0 {
		st.buckets = append(st.buckets, evs)
	}
	o.recordStage(st, "vector", len(evs), err != nil)

	if !o.cfg.ShortCircuitEnabled {
		return true
	}
	strong := 0
	for _, ev := range evs {
		if ev.RawScore >= o.cfg.ShortCircuitMinScore {
			strong++
		}
	}
	if strong >= o.cfg.ShortCircuitMinHits || len(evs) >= o.cfg.ShortCircuitMinTotal {
		st.trace.ShortCircuited = true
		if o.observer != nil {
			o.observer.ObserveShortCircuit()
		}
		return false
	}
	return true
}

func (o *Orchestrator) handleKG(ctx context.Context, st *retrievalState) bool {
	evs, err := o.searchOne(ctx, o.kg, "kg", st.query.Text, o.cfg.TopK)
	if len(evs) > 0 {
		st.buckets = append(st.buckets, evs)
	}
	o.recordStage(st, "kg", len(evs), err != nil)
	return true
}

// handleAnalyze asks the generator for one reformulated query and appends
// it to the fan-out set. Degradation leaves the query set untouched.
func (o *Orchestrator) handleAnalyze(ctx context.Context, st *retrievalState) bool {
	prompt := "Rewrite the following search query as one alternative phrasing that surfaces complementary results. " +
		"Reply with the rewritten query only.\n\n" + st.query.Text
	rewritten, err := o.generateLine(ctx, prompt)
	if err != nil || rewritten == "" {
		o.recordStage(st, "analyze", 0, err != nil)
		return true
	}
	for _, q := range st.queries {
		if strings.EqualFold(q, rewritten) {
			o.recordStage(st, "analyze", 0, false)
			return true
		}
	}
	st.queries = append(st.queries, rewritten)
	o.recordStage(st, "analyze", 1, false)
	return true
}

// handleSelfAsk decomposes a complex question into at most two
// sub-questions and searches the web adapter with each, tagging the
// results as SELF_ASK evidence.
func (o *Orchestrator) handleSelfAsk(ctx context.Context, st *retrievalState) bool {
	if o.web == nil || !st.query.Flags.UseWeb {
		o.recordStage(st, "self_ask", 0, false)
		return true
	}
	prompt := "Break the question below into at most two independent sub-questions, one per line. " +
		"Reply with the sub-questions only.\n\n" + st.query.Text
	raw, err := o.generator.GenerateFromPrompt(ctx, prompt)
	if err != nil {
		o.recordStage(st, "self_ask", 0, true)
		return true
	}

	bucket := make([]domain.Evidence, 0, o.cfg.TopK)
	degraded := false
	for _, line := range strings.Split(raw, "\n") {
		sub := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if sub == "" || strings.EqualFold(sub, st.query.Text) {
			continue
		}
		evs, searchErr := o.searchOne(ctx, o.web, "web", sub, o.cfg.TopK)
		if searchErr != nil {
			degraded = true
		}
		for _, ev := range evs {
			ev.Channel = domain.ChannelSelfAsk
			bucket = append(bucket, ev)
		}
		if len(bucket) >= 2*o.cfg.TopK {
			break
		}
	}
	if len(bucket) > 0 {
		st.buckets = append(st.buckets, bucket)
	}
	o.recordStage(st, "self_ask", len(bucket), degraded)
	return true
}

// searchOne is the single fail-soft adapter call: rate limited, bounded by
// the stage timeout, and never propagating the provider error upward.
func (o *Orchestrator) searchOne(ctx context.Context, adapter ports.SourceAdapter, providerKey, text string, topK int) ([]domain.Evidence, error) {
	if o.limiter != nil && !o.limiter.Allow(providerKey) {
		return nil, nil
	}
	stageCtx := ctx
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}
	evs, err := adapter.Search(stageCtx, text, topK)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("retrieval stage degraded",
				"provider", providerKey, "error", err)
		}
		return nil, err
	}
	return evs, nil
}

func (o *Orchestrator) generateLine(ctx context.Context, prompt string) (string, error) {
	raw, err := o.generator.GenerateFromPrompt(ctx, prompt)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s, nil
		}
	}
	return "", nil
}

// effectiveTopK applies the risk throttle: the requested topK shrinks
// linearly in the pool risk score, bounded by the configured maximum
// shrink and never below 1.
func (o *Orchestrator) effectiveTopK(st *retrievalState) int {
	topK := o.cfg.TopK
	if !o.cfg.RiskThrottleEnabled {
		return topK
	}
	risk := o.poolRisk(st)
	st.trace.RiskScore = risk
	shrink := risk * o.cfg.RiskThrottleMaxShrink
	if shrink > o.cfg.RiskThrottleMaxShrink {
		shrink = o.cfg.RiskThrottleMaxShrink
	}
	effective := int(float64(topK) * (1 - shrink))
	if effective < 1 {
		effective = 1
	}
	return effective
}

// poolRisk is the fraction of collected evidence that looks low-trust:
// hosts scoring below the unknown-domain default, or generic boilerplate
// snippets.
func (o *Orchestrator) poolRisk(st *retrievalState) float64 {
	queryDomain := inferDomain(st.query.Text)
	total, risky := 0, 0
	for _, bucket := range st.buckets {
		for _, ev := range bucket {
			total++
			if o.authority == nil {
				continue
			}
			if o.authority.WeightFor(ev.SourceURL) < defaultAuthorityWeight {
				risky++
				continue
			}
			if o.authority.IsGenericSnippet(ev.Text, queryDomain) {
				risky++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(risky) / float64(total)
}

// applyProfileFilter enforces officialOnly / named allow-list profiles on
// URL-bearing evidence. URL-less evidence always passes.
func (o *Orchestrator) applyProfileFilter(evidence []domain.Evidence, query domain.Query, hints domain.RetrievalHints) []domain.Evidence {
	officialOnly := query.Flags.OfficialOnly || hints.OfficialOnly
	profile := hints.DomainProfile
	if profile == "" {
		profile = query.Flags.DomainProfile
	}
	if o.authority == nil || (!officialOnly && profile == "") {
		return evidence
	}
	if !officialOnly && profile != "" {
		officialOnly = true
	}
	if profile == "" {
		profile = defaultProfileName
	}
	out := evidence[:0]
	for _, ev := range evidence {
		if ev.SourceURL == "" || o.authority.IsAllowedByProfile(ev.SourceURL, profile) {
			out = append(out, ev)
		}
	}
	// re-rank positions after filtering
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
