package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

const cooldownKeyPrefix = "ce:rerank:"

// RerankObserver counts gate and cooldown outcomes for the expensive
// cross-encoder stage.
type RerankObserver interface {
	ObserveCrossEncoder(outcome string)
}

// RerankPipeline is the ordered rerank chain: lightweight scoring,
// entity-constraint reweighting, the gated and cooldown-throttled
// cross-encoder pass, then diversity-aware final selection. Every stage is
// fail-soft; a degraded stage passes the previous order through.
type RerankPipeline struct {
	scorer    *EmbeddingScorer
	cross     ports.CrossEncoder
	lock      ports.CooldownLock
	authority *AuthorityScorer
	cfg       config.RerankConfig
	logger    *slog.Logger
	observer  RerankObserver
}

func NewRerankPipeline(
	scorer *EmbeddingScorer,
	cross ports.CrossEncoder,
	lock ports.CooldownLock,
	authority *AuthorityScorer,
	cfg config.RerankConfig,
	logger *slog.Logger,
	observer RerankObserver,
) *RerankPipeline {
	if cfg.GateMinPool <= 0 {
		cfg.GateMinPool = 12
	}
	if cfg.WeightRelated == 0 && cfg.WeightBaseRank == 0 && cfg.WeightAuthority == 0 {
		cfg.WeightRelated = 0.60
		cfg.WeightBaseRank = 0.30
		cfg.WeightAuthority = 0.10
	}
	return &RerankPipeline{
		scorer:    scorer,
		cross:     cross,
		lock:      lock,
		authority: authority,
		cfg:       cfg,
		logger:    logger,
		observer:  observer,
	}
}

type rankedItem struct {
	ev    domain.Evidence
	score float64
}

// Rerank orders the pool and returns at most limit items.
func (p *RerankPipeline) Rerank(ctx context.Context, query string, pool []domain.Evidence, limit int) []domain.Evidence {
	if limit <= 0 || len(pool) == 0 {
		return nil
	}

	firstPassLimit := 2 * limit
	if firstPassLimit < 20 {
		firstPassLimit = 20
	}
	items := p.firstPass(ctx, query, pool, firstPassLimit)
	items = p.rescoreConstraints(query, items)
	items = p.crossEncode(ctx, query, items)

	// The diversity cut never returns more than its configured ceiling,
	// regardless of the caller's limit.
	if p.cfg.DiversityTopK > 0 && limit > p.cfg.DiversityTopK {
		limit = p.cfg.DiversityTopK
	}
	return p.selectFinal(ctx, items, limit)
}

// firstPass is the cheap relevance-weighted scorer:
// wRel*relatedness + wBase*(1/rank) + wAuth*authority, plus the official
// bonus and the generic-snippet penalty, with an optional configured
// non-linear correction on top.
func (p *RerankPipeline) firstPass(ctx context.Context, query string, pool []domain.Evidence, limit int) []rankedItem {
	texts := make([]string, len(pool))
	for i, ev := range pool {
		texts[i] = ev.Text
	}
	var related []float64
	if p.scorer != nil {
		related = p.scorer.Relatedness(ctx, query, texts)
	} else {
		related = make([]float64, len(pool))
		for i, text := range texts {
			related[i] = tokenOverlap(query, text)
		}
	}

	// Candidates under the relatedness floor are dropped before scoring.
	// A zero floor disables the filter.
	if p.cfg.MinRelatedness > 0 {
		keptPool := make([]domain.Evidence, 0, len(pool))
		keptRel := make([]float64, 0, len(related))
		for i, ev := range pool {
			if related[i] < p.cfg.MinRelatedness {
				continue
			}
			keptPool = append(keptPool, ev)
			keptRel = append(keptRel, related[i])
		}
		pool, related = keptPool, keptRel
	}

	queryDomain := inferDomain(query)
	items := make([]rankedItem, 0, len(pool))
	for i, ev := range pool {
		score := p.cfg.WeightRelated*related[i] + p.cfg.WeightBaseRank*(1.0/float64(i+1))
		if p.authority != nil && ev.SourceURL != "" {
			score += p.cfg.WeightAuthority * p.authority.WeightFor(ev.SourceURL)
			if p.authority.IsAllowedByProfile(ev.SourceURL, defaultProfileName) {
				score += p.cfg.OfficialBonus
			}
		}
		if p.authority != nil {
			score -= p.authority.Penalty(ev.Text, queryDomain)
		}
		score = p.correct(score, related[i])
		ev.Score = score
		items = append(items, rankedItem{ev: ev, score: score})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// correct applies the configured non-linear score correction: a logistic
// term blended into the linear score. Disabled configuration returns the
// score untouched.
func (p *RerankPipeline) correct(score, related float64) float64 {
	c := p.cfg.MLCorrection
	if !c.Enabled {
		return score
	}
	logistic := sigmoid(c.Alpha + c.Beta*score + c.Gamma*(related-c.D0))
	return (1-c.Lambda)*score + c.Lambda*logistic + c.Mu
}

// rescoreConstraints boosts evidence carrying the query's entity terms.
// It reweights only; nothing is ever removed here.
func (p *RerankPipeline) rescoreConstraints(query string, items []rankedItem) []rankedItem {
	entities := properNounTerms(query)
	if len(entities) == 0 {
		return items
	}
	for i := range items {
		haystack := strings.ToLower(items[i].ev.Title + " " + items[i].ev.Text)
		hits := 0
		for _, entity := range entities {
			if strings.Contains(haystack, strings.ToLower(entity)) {
				hits++
			}
		}
		if hits > 0 {
			boost := 1 + 0.1*float64(hits)
			items[i].score *= boost
			items[i].ev.Score = items[i].score
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	return items
}

// crossEncode runs the expensive rerank only when the gate says the pool
// is worth the cost and the per-query cooldown lock admits the call.
// Every failure path returns the first-pass order.
func (p *RerankPipeline) crossEncode(ctx context.Context, query string, items []rankedItem) []rankedItem {
	if p.cross == nil || len(items) < p.cfg.GateMinPool {
		p.observe("gate_closed")
		return items
	}
	if p.lock != nil && !p.lock.TryAcquire(ctx, cooldownKey(query), p.cfg.CooldownTTL) {
		p.observe("cooldown")
		return items
	}

	pool := make([]domain.Evidence, len(items))
	for i, it := range items {
		pool[i] = it.ev
	}
	reranked, err := p.cross.Rerank(ctx, query, pool, len(pool))
	if err != nil || len(reranked) == 0 {
		if err != nil && p.logger != nil {
			p.logger.Warn("cross-encoder rerank degraded", "error", err)
		}
		p.observe("degraded")
		return items
	}
	p.observe("applied")

	out := make([]rankedItem, 0, len(reranked))
	for _, ev := range reranked {
		out = append(out, rankedItem{ev: ev, score: ev.Score})
	}
	return out
}

// selectFinal is the diversity-aware cut: greedy gain selection over
// pairwise similarity, with the similarity source built lazily because a
// pool at or under the limit skips it entirely.
func (p *RerankPipeline) selectFinal(ctx context.Context, items []rankedItem, limit int) []domain.Evidence {
	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.score
	}

	var vectors [][]float32
	vectorsBuilt := false
	sim := func(i, j int) float64 {
		if !vectorsBuilt {
			vectors = p.buildVectors(ctx, items)
			vectorsBuilt = true
		}
		if vectors != nil {
			return cosine(vectors[i], vectors[j])
		}
		return tokenJaccard(items[i].ev.Text, items[j].ev.Text)
	}

	chosen := SelectDiverse(scores, sim, limit)
	out := make([]domain.Evidence, 0, len(chosen))
	for _, idx := range chosen {
		out = append(out, items[idx].ev)
	}
	return out
}

func (p *RerankPipeline) buildVectors(ctx context.Context, items []rankedItem) [][]float32 {
	if p.scorer == nil {
		return nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.ev.Text
	}
	return p.scorer.Vectors(ctx, texts)
}

func (p *RerankPipeline) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObserveCrossEncoder(outcome)
	}
}

func cooldownKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return cooldownKeyPrefix + hex.EncodeToString(sum[:])
}
