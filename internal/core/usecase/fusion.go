package usecase

import (
	"context"
	"math"
	"sort"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// RelatednessFunc scores how related a text is to the query in [0,1].
type RelatednessFunc func(ctx context.Context, query, text string) float64

// Fuser merges ranked evidence buckets into a single ordered list. Output
// is deterministic for identical input: accumulation follows insertion
// order and ties break on the canonical id.
type Fuser struct {
	cfg       config.FusionConfig
	authority *AuthorityScorer
	related   RelatednessFunc
}

func NewFuser(cfg config.FusionConfig, authority *AuthorityScorer, related RelatednessFunc) *Fuser {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1.0
	}
	if related == nil {
		related = func(_ context.Context, query, text string) float64 {
			return tokenOverlap(query, text)
		}
	}
	return &Fuser{cfg: cfg, authority: authority, related: related}
}

// FuseRRF is plain/weighted reciprocal rank fusion over pre-ranked
// candidate lists: contribution of a candidate at rank r from source s is
// weight(s)/(k+r), summed per canonical id. Weights default to 1.0 and k
// to 60.
func FuseRRF(channels map[string][]domain.Candidate, k float64, weights map[string]float64) map[string]float64 {
	if k <= 0 {
		k = 60
	}
	out := make(map[string]float64, len(channels)*4)
	for source, list := range channels {
		weight := 1.0
		if weights != nil {
			if w, ok := weights[source]; ok {
				weight = w
			}
		}
		for _, c := range list {
			rank := c.Rank
			if rank < 1 {
				rank = 1
			}
			out[CanonicalID(c.ID)] += weight / (k + float64(rank))
		}
	}
	return out
}

// Fuse merges per-stage buckets into one ranked list capped at limit.
// Softmax fusion only runs when the mode selects it and a calibration is
// configured; otherwise reciprocal rank fusion is used.
func (f *Fuser) Fuse(ctx context.Context, buckets [][]domain.Evidence, limit int, queryText string) []domain.Evidence {
	if limit <= 0 {
		return nil
	}
	if f.cfg.Mode == config.FusionSoftmax && f.cfg.Calibration == config.CalibrationMinMax {
		return f.fuseSoftmax(ctx, buckets, limit, queryText)
	}
	return f.fuseRRFBuckets(buckets, limit)
}

func (f *Fuser) fuseRRFBuckets(buckets [][]domain.Evidence, limit int) []domain.Evidence {
	scores := make(map[string]float64)
	repr := make(map[string]domain.Evidence)
	order := make([]string, 0, 16)

	for _, bucket := range buckets {
		for rank, ev := range bucket {
			key := evidenceKey(ev)
			if key == "" {
				continue
			}
			weight := 1.0
			if f.cfg.Mode == config.FusionWeightedRRF && f.cfg.ChannelWeight != nil {
				if w, ok := f.cfg.ChannelWeight[string(ev.Channel)]; ok {
					weight = w
				}
			}
			if _, seen := scores[key]; !seen {
				order = append(order, key)
			}
			scores[key] += weight / (float64(f.cfg.RRFK) + float64(rank) + 1)
			repr[key] = preferRicherEvidence(repr[key], ev)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if scores[order[i]] != scores[order[j]] {
			return scores[order[i]] > scores[order[j]]
		}
		return order[i] < order[j]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]domain.Evidence, 0, len(order))
	for _, key := range order {
		ev := repr[key]
		ev.Score = scores[key]
		out = append(out, ev)
	}
	return out
}

// fuseSoftmax builds a logit per candidate from relatedness, authority and
// a bucket-order-discounted inverse rank, calibrates the logits, then
// softmax-normalizes them with the configured temperature.
func (f *Fuser) fuseSoftmax(ctx context.Context, buckets [][]domain.Evidence, limit int, queryText string) []domain.Evidence {
	logits := make(map[string]float64)
	repr := make(map[string]domain.Evidence)
	order := make([]string, 0, 16)

	for bucketIdx, bucket := range buckets {
		for rank, ev := range bucket {
			key := evidenceKey(ev)
			if key == "" {
				continue
			}
			authority := 0.5
			if f.authority != nil {
				authority = f.authority.WeightFor(ev.SourceURL)
			}
			related := f.related(ctx, queryText, ev.Text)
			base := 1.0 / float64(rank+1)
			bucketWeight := 1.0 / float64(bucketIdx+1)
			logit := 0.6*related + 0.1*authority + 0.3*base*bucketWeight

			if prev, seen := logits[key]; !seen {
				order = append(order, key)
				logits[key] = logit
			} else if logit > prev {
				logits[key] = logit
			}
			repr[key] = preferRicherEvidence(repr[key], ev)
		}
	}
	if len(order) == 0 {
		return nil
	}

	scores := make([]float64, len(order))
	for i, key := range order {
		scores[i] = logits[key]
	}
	if f.cfg.Calibration == config.CalibrationMinMax {
		scores = minMaxCalibrate(scores)
	}
	probs := softmax(scores, f.cfg.Temperature)

	idx := make([]int, len(order))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return probs[idx[i]] > probs[idx[j]]
	})

	n := limit
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]domain.Evidence, 0, n)
	for _, i := range idx[:n] {
		ev := repr[order[i]]
		ev.Score = probs[i]
		out = append(out, ev)
	}
	return out
}

// minMaxCalibrate maps scores into [0,1]; when the sample has no spread
// each value is squashed through a logistic fallback instead.
func minMaxCalibrate(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max <= min {
		for i, s := range scores {
			out[i] = sigmoid(s)
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// softmax is numerically stable: inputs are shifted by the maximum and
// clipped before exponentiation.
func softmax(scores []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1.0
	}
	max := math.Inf(-1)
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		x := (s - max) / temperature
		if x < -20 {
			x = -20
		}
		out[i] = math.Exp(x)
		sum += out[i]
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(x float64) float64 {
	if x > 20 {
		x = 20
	} else if x < -20 {
		x = -20
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func evidenceKey(ev domain.Evidence) string {
	if ev.SourceURL != "" {
		return CanonicalID(ev.SourceURL)
	}
	if ev.Text != "" {
		return contentHash(ev.Text)
	}
	return ""
}

func preferRicherEvidence(current, candidate domain.Evidence) domain.Evidence {
	if current.Text == "" && current.SourceURL == "" && current.Title == "" {
		return candidate
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.SourceURL == "" && candidate.SourceURL != "" {
		current.SourceURL = candidate.SourceURL
	}
	if current.RawScore == 0 && candidate.RawScore != 0 {
		current.RawScore = candidate.RawScore
	}
	return current
}
