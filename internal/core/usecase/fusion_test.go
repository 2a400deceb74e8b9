package usecase

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
)

func TestFuseRRFSumsAcrossSources(t *testing.T) {
	channels := map[string][]domain.Candidate{
		"web":    {{ID: "https://a.com/x", Rank: 1}, {ID: "https://b.com/y", Rank: 2}},
		"vector": {{ID: "https://a.com/x/", Rank: 1}},
	}
	scores := FuseRRF(channels, 60, nil)

	wantA := 2.0 / 61.0
	if got := scores[CanonicalID("https://a.com/x")]; math.Abs(got-wantA) > 1e-9 {
		t.Fatalf("expected merged contribution %f for a.com, got %f", wantA, got)
	}
	if got := scores[CanonicalID("https://b.com/y")]; math.Abs(got-1.0/62.0) > 1e-9 {
		t.Fatalf("expected 1/62 for b.com, got %f", got)
	}
}

func TestFuseRRFWeightsAndRankFloor(t *testing.T) {
	channels := map[string][]domain.Candidate{
		"web": {{ID: "a", Rank: 0}},
		"kg":  {{ID: "a", Rank: 1}},
	}
	scores := FuseRRF(channels, 60, map[string]float64{"kg": 0.5})
	want := 1.0/61.0 + 0.5/61.0
	if got := scores["a"]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected weighted sum %f, got %f", want, got)
	}
}

func newTestFuser(mode config.FusionMode, calibration config.CalibrationMode) *Fuser {
	cfg := config.FusionConfig{Mode: mode, Calibration: calibration, RRFK: 60, Temperature: 1.0}
	return NewFuser(cfg, NewAuthorityScorer(nil), nil)
}

func evidenceBuckets() [][]domain.Evidence {
	return [][]domain.Evidence{
		{
			{Title: "최저임금 2024년 9,860원", Text: "2024년 최저임금은 9,860원", SourceURL: "https://moel.go.kr/wage", Channel: domain.ChannelWeb},
			{Title: "blog take", Text: "some blog take on wages", SourceURL: "https://blog.naver.com/p/1", Channel: domain.ChannelWeb},
		},
		{
			{Title: "2024 최저임금 고시", Text: "고용노동부 고시", SourceURL: "https://moel.go.kr/wage/", Channel: domain.ChannelVector, RawScore: 0.8},
		},
	}
}

func TestFuseDeterministicAndBounded(t *testing.T) {
	fuser := newTestFuser(config.FusionRRF, config.CalibrationNone)

	first := fuser.Fuse(context.Background(), evidenceBuckets(), 2, "2024 최저임금")
	second := fuser.Fuse(context.Background(), evidenceBuckets(), 2, "2024 최저임금")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fusion output not deterministic: %+v vs %+v", first, second)
	}
	if len(first) > 2 {
		t.Fatalf("expected at most 2 results, got %d", len(first))
	}
}

func TestFuseDeduplicatesByCanonicalURL(t *testing.T) {
	fuser := newTestFuser(config.FusionRRF, config.CalibrationNone)
	out := fuser.Fuse(context.Background(), evidenceBuckets(), 10, "최저임금")

	seen := make(map[string]bool)
	for _, ev := range out {
		key := CanonicalID(ev.SourceURL)
		if seen[key] {
			t.Fatalf("duplicate canonical id in output: %s", key)
		}
		seen[key] = true
	}
	// moel.go.kr appears in both buckets and must rank first
	if hostOf(out[0].SourceURL) != "moel.go.kr" {
		t.Fatalf("expected cross-bucket evidence first, got %s", out[0].SourceURL)
	}
}

func TestSoftmaxFusionRequiresCalibration(t *testing.T) {
	plain := newTestFuser(config.FusionRRF, config.CalibrationNone)
	uncalibrated := newTestFuser(config.FusionSoftmax, config.CalibrationNone)

	a := plain.Fuse(context.Background(), evidenceBuckets(), 3, "최저임금")
	b := uncalibrated.Fuse(context.Background(), evidenceBuckets(), 3, "최저임금")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("softmax without calibration must fall back to RRF")
	}
}

func TestSoftmaxFusionProbabilitiesSumToOne(t *testing.T) {
	fuser := newTestFuser(config.FusionSoftmax, config.CalibrationMinMax)
	out := fuser.Fuse(context.Background(), evidenceBuckets(), 10, "2024 최저임금")
	if len(out) == 0 {
		t.Fatal("expected fused output")
	}
	sum := 0.0
	for i, ev := range out {
		sum += ev.Score
		if i > 0 && ev.Score > out[i-1].Score {
			t.Fatalf("output not sorted by probability at index %d", i)
		}
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected probabilities to sum to 1, got %f", sum)
	}
}

func TestMinMaxCalibrateNoSpreadFallsBackToSigmoid(t *testing.T) {
	out := minMaxCalibrate([]float64{2.0, 2.0})
	for _, v := range out {
		if v <= 0 || v >= 1 {
			t.Fatalf("expected sigmoid squash into (0,1), got %f", v)
		}
	}
}
