package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
)

type fakeAdapter struct {
	channel  domain.Channel
	results  []domain.Evidence
	err      error
	calls    int
	lastTopK int
}

func (f *fakeAdapter) Channel() domain.Channel { return f.channel }

func (f *fakeAdapter) Search(_ context.Context, _ string, topK int) ([]domain.Evidence, error) {
	f.calls++
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// perQueryAdapter answers each query text with its own evidence set.
type perQueryAdapter struct {
	channel domain.Channel
	results map[string][]domain.Evidence
}

func (f *perQueryAdapter) Channel() domain.Channel { return f.channel }

func (f *perQueryAdapter) Search(_ context.Context, text string, _ int) ([]domain.Evidence, error) {
	return f.results[text], nil
}

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) GenerateFromPrompt(context.Context, string) (string, error) {
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateJSONFromPrompt(context.Context, string) (string, error) {
	return f.reply, f.err
}

type fixedGate struct{ level domain.ComplexityLevel }

func (g fixedGate) Assess(string) domain.ComplexityLevel { return g.level }

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK: 5, WebTopK: 10, MaxParallel: 3,
		ShortCircuitEnabled:   true,
		ShortCircuitMinScore:  0.60,
		ShortCircuitMinHits:   2,
		ShortCircuitMinTotal:  3,
		RiskThrottleEnabled:   true,
		RiskThrottleMaxShrink: 0.40,
	}
}

func newTestOrchestrator(web, vector, kg ports.SourceAdapter, cfg config.RetrievalConfig) *Orchestrator {
	fuser := NewFuser(config.FusionConfig{Mode: config.FusionRRF, RRFK: 60}, nil, nil)
	return NewOrchestrator(nil, fixedGate{domain.ComplexitySimple}, web, vector, kg, nil,
		fuser, nil, NewAuthorityScorer(nil), nil, cfg, nil, nil)
}

func allChannelsQuery(text string) domain.Query {
	return domain.NewQuery(text, "session-1", domain.QueryFlags{UseWeb: true, UseVector: true, UseKG: true}, nil)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	o := newTestOrchestrator(&fakeAdapter{channel: domain.ChannelWeb}, nil, nil, testRetrievalConfig())
	_, err := o.Retrieve(context.Background(), allChannelsQuery("   "), domain.RetrievalHints{})
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRetrieveFailSoftUnion(t *testing.T) {
	web := &fakeAdapter{channel: domain.ChannelWeb, results: []domain.Evidence{
		{Title: "최저임금 2024년 9,860원", Text: "최저임금 고시", SourceURL: "https://moel.go.kr/a", Channel: domain.ChannelWeb},
	}}
	vector := &fakeAdapter{channel: domain.ChannelVector, err: errors.New("index down")}
	kg := &fakeAdapter{channel: domain.ChannelKG}

	o := newTestOrchestrator(web, vector, kg, testRetrievalConfig())
	out, err := o.Retrieve(context.Background(), allChannelsQuery("2024 최저임금"), domain.RetrievalHints{})
	if err != nil {
		t.Fatalf("one failing adapter must not fail retrieval: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected surviving web evidence, got %d items", len(out))
	}
}

func TestRetrieveAllEmptyReturnsNoEvidence(t *testing.T) {
	o := newTestOrchestrator(
		&fakeAdapter{channel: domain.ChannelWeb},
		&fakeAdapter{channel: domain.ChannelVector},
		&fakeAdapter{channel: domain.ChannelKG},
		testRetrievalConfig(),
	)
	_, err := o.Retrieve(context.Background(), allChannelsQuery("아무도 모르는 질문"), domain.RetrievalHints{})
	if !errors.Is(err, domain.ErrNoEvidence) {
		t.Fatalf("expected ErrNoEvidence, got %v", err)
	}
}

func TestRetrieveVectorShortCircuitSkipsSupplementary(t *testing.T) {
	vector := &fakeAdapter{channel: domain.ChannelVector, results: []domain.Evidence{
		{Text: "hit one", SourceURL: "https://a.go.kr/1", Channel: domain.ChannelVector, RawScore: 0.9},
		{Text: "hit two", SourceURL: "https://a.go.kr/2", Channel: domain.ChannelVector, RawScore: 0.8},
	}}
	kg := &fakeAdapter{channel: domain.ChannelKG}

	o := newTestOrchestrator(&fakeAdapter{channel: domain.ChannelWeb}, vector, kg, testRetrievalConfig())
	_, trace, err := o.RetrieveWithTrace(context.Background(), allChannelsQuery("연금 수령 나이"), domain.RetrievalHints{})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if !trace.ShortCircuited {
		t.Fatal("expected short-circuit with two strong vector hits")
	}
	if kg.calls != 0 {
		t.Fatalf("supplementary stage must be skipped, got %d calls", kg.calls)
	}
}

func TestRetrieveShortCircuitDisableable(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.ShortCircuitEnabled = false
	vector := &fakeAdapter{channel: domain.ChannelVector, results: []domain.Evidence{
		{Text: "hit one", SourceURL: "https://a.go.kr/1", Channel: domain.ChannelVector, RawScore: 0.9},
		{Text: "hit two", SourceURL: "https://a.go.kr/2", Channel: domain.ChannelVector, RawScore: 0.8},
	}}
	kg := &fakeAdapter{channel: domain.ChannelKG}

	o := newTestOrchestrator(&fakeAdapter{channel: domain.ChannelWeb}, vector, kg, cfg)
	_, _, _ = o.RetrieveWithTrace(context.Background(), allChannelsQuery("연금 수령 나이"), domain.RetrievalHints{})
	if kg.calls != 1 {
		t.Fatalf("expected supplementary stage to run when short-circuit disabled, got %d calls", kg.calls)
	}
}

func TestRetrieveRiskThrottleShrinksTopK(t *testing.T) {
	blogs := make([]domain.Evidence, 0, 6)
	for _, u := range []string{
		"https://blog.naver.com/p/1", "https://blog.naver.com/p/2", "https://blog.naver.com/p/3",
		"https://blog.naver.com/p/4", "https://blog.naver.com/p/5", "https://blog.naver.com/p/6",
	} {
		blogs = append(blogs, domain.Evidence{Text: "blog post text about the topic", SourceURL: u, Channel: domain.ChannelWeb})
	}
	web := &fakeAdapter{channel: domain.ChannelWeb, results: blogs}

	o := newTestOrchestrator(web, nil, nil, testRetrievalConfig())
	out, trace, err := o.RetrieveWithTrace(context.Background(), allChannelsQuery("어느 블로그"), domain.RetrievalHints{})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if trace.EffectiveTopK >= 5 {
		t.Fatalf("expected risk throttle to shrink topK below 5, got %d", trace.EffectiveTopK)
	}
	if trace.EffectiveTopK < 1 || len(out) > trace.EffectiveTopK {
		t.Fatalf("throttle bounds violated: topK=%d len=%d", trace.EffectiveTopK, len(out))
	}
}

func TestRetrieveAnalyzeExpansionTagsChannel(t *testing.T) {
	base := "2024 최저임금"
	rewritten := "2024년 최저임금 고시 금액"
	web := &perQueryAdapter{channel: domain.ChannelWeb, results: map[string][]domain.Evidence{
		base:      {{Title: "최저임금 고시", Text: "최저임금 고시", SourceURL: "https://moel.go.kr/a", Channel: domain.ChannelWeb}},
		rewritten: {{Title: "보도자료", Text: "최저임금 보도자료", SourceURL: "https://moel.go.kr/b", Channel: domain.ChannelWeb}},
	}}
	fuser := NewFuser(config.FusionConfig{Mode: config.FusionRRF, RRFK: 60}, nil, nil)
	o := NewOrchestrator(nil, fixedGate{domain.ComplexityAmbiguous}, web, nil, nil,
		&fakeGenerator{reply: rewritten}, fuser, nil, NewAuthorityScorer(nil), nil,
		testRetrievalConfig(), nil, nil)

	out, err := o.Retrieve(context.Background(), allChannelsQuery(base), domain.RetrievalHints{})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	channels := make(map[string]domain.Channel, len(out))
	for _, ev := range out {
		channels[ev.SourceURL] = ev.Channel
	}
	if channels["https://moel.go.kr/a"] != domain.ChannelWeb {
		t.Fatalf("planned-query evidence must stay WEB, got %s", channels["https://moel.go.kr/a"])
	}
	if channels["https://moel.go.kr/b"] != domain.ChannelAnalyze {
		t.Fatalf("analyze-expanded evidence must be tagged ANALYZE, got %s", channels["https://moel.go.kr/b"])
	}
}

func TestRetrievePrecisionTightensWebFanOut(t *testing.T) {
	evidence := []domain.Evidence{
		{Title: "최저임금 고시", Text: "최저임금 고시", SourceURL: "https://moel.go.kr/a", Channel: domain.ChannelWeb},
	}

	web := &fakeAdapter{channel: domain.ChannelWeb, results: evidence}
	o := newTestOrchestrator(web, nil, nil, testRetrievalConfig())
	if _, err := o.Retrieve(context.Background(), allChannelsQuery("2024 최저임금"), domain.RetrievalHints{}); err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if web.lastTopK != 10 {
		t.Fatalf("expected full web fan-out of 10, got %d", web.lastTopK)
	}

	precise := &fakeAdapter{channel: domain.ChannelWeb, results: evidence}
	o = newTestOrchestrator(precise, nil, nil, testRetrievalConfig())
	if _, err := o.Retrieve(context.Background(), allChannelsQuery("2024 최저임금"), domain.RetrievalHints{Precision: true}); err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if precise.lastTopK != 5 {
		t.Fatalf("expected precision to halve the web fan-out, got %d", precise.lastTopK)
	}
}

// Scenario: two sources agree, the third errors out; the orchestrator must
// return both deduplicated items with the cross-source match unharmed.
func TestRetrieveMinimumWageScenario(t *testing.T) {
	web := &fakeAdapter{channel: domain.ChannelWeb, results: []domain.Evidence{
		{Title: "최저임금 2024년 9,860원", Text: "2024년 최저임금은 시간당 9,860원입니다", SourceURL: "https://moel.go.kr/wage", Channel: domain.ChannelWeb},
	}}
	vector := &fakeAdapter{channel: domain.ChannelVector, results: []domain.Evidence{
		{Title: "2024 최저임금 고시", Text: "고용노동부 2024년 최저임금 고시", SourceURL: "https://law.go.kr/notice", Channel: domain.ChannelVector, RawScore: 0.4},
	}}
	kg := &fakeAdapter{channel: domain.ChannelKG, err: errors.New("graph unavailable")}

	o := newTestOrchestrator(web, vector, kg, testRetrievalConfig())
	out, err := o.Retrieve(context.Background(), allChannelsQuery("2024년 한국 최저임금은?"), domain.RetrievalHints{})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 deduplicated evidence items, got %d", len(out))
	}
}
