package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/usecase"
)

type fakeRetriever struct {
	gotQuery domain.Query
	gotHints domain.RetrievalHints
	evidence []domain.Evidence
	err      error
}

func (f *fakeRetriever) RetrieveWithTrace(_ context.Context, query domain.Query, hints domain.RetrievalHints) ([]domain.Evidence, *usecase.RetrievalTrace, error) {
	f.gotQuery = query
	f.gotHints = hints
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.evidence, &usecase.RetrievalTrace{Level: "SIMPLE"}, nil
}

type fakePlanner struct {
	queries []string
}

func (f *fakePlanner) PlanWithTrace(_ context.Context, utterance, _ string, _ int) ([]string, *usecase.PlanTrace) {
	return f.queries, &usecase.PlanTrace{Utterance: utterance, Final: f.queries}
}

type fakeRouteService struct {
	tier      domain.ModelTier
	reason    string
	escalated bool
}

func (f *fakeRouteService) RouteWithReason(_ context.Context, _ domain.RouteSignal) (domain.ModelTier, string) {
	return f.tier, f.reason
}

func (f *fakeRouteService) Escalate(_ context.Context, _ domain.RouteSignal) domain.ModelTier {
	f.escalated = true
	return domain.TierHigh
}

func newTestRouter(retriever *fakeRetriever) *Router {
	return NewRouter(
		retriever,
		&fakePlanner{queries: []string{"minimum wage 2024"}},
		&fakeRouteService{tier: domain.TierHigh, reason: "uncertainty"},
		usecase.NewGuard(config.GuardConfig{}),
	)
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"  "}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetrievePassesFlagsAndHints(t *testing.T) {
	retriever := &fakeRetriever{evidence: []domain.Evidence{{Title: "t", Score: 0.9}}}
	handler := newTestRouter(retriever).Handler()

	body := `{"query":"최저임금","session_id":"s-1","use_kg":false,"depth":"LIGHT","web_top_k":3,"official_only":true}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !retriever.gotQuery.Flags.UseWeb {
		t.Fatal("use_web should default to true")
	}
	if retriever.gotQuery.Flags.UseKG {
		t.Fatal("use_kg=false should be honored")
	}
	if retriever.gotHints.Depth != domain.DepthLight {
		t.Fatalf("expected LIGHT depth, got %q", retriever.gotHints.Depth)
	}
	if !retriever.gotHints.OfficialOnly {
		t.Fatal("official_only should propagate to hints")
	}

	var resp retrieveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Evidence) != 1 || resp.Trace == nil {
		t.Fatalf("expected evidence and trace, got %+v", resp)
	}
}

func TestRetrieveMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{domain.ErrNoEvidence, http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "search", context.DeadlineExceeded), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		handler := newTestRouter(&fakeRetriever{err: tc.err}).Handler()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"q"}`)))
		if rec.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestPlanReturnsQueriesAndTrace(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/plan", strings.NewReader(`{"utterance":"2024년 최저임금 알려줘"}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp planResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Queries) != 1 || resp.Trace == nil {
		t.Fatalf("expected queries and trace, got %+v", resp)
	}
}

func TestRouteReturnsTierAndReason(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	rec := httptest.NewRecorder()
	body := `{"session_id":"s-1","uncertainty":0.9,"preference":"QUALITY"}`
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/route", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp routeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tier != domain.TierHigh || resp.Reason != "uncertainty" {
		t.Fatalf("unexpected decision: %+v", resp)
	}
}

func TestGuardEscalatesUncoveredDraft(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	body := `{"draft":"정보 없음","evidence":[{"title":"최저임금 고시","text":"9860원"}],"signal":{"session_id":"s-1"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/guard", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp guardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Escalated || resp.Tier != domain.TierHigh {
		t.Fatalf("expected escalation to HIGH, got %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{}).Handler()

	for _, path := range []string{"/v1/retrieve", "/v1/plan", "/v1/route", "/v1/guard"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}
