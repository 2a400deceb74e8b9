package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/usecase"
)

// RetrieveService is the slice of the orchestrator the HTTP surface needs.
type RetrieveService interface {
	RetrieveWithTrace(ctx context.Context, query domain.Query, hints domain.RetrievalHints) ([]domain.Evidence, *usecase.RetrievalTrace, error)
}

// PlanService exposes query planning for the plan probe endpoint.
type PlanService interface {
	PlanWithTrace(ctx context.Context, utterance, priorDraft string, maxQueries int) ([]string, *usecase.PlanTrace)
}

// RouteService decides a tier, publishing the decision as a side effect.
type RouteService interface {
	RouteWithReason(ctx context.Context, signal domain.RouteSignal) (domain.ModelTier, string)
	Escalate(ctx context.Context, signal domain.RouteSignal) domain.ModelTier
}

type Router struct {
	retriever RetrieveService
	planner   PlanService
	router    RouteService
	guard     *usecase.Guard
}

func NewRouter(retriever RetrieveService, planner PlanService, router RouteService, guard *usecase.Guard) *Router {
	return &Router{
		retriever: retriever,
		planner:   planner,
		router:    router,
		guard:     guard,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/plan", rt.plan)
	mux.HandleFunc("/v1/route", rt.route)
	mux.HandleFunc("/v1/guard", rt.coverage)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query         string            `json:"query"`
	SessionID     string            `json:"session_id"`
	UseWeb        *bool             `json:"use_web"`
	UseVector     *bool             `json:"use_vector"`
	UseKG         *bool             `json:"use_kg"`
	Precision     bool              `json:"precision"`
	Depth         string            `json:"depth"`
	WebTopK       int               `json:"web_top_k"`
	OfficialOnly  bool              `json:"official_only"`
	DomainProfile string            `json:"domain_profile"`
	Hints         map[string]string `json:"hints"`
}

type retrieveResponse struct {
	Evidence []domain.Evidence       `json:"evidence"`
	Trace    *usecase.RetrievalTrace `json:"trace,omitempty"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	flags := domain.QueryFlags{
		UseWeb:        boolOrDefault(req.UseWeb, true),
		UseVector:     boolOrDefault(req.UseVector, true),
		UseKG:         boolOrDefault(req.UseKG, true),
		Precision:     req.Precision,
		OfficialOnly:  req.OfficialOnly,
		DomainProfile: req.DomainProfile,
	}
	query := domain.NewQuery(req.Query, req.SessionID, flags, req.Hints)
	hints := domain.RetrievalHints{
		Precision:     req.Precision,
		Depth:         parseDepth(req.Depth),
		WebTopK:       req.WebTopK,
		OfficialOnly:  req.OfficialOnly,
		DomainProfile: req.DomainProfile,
	}

	evidence, trace, err := rt.retriever.RetrieveWithTrace(r.Context(), query, hints)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Evidence: evidence, Trace: trace})
}

type planRequest struct {
	Utterance  string `json:"utterance"`
	PriorDraft string `json:"prior_draft"`
	MaxQueries int    `json:"max_queries"`
}

type planResponse struct {
	Queries []string           `json:"queries"`
	Trace   *usecase.PlanTrace `json:"trace,omitempty"`
}

func (rt *Router) plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "utterance is required"})
		return
	}

	queries, trace := rt.planner.PlanWithTrace(r.Context(), req.Utterance, req.PriorDraft, req.MaxQueries)
	writeJSON(w, http.StatusOK, planResponse{Queries: queries, Trace: trace})
}

type routeRequest struct {
	SessionID     string  `json:"session_id"`
	Complexity    float64 `json:"complexity"`
	Uncertainty   float64 `json:"uncertainty"`
	Theta         float64 `json:"theta"`
	Intent        string  `json:"intent"`
	Verbosity     string  `json:"verbosity"`
	MaxTokens     int     `json:"max_tokens"`
	Preference    string  `json:"preference"`
	RequestedTemp float64 `json:"requested_temp"`
}

func (req routeRequest) toSignal() domain.RouteSignal {
	return domain.RouteSignal{
		SessionID:     req.SessionID,
		Complexity:    req.Complexity,
		Uncertainty:   req.Uncertainty,
		Theta:         req.Theta,
		Intent:        parseIntent(req.Intent),
		Verbosity:     parseVerbosity(req.Verbosity),
		MaxTokens:     req.MaxTokens,
		Preference:    parsePreference(req.Preference),
		RequestedTemp: req.RequestedTemp,
	}
}

type routeResponse struct {
	Tier   domain.ModelTier `json:"tier"`
	Reason string           `json:"reason"`
}

func (rt *Router) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	tier, reason := rt.router.RouteWithReason(r.Context(), req.toSignal())
	writeJSON(w, http.StatusOK, routeResponse{Tier: tier, Reason: reason})
}

type guardRequest struct {
	Draft    string            `json:"draft"`
	Evidence []domain.Evidence `json:"evidence"`
	Signal   routeRequest      `json:"signal"`
}

type guardResponse struct {
	FinalAnswer string           `json:"final_answer"`
	Escalated   bool             `json:"escalated"`
	Tier        domain.ModelTier `json:"tier"`
	Covered     int              `json:"covered"`
	Coverage    float64          `json:"coverage"`
}

func (rt *Router) coverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req guardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result := rt.guard.EnsureCoverage(r.Context(), req.Draft, req.Evidence, rt.router.Escalate, req.Signal.toSignal())
	writeJSON(w, http.StatusOK, guardResponse{
		FinalAnswer: result.FinalAnswer,
		Escalated:   result.Escalated,
		Tier:        result.Tier,
		Covered:     result.Covered,
		Coverage:    usecase.CoverageRatio(req.Draft, req.Evidence),
	})
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func parseDepth(raw string) domain.Depth {
	if strings.EqualFold(raw, string(domain.DepthLight)) {
		return domain.DepthLight
	}
	return domain.DepthDeep
}

func parseIntent(raw string) domain.Intent {
	if strings.EqualFold(raw, string(domain.IntentVertical)) {
		return domain.IntentVertical
	}
	return domain.IntentGeneral
}

func parseVerbosity(raw string) domain.Verbosity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(domain.VerbosityDeep):
		return domain.VerbosityDeep
	case string(domain.VerbosityUltra):
		return domain.VerbosityUltra
	default:
		return domain.VerbosityBrief
	}
}

func parsePreference(raw string) domain.Preference {
	if strings.EqualFold(raw, string(domain.PreferenceQuality)) {
		return domain.PreferenceQuality
	}
	return domain.PreferenceSpeed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
