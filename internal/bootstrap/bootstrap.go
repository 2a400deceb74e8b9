package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/core/ports"
	"github.com/minhokang/evidence-engine/internal/core/usecase"
	"github.com/minhokang/evidence-engine/internal/infrastructure/graph/neo4j"
	"github.com/minhokang/evidence-engine/internal/infrastructure/llm/ollama"
	memorylock "github.com/minhokang/evidence-engine/internal/infrastructure/lock/memory"
	redislock "github.com/minhokang/evidence-engine/internal/infrastructure/lock/redis"
	"github.com/minhokang/evidence-engine/internal/infrastructure/queue/nats"
	"github.com/minhokang/evidence-engine/internal/infrastructure/ratelimit"
	"github.com/minhokang/evidence-engine/internal/infrastructure/repository/postgres"
	"github.com/minhokang/evidence-engine/internal/infrastructure/resilience"
	"github.com/minhokang/evidence-engine/internal/infrastructure/search"
	"github.com/minhokang/evidence-engine/internal/infrastructure/search/naver"
	"github.com/minhokang/evidence-engine/internal/infrastructure/search/tavily"
	"github.com/minhokang/evidence-engine/internal/infrastructure/vector/qdrant"
	"github.com/minhokang/evidence-engine/internal/observability/logging"
	"github.com/minhokang/evidence-engine/internal/observability/metrics"
)

// App holds the fully wired pipeline. Optional backends (NATS, Neo4j,
// Redis) degrade to no-op or in-memory stand-ins instead of failing the
// boot: the pipeline itself is fail-soft, so boot follows suit.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Retriever *usecase.Orchestrator
	Planner   *usecase.Planner
	Policy    usecase.RoutePolicy
	Router    *usecase.Router
	Guard     *usecase.Guard

	closeFn func()
}

// decisionSink tees routing decisions into prometheus before handing them
// to the real publisher.
type decisionSink struct {
	inner   ports.DecisionPublisher
	metrics *metrics.HTTPServerMetrics
}

func (s *decisionSink) PublishRouteDecision(ctx context.Context, decision domain.RouteDecision) error {
	s.metrics.RecordRouteDecision(string(decision.Tier), decision.Reason)
	// The coverage guard escalates with uncertainty forced to the ceiling.
	if decision.Escalated && decision.Uncertainty >= 1.0 {
		s.metrics.RecordGuardEscalation()
	}
	if s.inner == nil {
		return nil
	}
	return s.inner.PublishRouteDecision(ctx, decision)
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("evidence-engine", cfg.LogLevel)
	httpMetrics := metrics.NewHTTPServerMetrics("evidence-engine")
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	closers := make([]func(), 0, 4)

	// Tier state. The router degrades to stateless thresholds when
	// postgres is unreachable at boot.
	var tierStore ports.TierStateStore
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err == nil {
		store := postgres.NewTierStateStore(db)
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			logger.Warn("tier state schema unavailable", "error", schemaErr)
			_ = db.Close()
		} else {
			tierStore = store
			closers = append(closers, func() { _ = db.Close() })
		}
	} else {
		logger.Warn("postgres unavailable, hysteresis disabled", "error", err)
	}

	sink := &decisionSink{metrics: httpMetrics}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		logger.Warn("nats unavailable, route decisions not published", "error", err)
	} else {
		sink.inner = queue
		closers = append(closers, queue.Close)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	selector := ollama.NewTermSelector(ollamaClient)

	var cross ports.CrossEncoder
	if cfg.Rerank.Backend == config.RerankEmbedding {
		cross = ollama.NewCrossEncoder(ollamaClient)
	}

	var web ports.SourceAdapter = naver.New(cfg.NaverURL, cfg.NaverClientID, cfg.NaverClientSecret)
	if cfg.TavilyAPIKey != "" {
		web = search.NewFallback(web, tavily.New(cfg.TavilyURL, cfg.TavilyAPIKey), logger)
	}

	vectorAdapter := qdrant.NewAdapter(qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), embedder)

	var kg ports.SourceAdapter
	graph, err := neo4j.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		logger.Warn("neo4j unavailable, knowledge graph channel disabled", "error", err)
	} else {
		kg = graph
		closers = append(closers, func() { _ = graph.Close(context.Background()) })
	}

	var lock ports.CooldownLock
	if cfg.RedisAddr != "" {
		lock = redislock.New(cfg.RedisAddr, cfg.RedisPassword, logger)
	} else {
		lock = memorylock.New()
	}

	profiles, err := config.LoadDomainProfiles(cfg.DomainProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load domain profiles: %w", err)
	}
	authority := usecase.NewAuthorityScorer(profiles)

	scorer := usecase.NewEmbeddingScorer(embedder, logger)
	related := func(ctx context.Context, query, text string) float64 {
		scores := scorer.Relatedness(ctx, query, []string{text})
		if len(scores) == 0 {
			return 0
		}
		return scores[0]
	}

	fuser := usecase.NewFuser(cfg.Fusion, authority, related)
	reranker := usecase.NewRerankPipeline(scorer, cross, lock, authority, cfg.Rerank, logger, httpMetrics)
	planner := usecase.NewPlanner(selector, cfg.Planner, logger)
	limiter := ratelimit.New(cfg.Retrieval.ProviderRateLimitPerSec, cfg.Retrieval.ProviderRateLimitBurst)

	orchestrator := usecase.NewOrchestrator(
		planner,
		usecase.NewHeuristicGate(),
		web, vectorAdapter, kg,
		generator,
		fuser,
		reranker,
		authority,
		limiter,
		cfg.Retrieval,
		logger,
		httpMetrics,
	)

	var policy usecase.RoutePolicy = usecase.NewThresholdPolicy(cfg.Router)
	if cfg.Router.HysteresisEnabled && tierStore != nil {
		policy = usecase.NewHysteresisPolicy(cfg.Router, tierStore, logger)
	}
	router := usecase.NewRouter(policy, sink, logger)
	guard := usecase.NewGuard(cfg.Guard)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   httpMetrics,
		Retriever: orchestrator,
		Planner:   planner,
		Policy:    policy,
		Router:    router,
		Guard:     guard,
		closeFn: func() {
			for _, closeOne := range closers {
				closeOne()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
