package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generator exposes the opaque generate(prompt) -> text capability.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generateText(ctx, prompt)
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generateJSON(ctx, prompt)
}

// Embedder builds dense vectors for queries and evidence text.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// TermSelector asks the generation model for search vocabulary in strict
// JSON. Malformed output is an error; the planner treats any error as a
// signal to fall back to rule-based extraction.
type TermSelector struct {
	client *Client
}

func NewTermSelector(client *Client) *TermSelector {
	return &TermSelector{client: client}
}

func (s *TermSelector) Select(ctx context.Context, conversation, domainProfile string, maxMust int) (*domain.SelectedTerms, error) {
	raw, err := s.client.generateJSON(ctx, buildTermSelectionPrompt(conversation, domainProfile, maxMust))
	if err != nil {
		return nil, err
	}

	var terms domain.SelectedTerms
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &terms); err != nil {
		return nil, fmt.Errorf("parse term selection json: %w", err)
	}
	if len(terms.Must) > maxMust && maxMust > 0 {
		terms.Must = terms.Must[:maxMust]
	}
	return &terms, nil
}

// CrossEncoder scores query/passage pairs with one JSON generation call
// over the whole pool. It is the expensive rerank backend behind the pool
// gate and the cooldown lock.
type CrossEncoder struct {
	client *Client
}

func NewCrossEncoder(client *Client) *CrossEncoder {
	return &CrossEncoder{client: client}
}

func (c *CrossEncoder) Rerank(ctx context.Context, query string, pool []domain.Evidence, limit int) ([]domain.Evidence, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	raw, err := c.client.generateJSON(ctx, buildRerankPrompt(query, pool))
	if err != nil {
		return nil, err
	}

	var response struct {
		Scores []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &response); err != nil {
		return nil, fmt.Errorf("parse rerank json: %w", err)
	}

	scored := make([]domain.Evidence, 0, len(pool))
	seen := make(map[int]struct{}, len(response.Scores))
	for _, entry := range response.Scores {
		if entry.Index < 0 || entry.Index >= len(pool) {
			continue
		}
		if _, dup := seen[entry.Index]; dup {
			continue
		}
		seen[entry.Index] = struct{}{}
		ev := pool[entry.Index]
		ev.Score = entry.Score
		scored = append(scored, ev)
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("rerank response referenced no pool item")
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit && limit > 0 {
		scored = scored[:limit]
	}
	return scored, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
