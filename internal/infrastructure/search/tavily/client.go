package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// Client is the Tavily search adapter, used as the supplementary web
// provider behind the primary one.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func New(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Channel() domain.Channel { return domain.ChannelWeb }

func (c *Client) Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error) {
	if topK <= 0 {
		topK = 10
	}
	payload, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       text,
		"max_results": topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("tavily search status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	out := make([]domain.Evidence, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, domain.Evidence{
			Title:     r.Title,
			Text:      r.Content,
			SourceURL: r.URL,
			Channel:   domain.ChannelWeb,
			RawScore:  r.Score,
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}
