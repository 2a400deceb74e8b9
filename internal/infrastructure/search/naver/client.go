package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// Client is the Naver open-API web search adapter. Provider failures are
// returned as errors; the orchestrator treats them as an empty stage.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func New(endpoint, clientID, clientSecret string) *Client {
	return &Client{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Channel() domain.Channel { return domain.ChannelWeb }

type searchResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
	} `json:"items"`
}

func (c *Client) Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error) {
	if topK <= 0 {
		topK = 10
	}
	query := url.Values{}
	query.Set("query", text)
	query.Set("display", strconv.Itoa(topK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create naver request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("naver search status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}

	out := make([]domain.Evidence, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		out = append(out, domain.Evidence{
			Title:     stripMarkup(item.Title),
			Text:      stripMarkup(item.Description),
			SourceURL: item.Link,
			Channel:   domain.ChannelWeb,
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

var markupPattern = regexp.MustCompile(`</?b>|&quot;|&amp;|&lt;|&gt;`)

// stripMarkup removes the highlight tags and entities Naver embeds in
// titles and snippets.
func stripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case "&quot;":
			return `"`
		case "&amp;":
			return "&"
		case "&lt;":
			return "<"
		case "&gt;":
			return ">"
		default:
			return ""
		}
	}))
}
