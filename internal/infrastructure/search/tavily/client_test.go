package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchSendsAPIKeyAndMapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["api_key"] != "tv-key" {
			t.Fatalf("expected api key in body, got %v", body["api_key"])
		}
		if body["query"] != "최저임금" {
			t.Fatalf("unexpected query: %v", body["query"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "고시", "url": "https://moel.go.kr/a", "content": "9,860원", "score": 0.91},
				{"title": "blog", "url": "https://blog.naver.com/x", "content": "posting", "score": 0.40},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "tv-key")
	results, err := client.Search(context.Background(), "최저임금", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SourceURL != "https://moel.go.kr/a" || results[0].RawScore != 0.91 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "a", "url": "https://a.com", "content": "a"},
				{"title": "b", "url": "https://b.com", "content": "b"},
				{"title": "c", "url": "https://c.com", "content": "c"},
			},
		})
	}))
	defer server.Close()

	results, err := New(server.URL, "tv-key").Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected topK cap of 2, got %d", len(results))
	}
}

func TestSearchSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := New(server.URL, "bad").Search(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error on 401")
	}
}
