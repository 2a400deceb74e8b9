package naver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchParsesItemsAndStripsMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Naver-Client-Id") != "id" || r.Header.Get("X-Naver-Client-Secret") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("display") != "3" {
			t.Fatalf("expected display=3, got %s", r.URL.Query().Get("display"))
		}
		_, _ = w.Write([]byte(`{"items":[
			{"title":"<b>최저임금</b> 2024년 고시","link":"https://moel.go.kr/a","description":"시간당 9,860원 &quot;확정&quot;"},
			{"title":"관련 기사","link":"https://news.naver.com/b","description":"보도 내용"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "id", "secret")
	out, err := client.Search(context.Background(), "2024 최저임금", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Title != "최저임금 2024년 고시" {
		t.Fatalf("markup not stripped: %q", out[0].Title)
	}
	if out[0].Text != `시간당 9,860원 "확정"` {
		t.Fatalf("entity not decoded: %q", out[0].Text)
	}
}

func TestSearchErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "id", "secret")
	if _, err := client.Search(context.Background(), "query", 3); err == nil {
		t.Fatal("expected provider error")
	}
}
