package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const ddgSampleHTML = `<html><body>
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Go <b>Documentation</b></a>
  <a class="result__snippet" href="#">The official <b>Go</b> docs.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://pkg.go.dev/">pkg.go.dev</a>
  <a class="result__snippet" href="#">Package index.</a>
</div>
</body></html>`

func TestParseDDGResults(t *testing.T) {
	hits := parseDDGResults(ddgSampleHTML, 5)
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].Title != "Go Documentation" {
		t.Errorf("title = %q", hits[0].Title)
	}
	if hits[0].URL != "https://go.dev/doc/" {
		t.Errorf("redirect not unwrapped: %q", hits[0].URL)
	}
	if hits[0].Snippet != "The official Go docs." {
		t.Errorf("snippet = %q", hits[0].Snippet)
	}
	if hits[1].URL != "https://pkg.go.dev/" {
		t.Errorf("plain url mangled: %q", hits[1].URL)
	}
}

func TestParseDDGResults_CountCap(t *testing.T) {
	if hits := parseDDGResults(ddgSampleHTML, 1); len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestParseDDGResults_NoResults(t *testing.T) {
	if hits := parseDDGResults("<html><body>nothing here</body></html>", 5); hits != nil {
		t.Errorf("hits = %+v", hits)
	}
}

func TestUnwrapDDGRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=x", "https://example.com/a"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := unwrapDDGRedirect(tt.in); got != tt.want {
			t.Errorf("unwrapDDGRedirect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeFreshness(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pd", "pd"},
		{" PW ", "pw"},
		{"pm", "pm"},
		{"py", "py"},
		{"", ""},
		{"yesterday", ""},
		{"2024-01-01to2024-06-30", "2024-01-01to2024-06-30"},
		{"2024-06-30to2024-01-01", ""}, // start after end
		{"2024-13-01to2024-13-31", ""}, // not real dates
	}
	for _, tt := range tests {
		if got := normalizeFreshness(tt.in); got != tt.want {
			t.Errorf("normalizeFreshness(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchTool_BraveFirstWhenKeyed(t *testing.T) {
	var gotQuery url.Values
	var gotToken string
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotToken = r.Header.Get("X-Subscription-Token")
		fmt.Fprint(w, `{"web":{"results":[
			{"title":"Result One","url":"https://one.example","description":"first"},
			{"title":"Result Two","url":"https://two.example","description":"second"}
		]}}`)
	}))
	defer brave.Close()

	tool := NewSearchTool("test-key")
	tool.braveURL = brave.URL

	res := tool.Execute(context.Background(), map[string]interface{}{
		"query": "golang slog", "count": float64(5), "freshness": "pw",
	})
	if res.IsError {
		t.Fatalf("Execute errored: %s", res.ForLLM)
	}
	if gotToken != "test-key" {
		t.Errorf("token = %q", gotToken)
	}
	if gotQuery.Get("q") != "golang slog" || gotQuery.Get("freshness") != "pw" {
		t.Errorf("query = %v", gotQuery)
	}
	if !strings.Contains(res.ForLLM, "1. Result One") || !strings.Contains(res.ForLLM, "https://two.example") {
		t.Errorf("output = %q", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "via brave") {
		t.Errorf("source missing: %q", res.ForLLM)
	}
}

func TestSearchTool_FallsBackToDDGOnBraveError(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer brave.Close()
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ddgSampleHTML)
	}))
	defer ddg.Close()

	tool := NewSearchTool("bad-key")
	tool.braveURL = brave.URL
	tool.ddgURL = ddg.URL

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "go docs"})
	if res.IsError {
		t.Fatalf("Execute errored: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "via duckduckgo") || !strings.Contains(res.ForLLM, "https://go.dev/doc/") {
		t.Errorf("output = %q", res.ForLLM)
	}
}

func TestSearchTool_DDGWithoutKey(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "pkg docs" {
			t.Errorf("q = %q", q)
		}
		fmt.Fprint(w, ddgSampleHTML)
	}))
	defer ddg.Close()

	tool := NewSearchTool("")
	tool.ddgURL = ddg.URL

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "pkg docs"})
	if res.IsError {
		t.Fatalf("Execute errored: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "2. pkg.go.dev") {
		t.Errorf("output = %q", res.ForLLM)
	}
}

func TestSearchTool_NoHits(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer ddg.Close()

	tool := NewSearchTool("")
	tool.ddgURL = ddg.URL

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "obscure"})
	if res.IsError || !strings.Contains(res.ForLLM, "No results") {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchTool_MissingQuery(t *testing.T) {
	res := NewSearchTool("").Execute(context.Background(), map[string]interface{}{"query": "   "})
	if !res.IsError {
		t.Errorf("blank query accepted: %+v", res)
	}
}
