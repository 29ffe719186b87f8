package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	searchDefaultCount = 5
	searchMaxCount     = 10
	searchTimeout      = 30 * time.Second
	braveEndpoint      = "https://api.search.brave.com/res/v1/web/search"
	ddgEndpoint        = "https://html.duckduckgo.com/html/"
)

// SearchTool searches the web. The Brave API is used when a key is
// configured; the DuckDuckGo HTML endpoint works without one and is
// the fallback.
type SearchTool struct {
	braveKey string
	braveURL string
	ddgURL   string
	client   *http.Client
}

func NewSearchTool(braveKey string) *SearchTool {
	return &SearchTool{
		braveKey: braveKey,
		braveURL: braveEndpoint,
		ddgURL:   ddgEndpoint,
		client:   &http.Client{Timeout: searchTimeout},
	}
}

func (t *SearchTool) Name() string { return "search_web" }
func (t *SearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs and snippets."
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results (1-10)",
				"minimum":     1,
				"maximum":     searchMaxCount,
			},
			"freshness": map[string]interface{}{
				"type":        "string",
				"description": "Limit by age: pd (day), pw (week), pm (month), py (year), or YYYY-MM-DDtoYYYY-MM-DD",
			},
		},
		"required": []string{"query"},
	}
}

type webHit struct {
	Title   string
	URL     string
	Snippet string
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrorResult("query is required")
	}

	count := searchDefaultCount
	if c, ok := args["count"].(float64); ok && int(c) >= 1 && int(c) <= searchMaxCount {
		count = int(c)
	}
	freshness, _ := args["freshness"].(string)

	var (
		hits   []webHit
		source string
		err    error
	)
	if t.braveKey != "" {
		hits, err = t.searchBrave(ctx, query, count, freshness)
		source = "brave"
		if err != nil {
			slog.Warn("brave search failed, falling back", "error", err)
		}
	}
	if t.braveKey == "" || err != nil {
		hits, err = t.searchDDG(ctx, query, count)
		source = "duckduckgo"
	}
	if err != nil {
		return ErrorResult(fmt.Sprintf("search failed: %v", err))
	}
	if len(hits) == 0 {
		return SilentResult(fmt.Sprintf("No results found for: %s", query))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q (via %s):\n\n", query, source)
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, h.Title, h.URL)
		if h.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", h.Snippet)
		}
		sb.WriteByte('\n')
	}
	return SilentResult(sb.String())
}

func (t *SearchTool) searchBrave(ctx context.Context, query string, count int, freshness string) ([]webHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))
	if f := normalizeFreshness(freshness); f != "" {
		q.Set("freshness", f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.braveURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.braveKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave API returned %d", resp.StatusCode)
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse brave response: %w", err)
	}

	hits := make([]webHit, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		hits = append(hits, webHit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return hits, nil
}

func (t *SearchTool) searchDDG(ctx context.Context, query string, count int) ([]webHit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.ddgURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	return parseDDGResults(string(body), count), nil
}

var (
	reDDGLink    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	reDDGSnippet = regexp.MustCompile(`<a[^>]*class="result__snippet[^"]*"[^>]*>([\s\S]*?)</a>`)
)

func parseDDGResults(html string, count int) []webHit {
	links := reDDGLink.FindAllStringSubmatch(html, count)
	snippets := reDDGSnippet.FindAllStringSubmatch(html, count)

	var hits []webHit
	for i, m := range links {
		hit := webHit{
			Title: strings.TrimSpace(reTag.ReplaceAllString(m[2], "")),
			URL:   unwrapDDGRedirect(m[1]),
		}
		if i < len(snippets) {
			hit.Snippet = strings.TrimSpace(reTag.ReplaceAllString(snippets[i][1], ""))
		}
		hits = append(hits, hit)
	}
	return hits
}

// unwrapDDGRedirect extracts the target URL from DuckDuckGo's
// //duckduckgo.com/l/?uddg=... redirect wrapper.
func unwrapDDGRedirect(raw string) string {
	if !strings.Contains(raw, "uddg=") {
		return raw
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	idx := strings.Index(unescaped, "uddg=")
	target := unescaped[idx+len("uddg="):]
	if amp := strings.Index(target, "&"); amp != -1 {
		target = target[:amp]
	}
	return target
}

var (
	freshnessShortcuts = map[string]bool{"pd": true, "pw": true, "pm": true, "py": true}
	reFreshnessRange   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})to(\d{4}-\d{2}-\d{2})$`)
)

// normalizeFreshness validates a freshness filter and returns "" for
// anything the Brave API would reject.
func normalizeFreshness(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || freshnessShortcuts[v] {
		return v
	}
	if m := reFreshnessRange.FindStringSubmatch(v); len(m) == 3 {
		start, errS := time.Parse("2006-01-02", m[1])
		end, errE := time.Parse("2006-01-02", m[2])
		if errS == nil && errE == nil && !start.After(end) {
			return v
		}
	}
	return ""
}
