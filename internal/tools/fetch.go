package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	fetchMaxChars    = 10000
	fetchTimeout     = 30 * time.Second
	fetchMaxRedirect = 3
	fetchUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// FetchURLTool GETs a URL and returns its readable text, capped at
// fetchMaxChars.
type FetchURLTool struct {
	client *http.Client
}

func NewFetchURLTool() *FetchURLTool {
	return &FetchURLTool{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= fetchMaxRedirect {
					return fmt.Errorf("stopped after %d redirects", fetchMaxRedirect)
				}
				return nil
			},
		},
	}
}

func (t *FetchURLTool) Name() string { return "fetch_url_content" }
func (t *FetchURLTool) Description() string {
	return "Fetch a web page and return its readable text content. Use for reading articles, docs, and APIs."
}

func (t *FetchURLTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "HTTP or HTTPS URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return ErrorResult("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrorResult("only absolute http/https URLs are supported")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ErrorResult(fmt.Sprintf("fetch failed: HTTP %d for %s", resp.StatusCode, rawURL))
	}

	// Read extra headroom so tag stripping still leaves enough text.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(fetchMaxChars*4)))
	if err != nil {
		return ErrorResult(fmt.Sprintf("read body: %v", err))
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = extractReadableText(text)
	}
	if len(text) > fetchMaxChars {
		text = text[:fetchMaxChars] + "\n[content truncated]"
	}

	return SilentResult(fmt.Sprintf("Content from %s:\n\n%s", resp.Request.URL, text))
}

var (
	reScript  = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle   = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reComment = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reBlock   = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|section|article)[^>]*>`)
	reTag     = regexp.MustCompile(`<[^>]+>`)
	reBlank   = regexp.MustCompile(`\n{3,}`)
)

// extractReadableText strips markup down to line-oriented plain text.
func extractReadableText(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reBlock.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, " ")

	s = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
	).Replace(s)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return reBlank.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}
