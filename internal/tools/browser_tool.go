package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/liteclaw/internal/browser"
)

const browserTextLimit = 10000

// BrowserTaskTool drives the session's headless browser to load a page
// and extract its content. Heavier than fetch_url_content: runs real
// JavaScript, so it works on dynamic pages.
type BrowserTaskTool struct {
	manager *browser.Manager
}

func NewBrowserTaskTool(m *browser.Manager) *BrowserTaskTool {
	return &BrowserTaskTool{manager: m}
}

func (t *BrowserTaskTool) Name() string { return "browser_task" }
func (t *BrowserTaskTool) Description() string {
	return "Open a URL in a real browser and return the rendered page text. Use when fetch_url_content returns empty or broken content."
}

func (t *BrowserTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The page to open",
			},
		},
		"required": []string{"url"},
	}
}

func (t *BrowserTaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return ErrorResult("url is required")
	}

	page, err := t.manager.Visit(ctx, ToolSessionIDFromCtx(ctx), rawURL)
	if err != nil {
		return ErrorResult(fmt.Sprintf("browser visit failed: %v", err))
	}

	text := page.Text
	if len(text) > browserTextLimit {
		text = text[:browserTextLimit] + "\n[content truncated]"
	}
	return SilentResult(fmt.Sprintf("Page: %s\nURL: %s\n\n%s", page.Title, page.URL, text))
}
