package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/egress"
)

var mediaTypes = []string{"image", "video", "gif", "document", "audio"}

// SendMediaTool pushes a media file to the user through the channel
// bridge. The result is flagged OutputSent so the final reply does not
// describe the media again.
type SendMediaTool struct {
	egress  *egress.Client
	selfTag string
}

func NewSendMediaTool(eg *egress.Client, selfTag string) *SendMediaTool {
	return &SendMediaTool{egress: eg, selfTag: selfTag}
}

func (t *SendMediaTool) Name() string { return "send_media" }
func (t *SendMediaTool) Description() string {
	return "Send an image, video, gif, document or audio file to the user, by local path or URL."
}

func (t *SendMediaTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url_or_path": map[string]interface{}{
				"type":        "string",
				"description": "Local file path or remote URL of the media",
			},
			"media_type": map[string]interface{}{
				"type": "string",
				"enum": mediaTypes,
			},
			"caption": map[string]interface{}{
				"type":        "string",
				"description": "Optional caption shown with the media",
			},
		},
		"required": []string{"url_or_path", "media_type"},
	}
}

func (t *SendMediaTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	urlOrPath, _ := args["url_or_path"].(string)
	mediaType, _ := args["media_type"].(string)
	caption, _ := args["caption"].(string)
	if urlOrPath == "" {
		return ErrorResult("url_or_path is required")
	}

	to := ToolSenderFromCtx(ctx)
	if to == "" {
		to = ToolSessionIDFromCtx(ctx)
	}
	msg := egress.Message{
		To:        to,
		URLOrPath: urlOrPath,
		MediaType: mediaType,
		Caption:   tagCaption(t.selfTag, caption),
		IsMedia:   true,
		Platform:  ToolPlatformFromCtx(ctx),
	}
	if err := t.egress.Send(ctx, msg); err != nil {
		return ErrorResult(fmt.Sprintf("send media: %v", err))
	}

	r := SilentResult(fmt.Sprintf("Media sent (%s).", mediaType))
	r.OutputSent = true
	return r
}

const (
	giphySearchURL = "https://api.giphy.com/v1/gifs/search"
	giphyLimit     = 20
	giphyRating    = "pg"
)

// GifTool searches Giphy and sends a random pick from the top results.
type GifTool struct {
	egress    *egress.Client
	apiKey    string
	selfTag   string
	searchURL string
	client    *http.Client
}

func NewGifTool(eg *egress.Client, apiKey, selfTag string) *GifTool {
	return &GifTool{
		egress:    eg,
		apiKey:    apiKey,
		selfTag:   selfTag,
		searchURL: giphySearchURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *GifTool) Name() string { return "search_and_send_gif" }
func (t *GifTool) Description() string {
	return "Search for a GIF by keywords and send one to the user. Picks randomly from the top matches."
}

func (t *GifTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search keywords, e.g. \"happy dance\"",
			},
			"caption": map[string]interface{}{
				"type":        "string",
				"description": "Optional caption shown with the GIF",
			},
		},
		"required": []string{"query"},
	}
}

type giphyResponse struct {
	Data []struct {
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

func (t *GifTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	caption, _ := args["caption"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}
	if t.apiKey == "" {
		return ErrorResult("GIF search is not configured (missing Giphy API key)")
	}

	params := url.Values{}
	params.Set("api_key", t.apiKey)
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(giphyLimit))
	params.Set("rating", giphyRating)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("create request: %v", err))
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("gif search failed: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrorResult(fmt.Sprintf("gif search failed: HTTP %d", resp.StatusCode))
	}

	var parsed giphyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ErrorResult(fmt.Sprintf("decode gif results: %v", err))
	}
	if len(parsed.Data) == 0 {
		return ErrorResult(fmt.Sprintf("no GIFs found for %q", query))
	}

	pick := parsed.Data[rand.Intn(len(parsed.Data))]

	to := ToolSenderFromCtx(ctx)
	if to == "" {
		to = ToolSessionIDFromCtx(ctx)
	}
	msg := egress.Message{
		To:        to,
		URLOrPath: pick.Images.Original.URL,
		MediaType: "gif",
		Caption:   tagCaption(t.selfTag, caption),
		IsMedia:   true,
		Platform:  ToolPlatformFromCtx(ctx),
	}
	if err := t.egress.Send(ctx, msg); err != nil {
		return ErrorResult(fmt.Sprintf("send gif: %v", err))
	}

	r := SilentResult(fmt.Sprintf("GIF sent: %s", pick.Title))
	r.OutputSent = true
	return r
}

// tagCaption prefixes outbound media captions with the self tag so the
// channel echo is recognized and dropped on the way back in. An empty
// caption becomes the bare tag for the same reason.
func tagCaption(selfTag, caption string) string {
	if selfTag == "" {
		return caption
	}
	if caption == "" {
		return selfTag
	}
	return selfTag + " " + caption
}
