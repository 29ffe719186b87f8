// Package egress delivers outbound messages to the external channel
// bridge. The bridge owns the actual WhatsApp (or other platform)
// connection; the gateway only ever POSTs JSON to it.
package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Message is the bridge send payload.
type Message struct {
	To        string `json:"to"`
	Text      string `json:"message,omitempty"`
	URLOrPath string `json:"url_or_path,omitempty"`
	MediaType string `json:"type,omitempty"` // "image", "video", "audio", "document"
	Caption   string `json:"caption,omitempty"`
	IsMedia   bool   `json:"is_media,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// Client posts messages and typing signals to the bridge.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send delivers a text or media message to a recipient.
func (c *Client) Send(ctx context.Context, msg Message) error {
	return c.post(ctx, "/whatsapp/send", msg)
}

// SendText is a convenience wrapper for plain text replies.
func (c *Client) SendText(ctx context.Context, to, text, platform string) error {
	return c.Send(ctx, Message{To: to, Text: text, Platform: platform})
}

// Typing toggles the typing indicator for a recipient.
func (c *Client) Typing(ctx context.Context, to, platform string, on bool) error {
	path := "/whatsapp/typing"
	if !on {
		path = "/whatsapp/stop-typing"
	}
	return c.post(ctx, path, map[string]string{"to": to, "platform": platform})
}

// KeepTyping refreshes the typing indicator every interval until the
// context is cancelled, then sends a final stop. Runs until done.
func (c *Client) KeepTyping(ctx context.Context, to, platform string, interval time.Duration) {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := c.Typing(ctx, to, platform, true); err != nil {
		slog.Debug("typing signal failed", "to", to, "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Typing(stopCtx, to, platform, false); err != nil {
				slog.Debug("stop typing failed", "to", to, "error", err)
			}
			return
		case <-ticker.C:
			if err := c.Typing(ctx, to, platform, true); err != nil {
				slog.Debug("typing signal failed", "to", to, "error", err)
			}
		}
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal bridge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("bridge %s: http %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}
