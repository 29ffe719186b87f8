// Package browser manages headless browser instances, one per session.
// Sub-agents get their own instance so killing a sub-agent can tear its
// browser down without touching anyone else's.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Manager launches and caches per-session browsers.
type Manager struct {
	headless bool

	mu       sync.Mutex
	browsers map[string]*instance
}

type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewManager(headless bool) *Manager {
	return &Manager{
		headless: headless,
		browsers: make(map[string]*instance),
	}
}

func (m *Manager) get(sessionID string) (*instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.browsers[sessionID]; ok {
		return inst, nil
	}

	l := launcher.New().Headless(m.headless).Leakless(true)
	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	inst := &instance{browser: b, launcher: l}
	m.browsers[sessionID] = inst
	slog.Info("browser launched", "session", sessionID, "headless", m.headless)
	return inst, nil
}

// PageResult is the outcome of visiting a page.
type PageResult struct {
	URL   string
	Title string
	Text  string
}

// Visit navigates the session's browser to a URL and extracts the page
// title and visible text.
func (m *Manager) Visit(ctx context.Context, sessionID, url string) (*PageResult, error) {
	inst, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	page, err := inst.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(60 * time.Second)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	titleObj, err := page.Eval(`() => document.title`)
	if err != nil {
		return nil, fmt.Errorf("read title: %w", err)
	}
	textObj, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	return &PageResult{
		URL:   url,
		Title: titleObj.Value.Str(),
		Text:  strings.TrimSpace(textObj.Value.Str()),
	}, nil
}

// CloseSession tears down the browser owned by a session, if any.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	inst, ok := m.browsers[sessionID]
	delete(m.browsers, sessionID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := inst.browser.Close(); err != nil {
		slog.Debug("browser close failed", "session", sessionID, "error", err)
	}
	inst.launcher.Cleanup()
	slog.Info("browser closed", "session", sessionID)
}

// CloseAll tears down every managed browser.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.browsers))
	for id := range m.browsers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseSession(id)
	}
}
