package tools

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// browserProbes maps browser names to candidate install paths per OS.
var browserProbes = map[string][]string{
	"chrome": {
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/Applications/Google Chrome.app",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
	"chromium": {
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	},
	"firefox": {
		"/usr/bin/firefox",
		"/Applications/Firefox.app",
		`C:\Program Files\Mozilla Firefox\firefox.exe`,
	},
	"edge": {
		"/usr/bin/microsoft-edge",
		"/Applications/Microsoft Edge.app",
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
	},
	"safari": {
		"/Applications/Safari.app",
	},
}

// ScreenSizer reports the logical screen size. Implemented by the
// vision screen capability; nil when the host has no display.
type ScreenSizer interface {
	Size() (width, height int, err error)
}

// SystemInfoTool reports OS, screen size and installed browsers.
type SystemInfoTool struct {
	screen ScreenSizer
}

func NewSystemInfoTool(screen ScreenSizer) *SystemInfoTool {
	return &SystemInfoTool{screen: screen}
}

func (t *SystemInfoTool) Name() string { return "get_system_info" }
func (t *SystemInfoTool) Description() string {
	return "Get the host operating system, screen size, and which browsers are installed."
}

func (t *SystemInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *SystemInfoTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if t.screen != nil {
		if w, h, err := t.screen.Size(); err == nil {
			fmt.Fprintf(&sb, "Screen: %dx%d\n", w, h)
		} else {
			sb.WriteString("Screen: unavailable\n")
		}
	} else {
		sb.WriteString("Screen: unavailable\n")
	}

	var found []string
	for name, paths := range browserProbes {
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				found = append(found, name)
				break
			}
		}
	}
	if len(found) == 0 {
		sb.WriteString("Browsers: none detected")
	} else {
		fmt.Fprintf(&sb, "Browsers: %s", strings.Join(found, ", "))
	}

	return SilentResult(sb.String())
}
