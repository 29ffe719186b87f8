package loops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const heartbeatFile = "HEARTBEAT.md"

// heartbeatFrontMatter is the YAML block between the leading "---"
// fences of HEARTBEAT.md.
type heartbeatFrontMatter struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

type heartbeatSpec struct {
	heartbeatFrontMatter
	Tasks []string
}

// Heartbeat ticks a user-edited task list through the engine. The file
// is hot-reloaded on change; when no watcher can be established it is
// re-parsed on every tick instead.
type Heartbeat struct {
	runner  Runner
	agents  BusyChecker
	vision  VisionBusyChecker
	workDir string

	mu      sync.Mutex
	spec    heartbeatSpec
	lastRun time.Time
}

func NewHeartbeat(runner Runner, agents BusyChecker, vision VisionBusyChecker, workDir string) *Heartbeat {
	return &Heartbeat{
		runner:  runner,
		agents:  agents,
		vision:  vision,
		workDir: workDir,
	}
}

// Start runs the heartbeat until the context is cancelled.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.run(ctx)
}

func (h *Heartbeat) run(ctx context.Context) {
	h.reload()

	watching := h.watch(ctx)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !watching {
				h.reload()
			}
			h.tick(ctx)
		}
	}
}

// watch installs an fsnotify watcher on the working directory and
// reloads the task list whenever HEARTBEAT.md changes. Returns false when
// the watcher cannot be created; the caller falls back to re-parsing
// each tick.
func (h *Heartbeat) watch(ctx context.Context) bool {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("heartbeat watcher unavailable, re-parsing each tick", "error", err)
		return false
	}
	if err := watcher.Add(h.workDir); err != nil {
		watcher.Close()
		slog.Warn("heartbeat watch failed, re-parsing each tick", "dir", h.workDir, "error", err)
		return false
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == heartbeatFile && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					h.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("heartbeat watcher error", "error", err)
			}
		}
	}()
	return true
}

func (h *Heartbeat) reload() {
	spec, err := parseHeartbeatFile(filepath.Join(h.workDir, heartbeatFile))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("heartbeat file parse failed", "error", err)
		}
		return
	}
	h.mu.Lock()
	h.spec = spec
	h.mu.Unlock()
	slog.Info("heartbeat spec loaded", "enabled", spec.Enabled, "interval_seconds", spec.IntervalSeconds, "tasks", len(spec.Tasks))
}

func (h *Heartbeat) tick(ctx context.Context) {
	h.mu.Lock()
	spec := h.spec
	last := h.lastRun
	h.mu.Unlock()

	if !spec.Enabled || len(spec.Tasks) == 0 {
		return
	}
	interval := time.Duration(spec.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if time.Since(last) < interval {
		return
	}
	if h.agents != nil && h.agents.AnyWorking() {
		slog.Debug("heartbeat postponed, sub-agent working")
		return
	}
	if h.vision != nil && h.vision.Busy() {
		slog.Debug("heartbeat postponed, vision busy")
		return
	}

	h.mu.Lock()
	h.lastRun = time.Now()
	h.mu.Unlock()

	prompt := "Heartbeat check. Work through these standing tasks now, in order. " +
		"Only act where something actually needs doing:\n- " + strings.Join(spec.Tasks, "\n- ")

	if _, err := h.runner.RunToCompletion(ctx, "loop_heartbeat", "system", prompt); err != nil {
		slog.Error("heartbeat run failed", "error", err)
	}
}

// parseHeartbeatFile splits the "---" fenced front matter from the
// body and collects "-" or "*" bullet lines as tasks.
func parseHeartbeatFile(path string) (heartbeatSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return heartbeatSpec{}, err
	}

	var spec heartbeatSpec
	body := string(raw)

	if strings.HasPrefix(body, "---") {
		rest := body[3:]
		end := strings.Index(rest, "---")
		if end < 0 {
			return heartbeatSpec{}, fmt.Errorf("unterminated front matter in %s", filepath.Base(path))
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &spec.heartbeatFrontMatter); err != nil {
			return heartbeatSpec{}, fmt.Errorf("front matter: %w", err)
		}
		body = rest[end+3:]
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			if task := strings.TrimSpace(line[2:]); task != "" {
				spec.Tasks = append(spec.Tasks, task)
			}
		}
	}
	return spec, nil
}
