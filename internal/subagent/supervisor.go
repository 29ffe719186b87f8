// Package subagent manages named background workers bound to a parent
// session. Each worker runs one conversation engine turn per delegated
// task and reports back through the channel egress.
package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/liteclaw/internal/browser"
	"github.com/nextlevelbuilder/liteclaw/internal/egress"
	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// MaxPerSession caps named sub-agents per parent session.
const MaxPerSession = 5

// reportLimit truncates completion reports pushed to the user.
const reportLimit = 1500

// Runner runs one engine turn to completion. Implemented by agent.Engine.
type Runner interface {
	RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error)
}

// VisionSubmitter accepts goals for the vision worker. Messages to the
// special sub-agent name "vision" are rerouted here.
type VisionSubmitter interface {
	Submit(sessionID, platform, goal string, correction bool) string
}

// Status is a sub-agent lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusWorking    Status = "working"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// Agent is one named background worker.
type Agent struct {
	ID            string
	Name          string
	ParentSession string
	Platform      string

	mu          sync.Mutex
	status      Status
	lastResult  string
	taskHistory []string
	inboxSeen   int // inbox messages already folded into a task
	cancel      context.CancelFunc
}

// Info is a read-only snapshot of an agent.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     Status `json:"status"`
	LastResult string `json:"last_result,omitempty"`
	Tasks      int    `json:"tasks"`
}

func (a *Agent) snapshot() Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Info{
		ID:         a.ID,
		Name:       a.Name,
		Status:     a.status,
		LastResult: truncate(a.lastResult, 200),
		Tasks:      len(a.taskHistory),
	}
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Agent) currentStatus() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Supervisor owns all sub-agents, keyed by parent session and name.
type Supervisor struct {
	runner  Runner
	egress  *egress.Client
	browser *browser.Manager
	history store.HistoryStore
	vision  VisionSubmitter // may be nil
	selfTag string

	mu       sync.Mutex
	byParent map[string]map[string]*Agent
}

func NewSupervisor(runner Runner, eg *egress.Client, bm *browser.Manager, hist store.HistoryStore, selfTag string) *Supervisor {
	return &Supervisor{
		runner:   runner,
		egress:   eg,
		browser:  bm,
		history:  hist,
		selfTag:  selfTag,
		byParent: make(map[string]map[string]*Agent),
	}
}

// SetVision installs the vision worker reroute for the "vision" name.
func (s *Supervisor) SetVision(v VisionSubmitter) { s.vision = v }

// Delegate hands a task to the named sub-agent, creating it when under
// the per-session cap. Busy agents reject new tasks.
func (s *Supervisor) Delegate(parentSession, name, task, platform string) (string, error) {
	s.mu.Lock()
	agents, ok := s.byParent[parentSession]
	if !ok {
		agents = make(map[string]*Agent)
		s.byParent[parentSession] = agents
	}
	agent, exists := agents[name]
	if !exists {
		if len(agents) >= MaxPerSession {
			s.mu.Unlock()
			return "", fmt.Errorf("sub-agent limit reached (%d) for this session; kill one first", MaxPerSession)
		}
		agent = &Agent{
			ID:            uuid.NewString()[:8],
			Name:          name,
			ParentSession: parentSession,
			Platform:      platform,
			status:        StatusIdle,
		}
		agents[name] = agent
	}
	s.mu.Unlock()

	agent.mu.Lock()
	if agent.status == StatusWorking {
		agent.mu.Unlock()
		return "", fmt.Errorf("sub-agent %q is busy with a previous task", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	agent.status = StatusWorking
	agent.cancel = cancel
	agent.taskHistory = append(agent.taskHistory, task)
	agent.Platform = platform
	agent.mu.Unlock()

	go s.runTask(ctx, agent, task)

	return fmt.Sprintf("Task handed off to sub-agent %q (id %s). It will report back when done.", name, agent.ID), nil
}

func (s *Supervisor) runTask(ctx context.Context, agent *Agent, task string) {
	slog.Info("sub-agent task started", "name", agent.Name, "id", agent.ID, "parent", agent.ParentSession)

	// Pending messages sent to this sub-agent live in its own session;
	// fold them into the task so they are not lost.
	task = s.withInbox(ctx, agent, task)

	result, err := s.runner.RunToCompletion(ctx, agent.ParentSession, agent.Platform, task)

	// A kill may have landed while the turn was running; its result is
	// discarded.
	if agent.currentStatus() == StatusTerminated {
		slog.Info("sub-agent result discarded after kill", "name", agent.Name, "id", agent.ID)
		return
	}

	var report string
	if err != nil {
		agent.mu.Lock()
		agent.status = StatusFailed
		agent.lastResult = err.Error()
		agent.mu.Unlock()
		report = fmt.Sprintf("%s Sub-agent %q failed: %v", s.selfTag, agent.Name, err)
		slog.Error("sub-agent task failed", "name", agent.Name, "id", agent.ID, "error", err)
	} else {
		agent.mu.Lock()
		agent.status = StatusCompleted
		agent.lastResult = result
		agent.mu.Unlock()
		report = fmt.Sprintf("%s Sub-agent %q finished:\n%s", s.selfTag, agent.Name, truncate(result, reportLimit))
		slog.Info("sub-agent task completed", "name", agent.Name, "id", agent.ID, "result_len", len(result))
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.egress.SendText(sendCtx, agent.ParentSession, report, agent.Platform); err != nil {
		slog.Error("sub-agent report delivery failed", "name", agent.Name, "error", err)
	}
}

// withInbox drains the sub-agent's private session of queued messages
// and prepends them to the task prompt. A high-water mark keeps already
// delivered messages from replaying on later tasks.
func (s *Supervisor) withInbox(ctx context.Context, agent *Agent, task string) string {
	msgs, err := s.history.Messages(ctx, "sub_"+agent.ID, 0)
	if err != nil || len(msgs) == 0 {
		return task
	}

	agent.mu.Lock()
	seen := agent.inboxSeen
	if seen > len(msgs) {
		seen = 0 // inbox session was reset
	}
	agent.inboxSeen = len(msgs)
	agent.mu.Unlock()

	var inbox string
	for _, m := range msgs[seen:] {
		if m.Role == "user" {
			inbox += m.Content + "\n"
		}
	}
	if inbox == "" {
		return task
	}
	return "Messages received while you were idle:\n" + inbox + "\nYour task:\n" + task
}

// List returns snapshots of all sub-agents for a session.
func (s *Supervisor) List(parentSession string) []Info {
	s.mu.Lock()
	agents := s.byParent[parentSession]
	list := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		list = append(list, a)
	}
	s.mu.Unlock()

	infos := make([]Info, 0, len(list))
	for _, a := range list {
		infos = append(infos, a.snapshot())
	}
	return infos
}

// Kill marks the named sub-agent terminated, cancels its in-flight work
// and tears down browser resources for the session (best effort).
func (s *Supervisor) Kill(parentSession, name string) error {
	s.mu.Lock()
	agent, ok := s.byParent[parentSession][name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no sub-agent named %q in this session", name)
	}

	agent.mu.Lock()
	agent.status = StatusTerminated
	if agent.cancel != nil {
		agent.cancel()
	}
	agent.mu.Unlock()

	if s.browser != nil {
		s.browser.CloseSession(parentSession)
	}
	slog.Info("sub-agent terminated", "name", name, "parent", parentSession)
	return nil
}

// KillAll terminates every sub-agent in a session.
func (s *Supervisor) KillAll(parentSession string) int {
	s.mu.Lock()
	names := make([]string, 0, len(s.byParent[parentSession]))
	for name := range s.byParent[parentSession] {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		if err := s.Kill(parentSession, name); err != nil {
			slog.Warn("kill failed", "name", name, "error", err)
		}
	}
	return len(names)
}

// Message appends a synthetic "FROM sender: text" user message to the
// sub-agent's private session. The name "vision" reroutes to the vision
// worker goal queue instead.
func (s *Supervisor) Message(ctx context.Context, parentSession, name, sender, text string) (string, error) {
	if strings.EqualFold(name, "vision") {
		if s.vision == nil {
			return "", fmt.Errorf("vision worker is not available")
		}
		return s.vision.Submit(parentSession, "", text, false), nil
	}

	s.mu.Lock()
	agent, ok := s.byParent[parentSession][name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no sub-agent named %q in this session", name)
	}

	subSession := "sub_" + agent.ID
	if err := s.history.EnsureSession(ctx, subSession, parentSession); err != nil {
		return "", err
	}
	if err := s.history.AddMessage(ctx, subSession, providers.Message{
		Role:    "user",
		Content: fmt.Sprintf("FROM %s: %s", sender, text),
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Message queued for sub-agent %q; it will see it on its next task.", name), nil
}

// AnyWorking reports whether any sub-agent in any session is mid-task.
// The heartbeat loop uses this as its busy gate.
func (s *Supervisor) AnyWorking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, agents := range s.byParent {
		for _, a := range agents {
			if a.currentStatus() == StatusWorking {
				return true
			}
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
