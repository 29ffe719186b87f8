package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/egress"
	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

type fakeRunner struct {
	mu      sync.Mutex
	tasks   []string
	result  string
	err     error
	block   chan struct{} // when set, RunToCompletion waits on it
	started chan struct{}
}

func newFakeRunner(result string) *fakeRunner {
	return &fakeRunner{result: result, started: make(chan struct{}, 16)}
}

func (r *fakeRunner) RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error) {
	r.mu.Lock()
	r.tasks = append(r.tasks, message)
	block := r.block
	r.mu.Unlock()
	r.started <- struct{}{}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.result, r.err
}

func (r *fakeRunner) lastTask() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return ""
	}
	return r.tasks[len(r.tasks)-1]
}

type fakeHistory struct {
	mu   sync.Mutex
	msgs map[string][]providers.Message
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{msgs: make(map[string][]providers.Message)}
}

func (h *fakeHistory) EnsureSession(ctx context.Context, id, parentID string) error { return nil }

func (h *fakeHistory) AddMessage(ctx context.Context, sessionID string, msg providers.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs[sessionID] = append(h.msgs[sessionID], msg)
	return nil
}

func (h *fakeHistory) Messages(ctx context.Context, sessionID string, limit int) ([]providers.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]providers.Message(nil), h.msgs[sessionID]...), nil
}

func (h *fakeHistory) ClearSession(ctx context.Context, sessionID string) error { return nil }

func (h *fakeHistory) ListSessions(ctx context.Context) ([]store.Session, error) { return nil, nil }

// bridgeRecorder captures outbound bridge sends for assertions.
type bridgeRecorder struct {
	mu   sync.Mutex
	sent []egress.Message
	got  chan struct{}
}

func newBridgeRecorder(t *testing.T) (*bridgeRecorder, *egress.Client) {
	t.Helper()
	rec := &bridgeRecorder{got: make(chan struct{}, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/whatsapp/send" {
			return
		}
		var msg egress.Message
		json.NewDecoder(r.Body).Decode(&msg)
		rec.mu.Lock()
		rec.sent = append(rec.sent, msg)
		rec.mu.Unlock()
		rec.got <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return rec, egress.NewClient(srv.URL)
}

func (r *bridgeRecorder) waitForSend(t *testing.T) egress.Message {
	t.Helper()
	select {
	case <-r.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no bridge send arrived")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func newTestSupervisor(t *testing.T, runner Runner) (*Supervisor, *bridgeRecorder, *fakeHistory) {
	t.Helper()
	rec, eg := newBridgeRecorder(t)
	hist := newFakeHistory()
	return NewSupervisor(runner, eg, nil, hist, "[LiteClaw]"), rec, hist
}

func TestDelegate_RunsTaskAndReports(t *testing.T) {
	runner := newFakeRunner("research complete")
	sup, rec, _ := newTestSupervisor(t, runner)

	msg, err := sup.Delegate("parent1", "researcher", "find gophers", "whatsapp")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if !strings.Contains(msg, "researcher") {
		t.Errorf("handoff message = %q", msg)
	}

	report := rec.waitForSend(t)
	if report.To != "parent1" {
		t.Errorf("report to %q, want parent1", report.To)
	}
	if !strings.HasPrefix(report.Text, "[LiteClaw]") {
		t.Errorf("report lacks self tag: %q", report.Text)
	}
	if !strings.Contains(report.Text, "research complete") {
		t.Errorf("report missing result: %q", report.Text)
	}
}

func TestDelegate_PerSessionCap(t *testing.T) {
	runner := newFakeRunner("ok")
	sup, _, _ := newTestSupervisor(t, runner)

	for i := 0; i < MaxPerSession; i++ {
		if _, err := sup.Delegate("parent1", fmt.Sprintf("agent%d", i), "task", "api"); err != nil {
			t.Fatalf("Delegate %d: %v", i, err)
		}
	}
	if _, err := sup.Delegate("parent1", "one-too-many", "task", "api"); err == nil {
		t.Error("sixth sub-agent accepted, want cap error")
	}

	// Another session has its own cap.
	if _, err := sup.Delegate("parent2", "fresh", "task", "api"); err != nil {
		t.Errorf("other session rejected: %v", err)
	}
}

func TestDelegate_BusyAgentRejectsNewTask(t *testing.T) {
	runner := newFakeRunner("ok")
	runner.block = make(chan struct{})
	sup, _, _ := newTestSupervisor(t, runner)

	if _, err := sup.Delegate("parent1", "worker", "first task", "api"); err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	<-runner.started

	if _, err := sup.Delegate("parent1", "worker", "second task", "api"); err == nil {
		t.Error("busy sub-agent accepted a second task")
	}
	close(runner.block)
}

func TestDelegate_ReusesIdleAgent(t *testing.T) {
	runner := newFakeRunner("done")
	sup, rec, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "worker", "first", "api")
	rec.waitForSend(t)

	// Completed agents take new work without counting against the cap twice.
	if _, err := sup.Delegate("parent1", "worker", "second", "api"); err != nil {
		t.Fatalf("redelegate: %v", err)
	}
	rec.waitForSend(t)

	infos := sup.List("parent1")
	if len(infos) != 1 {
		t.Fatalf("agent count = %d, want 1", len(infos))
	}
	if infos[0].Tasks != 2 {
		t.Errorf("task count = %d, want 2", infos[0].Tasks)
	}
}

func TestDelegate_ReportTruncated(t *testing.T) {
	runner := newFakeRunner(strings.Repeat("x", reportLimit+500))
	sup, rec, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "verbose", "go long", "api")
	report := rec.waitForSend(t)

	// Self tag + header + truncated body + ellipsis.
	if len(report.Text) > reportLimit+100 {
		t.Errorf("report length = %d, want truncated near %d", len(report.Text), reportLimit)
	}
	if !strings.HasSuffix(report.Text, "...") {
		t.Errorf("truncated report lacks ellipsis: ...%q", report.Text[len(report.Text)-20:])
	}
}

func TestDelegate_FailureReported(t *testing.T) {
	runner := newFakeRunner("")
	runner.err = fmt.Errorf("model unavailable")
	sup, rec, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "doomed", "task", "api")
	report := rec.waitForSend(t)
	if !strings.Contains(report.Text, "failed") {
		t.Errorf("failure report = %q", report.Text)
	}

	infos := sup.List("parent1")
	if len(infos) != 1 || infos[0].Status != StatusFailed {
		t.Errorf("status = %+v, want failed", infos)
	}
}

func TestKill_DiscardsInFlightResult(t *testing.T) {
	runner := newFakeRunner("should never surface")
	runner.block = make(chan struct{})
	sup, rec, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "worker", "long task", "api")
	<-runner.started

	if err := sup.Kill("parent1", "worker"); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	close(runner.block)

	// The killed agent's result must not be delivered.
	select {
	case <-rec.got:
		t.Error("killed sub-agent still reported")
	case <-time.After(200 * time.Millisecond):
	}

	infos := sup.List("parent1")
	if infos[0].Status != StatusTerminated {
		t.Errorf("status = %s, want terminated", infos[0].Status)
	}
}

func TestKill_UnknownAgent(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, newFakeRunner("ok"))
	if err := sup.Kill("parent1", "ghost"); err == nil {
		t.Error("killing unknown agent succeeded")
	}
}

func TestKillAll(t *testing.T) {
	runner := newFakeRunner("ok")
	runner.block = make(chan struct{})
	sup, _, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "a", "task", "api")
	sup.Delegate("parent1", "b", "task", "api")
	<-runner.started
	<-runner.started

	if n := sup.KillAll("parent1"); n != 2 {
		t.Errorf("KillAll = %d, want 2", n)
	}
	close(runner.block)

	if sup.AnyWorking() {
		t.Error("AnyWorking true after KillAll")
	}
}

func TestAnyWorking(t *testing.T) {
	runner := newFakeRunner("ok")
	runner.block = make(chan struct{})
	sup, rec, _ := newTestSupervisor(t, runner)

	if sup.AnyWorking() {
		t.Error("AnyWorking true with no agents")
	}

	sup.Delegate("parent1", "worker", "task", "api")
	<-runner.started
	if !sup.AnyWorking() {
		t.Error("AnyWorking false mid-task")
	}

	close(runner.block)
	rec.waitForSend(t)
	if sup.AnyWorking() {
		t.Error("AnyWorking true after completion")
	}
}

func TestMessage_QueuedInPrivateSession(t *testing.T) {
	runner := newFakeRunner("ok")
	sup, rec, hist := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "worker", "task", "api")
	rec.waitForSend(t)

	msg, err := sup.Message(context.Background(), "parent1", "worker", "alice", "also check the docs")
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if !strings.Contains(msg, "queued") {
		t.Errorf("message ack = %q", msg)
	}

	infos := sup.List("parent1")
	sub := "sub_" + infos[0].ID
	queued, _ := hist.Messages(context.Background(), sub, 0)
	if len(queued) != 1 || !strings.Contains(queued[0].Content, "FROM alice: also check the docs") {
		t.Errorf("queued = %+v", queued)
	}

	// The next task folds the inbox into the prompt.
	sup.Delegate("parent1", "worker", "next task", "api")
	rec.waitForSend(t)
	if task := runner.lastTask(); !strings.Contains(task, "also check the docs") || !strings.Contains(task, "next task") {
		t.Errorf("inbox not folded into task: %q", task)
	}
}

func TestMessage_InboxNotReplayedOnLaterTasks(t *testing.T) {
	runner := newFakeRunner("ok")
	sup, rec, _ := newTestSupervisor(t, runner)

	sup.Delegate("parent1", "worker", "task", "api")
	rec.waitForSend(t)

	if _, err := sup.Message(context.Background(), "parent1", "worker", "alice", "also check the docs"); err != nil {
		t.Fatalf("Message: %v", err)
	}

	sup.Delegate("parent1", "worker", "second task", "api")
	rec.waitForSend(t)
	if task := runner.lastTask(); !strings.Contains(task, "also check the docs") {
		t.Fatalf("inbox not folded into second task: %q", task)
	}

	// Delivered inbox messages must not reappear in later tasks.
	sup.Delegate("parent1", "worker", "third task", "api")
	rec.waitForSend(t)
	task := runner.lastTask()
	if strings.Contains(task, "also check the docs") {
		t.Errorf("delivered inbox message replayed: %q", task)
	}
	if !strings.Contains(task, "third task") {
		t.Errorf("task body lost: %q", task)
	}
}

func TestMessage_UnknownAgent(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, newFakeRunner("ok"))
	if _, err := sup.Message(context.Background(), "parent1", "ghost", "alice", "hi"); err == nil {
		t.Error("messaging unknown agent succeeded")
	}
}

type fakeVision struct {
	mu    sync.Mutex
	goals []string
}

func (v *fakeVision) Submit(sessionID, platform, goal string, correction bool) string {
	v.mu.Lock()
	v.goals = append(v.goals, goal)
	v.mu.Unlock()
	return "Vision goal accepted."
}

func TestMessage_VisionNameReroutes(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, newFakeRunner("ok"))

	if _, err := sup.Message(context.Background(), "parent1", "vision", "alice", "click the button"); err == nil {
		t.Error("vision reroute succeeded without a vision worker")
	}

	v := &fakeVision{}
	sup.SetVision(v)
	msg, err := sup.Message(context.Background(), "parent1", "vision", "alice", "click the button")
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if msg != "Vision goal accepted." {
		t.Errorf("ack = %q", msg)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.goals) != 1 || v.goals[0] != "click the button" {
		t.Errorf("goals = %v", v.goals)
	}
}

func TestMessage_VisionNameCaseInsensitive(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, newFakeRunner("ok"))
	v := &fakeVision{}
	sup.SetVision(v)

	for _, name := range []string{"Vision", "VISION"} {
		if _, err := sup.Message(context.Background(), "parent1", name, "alice", "scroll down"); err != nil {
			t.Fatalf("Message(%q): %v", name, err)
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.goals) != 2 {
		t.Errorf("vision goals = %v, want 2 reroutes", v.goals)
	}
}
