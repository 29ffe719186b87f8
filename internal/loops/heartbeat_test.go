package loops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeHeartbeatFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, heartbeatFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write heartbeat file: %v", err)
	}
}

func TestParseHeartbeatFile(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantEnabled  bool
		wantInterval int
		wantTasks    []string
		wantErr      bool
	}{
		{
			name: "front matter and bullets",
			content: "---\nenabled: true\ninterval_seconds: 120\n---\n\n" +
				"# Standing tasks\n\n- check the inbox\n- water the plants\n",
			wantEnabled:  true,
			wantInterval: 120,
			wantTasks:    []string{"check the inbox", "water the plants"},
		},
		{
			name:        "asterisk bullets",
			content:     "---\nenabled: true\n---\n* first\n* second\n",
			wantEnabled: true,
			wantTasks:   []string{"first", "second"},
		},
		{
			name:      "no front matter",
			content:   "- just a task\n",
			wantTasks: []string{"just a task"},
		},
		{
			name:        "disabled",
			content:     "---\nenabled: false\n---\n- still listed\n",
			wantEnabled: false,
			wantTasks:   []string{"still listed"},
		},
		{
			name:        "prose lines ignored",
			content:     "---\nenabled: true\n---\nSome notes here.\n- real task\nmore notes\n",
			wantEnabled: true,
			wantTasks:   []string{"real task"},
		},
		{
			name:        "empty bullets skipped",
			content:     "---\nenabled: true\n---\n- \n- real\n",
			wantEnabled: true,
			wantTasks:   []string{"real"},
		},
		{
			name:    "unterminated front matter",
			content: "---\nenabled: true\n- task\n",
			wantErr: true,
		},
		{
			name:    "bad yaml",
			content: "---\nenabled: [not a bool\n---\n- task\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeHeartbeatFile(t, dir, tt.content)

			spec, err := parseHeartbeatFile(filepath.Join(dir, heartbeatFile))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parse succeeded: %+v", spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if spec.Enabled != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", spec.Enabled, tt.wantEnabled)
			}
			if spec.IntervalSeconds != tt.wantInterval {
				t.Errorf("interval = %d, want %d", spec.IntervalSeconds, tt.wantInterval)
			}
			if len(spec.Tasks) != len(tt.wantTasks) {
				t.Fatalf("tasks = %v, want %v", spec.Tasks, tt.wantTasks)
			}
			for i, task := range tt.wantTasks {
				if spec.Tasks[i] != task {
					t.Errorf("task %d = %q, want %q", i, spec.Tasks[i], task)
				}
			}
		})
	}
}

func TestParseHeartbeatFile_Missing(t *testing.T) {
	_, err := parseHeartbeatFile(filepath.Join(t.TempDir(), heartbeatFile))
	if !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

type loopRunner struct {
	mu      sync.Mutex
	prompts []string
	ran     chan struct{}
}

func newLoopRunner() *loopRunner {
	return &loopRunner{ran: make(chan struct{}, 16)}
}

func (r *loopRunner) RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, sessionID+"|"+message)
	r.mu.Unlock()
	r.ran <- struct{}{}
	return "done", nil
}

func (r *loopRunner) lastPrompt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.prompts) == 0 {
		return ""
	}
	return r.prompts[len(r.prompts)-1]
}

type stubBusy struct{ busy bool }

func (s stubBusy) AnyWorking() bool { return s.busy }
func (s stubBusy) Busy() bool       { return s.busy }

func TestHeartbeatTick_RunsTasks(t *testing.T) {
	dir := t.TempDir()
	writeHeartbeatFile(t, dir, "---\nenabled: true\ninterval_seconds: 1\n---\n- ping the user\n- tidy notes\n")

	runner := newLoopRunner()
	h := NewHeartbeat(runner, stubBusy{}, stubBusy{}, dir)
	h.reload()

	h.mu.Lock()
	h.lastRun = time.Time{}
	h.mu.Unlock()
	h.tick(context.Background())

	select {
	case <-runner.ran:
	case <-time.After(time.Second):
		t.Fatal("tick did not run")
	}

	prompt := runner.lastPrompt()
	if !strings.HasPrefix(prompt, "loop_heartbeat|") {
		t.Errorf("session = %q, want loop_heartbeat", prompt)
	}
	if !strings.Contains(prompt, "- ping the user") || !strings.Contains(prompt, "- tidy notes") {
		t.Errorf("tasks missing from prompt: %q", prompt)
	}
}

func TestHeartbeatTick_Gates(t *testing.T) {
	content := "---\nenabled: true\ninterval_seconds: 1\n---\n- task\n"

	tests := []struct {
		name    string
		content string
		agents  stubBusy
		vision  stubBusy
		lastRun time.Time
		want    bool // tick runs
	}{
		{"runs when clear", content, stubBusy{}, stubBusy{}, time.Time{}, true},
		{"disabled", strings.Replace(content, "true", "false", 1), stubBusy{}, stubBusy{}, time.Time{}, false},
		{"no tasks", "---\nenabled: true\n---\nno bullets here\n", stubBusy{}, stubBusy{}, time.Time{}, false},
		{"interval not elapsed", content, stubBusy{}, stubBusy{}, time.Now(), false},
		{"sub-agent working", content, stubBusy{busy: true}, stubBusy{}, time.Time{}, false},
		{"vision busy", content, stubBusy{}, stubBusy{busy: true}, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := t.TempDir()
			writeHeartbeatFile(t, d, tt.content)

			runner := newLoopRunner()
			h := NewHeartbeat(runner, tt.agents, tt.vision, d)
			h.reload()
			h.mu.Lock()
			h.lastRun = tt.lastRun
			h.mu.Unlock()

			h.tick(context.Background())

			select {
			case <-runner.ran:
				if !tt.want {
					t.Error("tick ran despite gate")
				}
			case <-time.After(100 * time.Millisecond):
				if tt.want {
					t.Error("tick did not run")
				}
			}
		})
	}
}

func TestHeartbeatReload_KeepsSpecOnParseError(t *testing.T) {
	dir := t.TempDir()
	writeHeartbeatFile(t, dir, "---\nenabled: true\n---\n- good task\n")

	h := NewHeartbeat(newLoopRunner(), stubBusy{}, stubBusy{}, dir)
	h.reload()

	// A broken edit must not wipe the last good spec.
	writeHeartbeatFile(t, dir, "---\nenabled: [broken\n")
	h.reload()

	h.mu.Lock()
	tasks := h.spec.Tasks
	h.mu.Unlock()
	if len(tasks) != 1 || tasks[0] != "good task" {
		t.Errorf("spec lost on parse error: %v", tasks)
	}
}

func TestRandomInterval(t *testing.T) {
	min, max := 5*time.Minute, 15*time.Minute
	for i := 0; i < 100; i++ {
		got := randomInterval(min, max)
		if got < min || got >= max {
			t.Fatalf("randomInterval = %v, want [%v, %v)", got, min, max)
		}
	}
	if got := randomInterval(max, min); got != max {
		t.Errorf("inverted bounds = %v, want %v", got, max)
	}
}
