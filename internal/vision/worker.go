// Package vision implements the screen-control worker: a process-wide
// singleton that perceives the screen through a vision model and acts
// on mouse and keyboard. Goals queue FIFO; corrections jump the queue
// into a feedback channel drained between iterations.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/nextlevelbuilder/liteclaw/internal/egress"
	"github.com/nextlevelbuilder/liteclaw/internal/pending"
	"github.com/nextlevelbuilder/liteclaw/internal/providers"
)

const visionSystemPrompt = `You control a computer screen. You receive a screenshot and a goal, and you answer with a JSON array of actions, nothing else.

Allowed actions:
  {"action":"CLICK","box":[ymin,xmin,ymax,xmax]}
  {"action":"DOUBLE_CLICK","box":[ymin,xmin,ymax,xmax]}
  {"action":"RIGHT_CLICK","box":[ymin,xmin,ymax,xmax]}
  {"action":"MOVE_TO","box":[ymin,xmin,ymax,xmax]}
  {"action":"TYPE","text":"..."}
  {"action":"HOTKEY","keys":["ctrl","c"]}
  {"action":"SCROLL","direction":"down","amount":3}
  {"action":"WAIT","seconds":1}
  {"action":"ASK_USER","question":"..."}
  {"action":"FINISH","summary":"..."}

Box coordinates are [ymin, xmin, ymax, xmax] in a 0-1000 space over the screenshot. Plan a few actions at a time; end with FINISH only when the goal is truly done.`

// Goal is one queued vision task.
type Goal struct {
	Text     string
	Session  string // originating session for notifications
	Platform string
}

// Worker is the singleton screen-control agent.
type Worker struct {
	provider   providers.Provider
	model      string
	screen     Screen
	egress     *egress.Client
	pending    *pending.PendingQuestions
	selfTag    string
	workDir    string
	maxSteps   int
	askTimeout time.Duration

	mu       sync.Mutex
	running  bool
	current  *Goal
	goals    []Goal
	feedback []string
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Provider   providers.Provider
	Model      string
	Screen     Screen
	Egress     *egress.Client
	Pending    *pending.PendingQuestions
	SelfTag    string
	WorkDir    string // screenshots are saved under <WorkDir>/screenshots
	MaxSteps   int    // initial per-goal step limit, default 15
	AskTimeout time.Duration
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 15
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = pending.DefaultAskTimeout
	}
	if cfg.Screen == nil {
		cfg.Screen = UnavailableScreen{}
	}
	return &Worker{
		provider:   cfg.Provider,
		model:      cfg.Model,
		screen:     cfg.Screen,
		egress:     cfg.Egress,
		pending:    cfg.Pending,
		selfTag:    cfg.SelfTag,
		workDir:    cfg.WorkDir,
		maxSteps:   cfg.MaxSteps,
		askTimeout: cfg.AskTimeout,
	}
}

// Submit enqueues a goal, or routes a correction to the feedback queue
// when a goal is already running. Returns a human-readable status.
func (w *Worker) Submit(sessionID, platform, goal string, correction bool) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if correction && w.running {
		w.feedback = append(w.feedback, goal)
		return "Correction queued; the vision worker will apply it on its next step."
	}

	w.goals = append(w.goals, Goal{Text: goal, Session: sessionID, Platform: platform})
	if w.running {
		return fmt.Sprintf("Vision worker is busy; goal queued at position %d.", len(w.goals))
	}
	return "Vision goal accepted."
}

// Busy reports whether a goal is currently being worked.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// QueueLen returns the number of queued (not yet started) goals.
func (w *Worker) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.goals)
}

// Start runs the worker loop until the context is cancelled. Call once.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		goal, ok := w.popGoal()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		w.runGoal(ctx, goal)

		w.mu.Lock()
		w.running = false
		w.current = nil
		w.mu.Unlock()
	}
}

func (w *Worker) popGoal() (Goal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.goals) == 0 {
		return Goal{}, false
	}
	goal := w.goals[0]
	w.goals = w.goals[1:]
	w.running = true
	w.current = &goal
	return goal, true
}

func (w *Worker) drainFeedback() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	fb := w.feedback
	w.feedback = nil
	return fb
}

func (w *Worker) runGoal(ctx context.Context, goal Goal) {
	slog.Info("vision goal started", "goal", truncate(goal.Text, 120), "session", goal.Session)

	stepLimit := w.maxSteps
	var history []string

	for step := 1; ; step++ {
		if step > stepLimit {
			w.notify(goal, fmt.Sprintf("Vision goal stopped after %d steps without finishing: %s", stepLimit, truncate(goal.Text, 200)))
			return
		}
		if ctx.Err() != nil {
			return
		}

		img, width, height, err := w.captureScaled()
		if err != nil {
			w.notify(goal, fmt.Sprintf("Vision goal failed: %v", err))
			return
		}

		checkpoint := ""
		if step%5 == 0 {
			stepLimit += 5
			checkpoint = "CHECKPOINT: pause and reflect. Re-examine the screenshot, compare with the goal, and re-plan. If you are stuck in a loop, change approach."
		}

		plan, err := w.plan(ctx, goal, img, history, w.drainFeedback(), checkpoint, step)
		if err != nil {
			slog.Warn("vision plan failed", "step", step, "error", err)
			history = append(history, fmt.Sprintf("step %d: planning failed: %v", step, err))
			continue
		}

		done := w.executePlan(ctx, goal, plan, width, height, &history, step)
		if done {
			return
		}
	}
}

// captureScaled grabs a screenshot, downscaling physical pixels to the
// logical screen size so box coordinates line up with pointer space.
func (w *Worker) captureScaled() (image.Image, int, int, error) {
	img, err := w.screen.Capture()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("capture screen: %w", err)
	}
	width, height, err := w.screen.Size()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("screen size: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return img, width, height, nil
}

func (w *Worker) plan(ctx context.Context, goal Goal, img image.Image, history, feedback []string, checkpoint string, step int) ([]Action, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "GOAL: %s\n\nThis is step %d.", goal.Text, step)
	if len(history) > 0 {
		tail := history
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		b.WriteString("\n\nWhat happened so far:\n")
		for _, h := range tail {
			b.WriteString("- " + h + "\n")
		}
	}
	if len(feedback) > 0 {
		b.WriteString("\n[USER CORRECTION]\n")
		for _, f := range feedback {
			b.WriteString(f + "\n")
		}
		b.WriteString("Apply the correction before anything else.\n")
	}
	if checkpoint != "" {
		b.WriteString("\n" + checkpoint + "\n")
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	resp, err := w.provider.Chat(ctx, providers.ChatRequest{
		Model: w.model,
		Messages: []providers.Message{
			{Role: "system", Content: visionSystemPrompt},
			{
				Role:    "user",
				Content: b.String(),
				Images:  []providers.ImageContent{{MimeType: "image/png", Data: encoded}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}

	return parsePlan(resp.Content)
}

// executePlan runs plan actions in order. Returns true when the goal
// is finished (FINISH or fatal screen error).
func (w *Worker) executePlan(ctx context.Context, goal Goal, plan []Action, width, height int, history *[]string, step int) bool {
	for _, action := range plan {
		slog.Debug("vision action", "action", action.Action, "step", step)

		switch action.Action {
		case ActClick, ActDoubleClick, ActRightClick, ActMoveTo:
			x, y, err := action.Center(width, height)
			if err != nil {
				*history = append(*history, fmt.Sprintf("step %d: %v", step, err))
				continue
			}
			if err := w.screen.MoveTo(x, y, 500*time.Millisecond); err != nil {
				w.notify(goal, fmt.Sprintf("Vision goal failed: %v", err))
				return true
			}
			var clickErr error
			switch action.Action {
			case ActClick:
				clickErr = w.screen.Click()
			case ActDoubleClick:
				clickErr = w.screen.DoubleClick()
			case ActRightClick:
				clickErr = w.screen.RightClick()
			}
			if clickErr != nil {
				*history = append(*history, fmt.Sprintf("step %d: %s failed: %v", step, action.Action, clickErr))
				continue
			}
			*history = append(*history, fmt.Sprintf("step %d: %s at (%d,%d)", step, action.Action, x, y))

		case ActType:
			if err := w.screen.Type(action.Text); err != nil {
				*history = append(*history, fmt.Sprintf("step %d: TYPE failed: %v", step, err))
				continue
			}
			*history = append(*history, fmt.Sprintf("step %d: typed %q", step, truncate(action.Text, 60)))

		case ActHotkey:
			if err := w.screen.Hotkey(action.Keys); err != nil {
				*history = append(*history, fmt.Sprintf("step %d: HOTKEY failed: %v", step, err))
				continue
			}
			*history = append(*history, fmt.Sprintf("step %d: hotkey %v", step, action.Keys))

		case ActScroll:
			w.scroll(action)
			*history = append(*history, fmt.Sprintf("step %d: scrolled %s x%d", step, action.Direction, action.Amount))

		case ActWait:
			secs := action.Seconds
			if secs <= 0 {
				secs = 1
			}
			select {
			case <-ctx.Done():
				return true
			case <-time.After(time.Duration(secs * float64(time.Second))):
			}

		case ActAskUser:
			answer := w.askUser(ctx, goal, action.Question)
			*history = append(*history, fmt.Sprintf("step %d: asked user %q → %s", step, truncate(action.Question, 80), truncate(answer, 120)))
			w.mu.Lock()
			w.feedback = append(w.feedback, answer)
			w.mu.Unlock()

		case ActFinish:
			summary := action.Summary
			if summary == "" {
				summary = "done"
			}
			w.notify(goal, "Vision goal completed: "+summary)
			slog.Info("vision goal completed", "goal", truncate(goal.Text, 120))
			return true

		default:
			*history = append(*history, fmt.Sprintf("step %d: unknown action %q skipped", step, action.Action))
		}
	}
	return false
}

// scroll emits discrete wheel notches with a short pause between them.
func (w *Worker) scroll(action Action) {
	notch := 1
	if strings.EqualFold(action.Direction, "down") {
		notch = -1
	}
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}
	for i := 0; i < amount; i++ {
		if err := w.screen.Scroll(notch); err != nil {
			slog.Warn("scroll failed", "error", err)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// askUser sends the current screenshot with the question and blocks on
// the session's answer mailbox.
func (w *Worker) askUser(ctx context.Context, goal Goal, question string) string {
	if goal.Session == "" {
		return "No user available to answer."
	}

	if path, err := w.saveScreenshot(); err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := w.egress.Send(sendCtx, egress.Message{
			To:        goal.Session,
			URLOrPath: path,
			MediaType: "image",
			Caption:   w.selfTag + " [Vision] " + question,
			IsMedia:   true,
			Platform:  goal.Platform,
		}); err != nil {
			slog.Warn("question screenshot delivery failed", "error", err)
		}
		cancel()
	} else {
		slog.Warn("screenshot save failed", "error", err)
	}

	answer, err := w.pending.Ask(ctx, goal.Session, question, w.askTimeout)
	if err != nil {
		return "User did not respond in time. Proceed with your best judgment."
	}
	return "User responded: " + answer
}

func (w *Worker) saveScreenshot() (string, error) {
	img, err := w.screen.Capture()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(w.workDir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("screen_%d.png", time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Worker) notify(goal Goal, text string) {
	if goal.Session == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.egress.SendText(ctx, goal.Session, w.selfTag+" [Vision] "+text, goal.Platform); err != nil {
		slog.Error("vision notification failed", "session", goal.Session, "error", err)
	}
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
