// Package agent implements the conversation engine: the streaming
// think → tool calls → results → iterate loop that drives one turn of
// one session against the LLM.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/memory"
	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
	"github.com/nextlevelbuilder/liteclaw/internal/tools"
)

const (
	// haltReflectMessage is injected as a synthetic user message after
	// three consecutive tool failures in one turn.
	haltReflectMessage = "SYSTEM HALT: Three consecutive tool failures. Stop using tools immediately. Analyze what went wrong, explain your reasoning, and propose a different approach before acting again."

	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

// Config wires an Engine.
type Config struct {
	Provider      providers.Provider
	Registry      *tools.Registry
	History       store.HistoryStore
	Memory        *memory.Store
	SelfTag       string // e.g. "[LiteClaw]"
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int // default 20
	HistoryLimit  int // user turns loaded per prompt, default 50
}

// Engine runs conversation turns. One turn per session at a time;
// turns across sessions run concurrently.
type Engine struct {
	provider      providers.Provider
	registry      *tools.Registry
	history       store.HistoryStore
	memory        *memory.Store
	selfTag       string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	historyLimit  int

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex

	sinkMu sync.RWMutex
	sink   func(sessionID string, ev Event)
}

func NewEngine(cfg Config) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 20
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Engine{
		provider:      cfg.Provider,
		registry:      cfg.Registry,
		history:       cfg.History,
		memory:        cfg.Memory,
		selfTag:       cfg.SelfTag,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
	}
}

// SetEventSink installs a process-wide observer that sees every event
// from every session (used for the gateway's WebSocket broadcast).
func (e *Engine) SetEventSink(sink func(sessionID string, ev Event)) {
	e.sinkMu.Lock()
	e.sink = sink
	e.sinkMu.Unlock()
}

// SelfTag returns the outbound reply marker, e.g. "[LiteClaw]".
func (e *Engine) SelfTag() string { return e.selfTag }

// RunRequest is one turn's input.
type RunRequest struct {
	SessionID string
	Platform  string
	Sender    string // recipient for tool-sent media; defaults to SessionID
	Message   string
}

// RunResult is one turn's output.
type RunResult struct {
	Text  string // concatenation of all streamed text chunks
	Usage *providers.Usage

	// OutputSent reports that a tool already delivered output to the
	// user during the turn (e.g. media through the bridge); callers
	// relaying Text as a channel message should skip the redundant send.
	OutputSent bool
}

func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.sessionLocks[sessionID]
	if !ok {
		if e.sessionLocks == nil {
			e.sessionLocks = make(map[string]*sync.Mutex)
		}
		l = &sync.Mutex{}
		e.sessionLocks[sessionID] = l
	}
	return l
}

// RunToCompletion runs a turn without a caller event stream and returns
// the final text. Used by the scheduler, sub-agents and reflection loops.
func (e *Engine) RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error) {
	res, err := e.Run(ctx, RunRequest{SessionID: sessionID, Platform: platform, Message: message}, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Run executes one turn. Events are delivered to onEvent (may be nil)
// in stream order; the final reply is the concatenation of chunk events.
func (e *Engine) Run(ctx context.Context, req RunRequest, onEvent func(Event)) (*RunResult, error) {
	lock := e.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if req.Sender == "" {
		req.Sender = req.SessionID
	}

	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
		e.sinkMu.RLock()
		sink := e.sink
		e.sinkMu.RUnlock()
		if sink != nil {
			sink(req.SessionID, ev)
		}
	}

	if err := e.history.AddMessage(ctx, req.SessionID, providers.Message{
		Role:    "user",
		Content: req.Message,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	toolCtx := tools.WithToolSessionID(ctx, req.SessionID)
	toolCtx = tools.WithToolPlatform(toolCtx, req.Platform)
	toolCtx = tools.WithToolSender(toolCtx, req.Sender)

	result := &RunResult{}
	var reply strings.Builder

	// The failure counter persists across iterations within the turn
	// and resets on any successful tool result.
	consecutiveFailures := 0
	executedKeys := make(map[string]bool)

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		messages, err := e.buildMessages(ctx, req.SessionID)
		if err != nil {
			emit(Event{Type: EventError, Text: err.Error(), IsError: true})
			return nil, err
		}

		resp, err := e.streamWithRetry(ctx, messages, emit, &reply)
		if err != nil {
			emit(Event{Type: EventError, Text: fmt.Sprintf("LLM stream failed: %v", err), IsError: true})
			return nil, fmt.Errorf("llm stream: %w", err)
		}
		if resp.Usage != nil {
			result.Usage = resp.Usage
		}

		if resp.Content != "" {
			if err := e.history.AddMessage(ctx, req.SessionID, providers.Message{
				Role:    "assistant",
				Content: resp.Content,
			}); err != nil {
				slog.Error("persist assistant text failed", "session", req.SessionID, "error", err)
			}
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		if err := e.history.AddMessage(ctx, req.SessionID, providers.Message{
			Role:      "assistant",
			ToolCalls: resp.ToolCalls,
		}); err != nil {
			slog.Error("persist tool calls failed", "session", req.SessionID, "error", err)
		}

		halted := false
		for _, call := range resp.ToolCalls {
			failed, outputSent := e.executeCall(toolCtx, req.SessionID, call, executedKeys, emit)
			if outputSent {
				result.OutputSent = true
			}
			if failed == callSkippedDuplicate || failed == callFailed {
				consecutiveFailures++
			} else if failed == callSucceeded {
				consecutiveFailures = 0
			}

			if consecutiveFailures >= 3 {
				emit(Event{Type: EventStatus, Text: ">>> [CRITICAL: 3 consecutive tool failures — halting tool use to reflect]"})
				if err := e.history.AddMessage(ctx, req.SessionID, providers.Message{
					Role:    "user",
					Content: haltReflectMessage,
				}); err != nil {
					slog.Error("persist halt message failed", "session", req.SessionID, "error", err)
				}
				consecutiveFailures = 0
				halted = true
				break
			}
			if failed == callStoppedBatch {
				break
			}
		}

		slog.Debug("engine iteration complete",
			"session", req.SessionID,
			"iteration", iteration,
			"tool_calls", len(resp.ToolCalls),
			"halted", halted,
		)
	}

	emit(Event{Type: EventDone})
	result.Text = strings.TrimSpace(reply.String())
	return result, nil
}

// buildMessages assembles system prompt + sanitized recent history.
func (e *Engine) buildMessages(ctx context.Context, sessionID string) ([]providers.Message, error) {
	history, err := e.history.Messages(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]providers.Message, 0, len(history)+1)
	messages = append(messages, providers.Message{Role: "system", Content: e.buildSystemPrompt()})
	messages = append(messages, sanitizeHistory(limitHistoryTurns(history, e.historyLimit))...)
	return messages, nil
}

// streamWithRetry opens the LLM stream, retrying the open up to three
// times with a user-visible hiccup notice. Once chunks have flowed, an
// error fails the turn without retry.
func (e *Engine) streamWithRetry(ctx context.Context, messages []providers.Message, emit func(Event), reply *strings.Builder) (*providers.ChatResponse, error) {
	req := providers.ChatRequest{
		Messages: messages,
		Tools:    e.registry.Definitions(),
		Model:    e.model,
		Options: map[string]interface{}{
			providers.OptMaxTokens:   e.maxTokens,
			providers.OptTemperature: e.temperature,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		streamed := false
		resp, err := e.provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
			if chunk.Content == "" {
				return
			}
			streamed = true
			reply.WriteString(chunk.Content)
			emit(Event{Type: EventChunk, Text: chunk.Content})
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if streamed || attempt == connectAttempts {
			break
		}

		emit(Event{Type: EventStatus, Text: ">>> [System]: Connection hiccup, retrying..."})
		slog.Warn("llm stream open failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, lastErr
}

type callOutcome int

const (
	callSucceeded callOutcome = iota
	callFailed
	callSkippedDuplicate
	callStoppedBatch
)

// executeCall runs one tool call, persisting its tool-role result.
// Duplicate (name, raw argument) pairs within a turn are skipped. The
// second return reports whether the tool delivered output to the user
// itself.
func (e *Engine) executeCall(ctx context.Context, sessionID string, call providers.ToolCall, executedKeys map[string]bool, emit func(Event)) (callOutcome, bool) {
	rawArgs := call.RawArguments
	if rawArgs == "" {
		data, _ := json.Marshal(call.Arguments)
		rawArgs = string(data)
	}

	key := call.Name + "\x00" + rawArgs
	if executedKeys[key] {
		emit(Event{Type: EventStatus, Text: ">>> [System]: Skipping duplicate tool call: " + call.Name})
		e.persistToolResult(ctx, sessionID, call, "Duplicate call skipped: an identical call already ran this turn.")
		return callSkippedDuplicate, false
	}
	executedKeys[key] = true

	emit(Event{Type: EventToolStart, Tool: call.Name,
		Text: fmt.Sprintf(">>> [Tool] %s(%s)", call.Name, truncate(rawArgs, 120))})
	slog.Info("tool call", "session", sessionID, "tool", call.Name, "args_len", len(rawArgs))

	started := time.Now()
	result := e.registry.Execute(ctx, call.Name, call.Arguments)
	if result == nil {
		result = tools.ErrorResult("tool returned no result")
	}

	text := result.ForLLM
	if text == "" {
		text = "(no output)"
	}
	e.persistToolResult(ctx, sessionID, call, text)

	emit(Event{Type: EventToolResult, Tool: call.Name, IsError: result.IsError,
		Text: ">>> [Result] " + truncate(text, 200)})
	slog.Info("tool result",
		"session", sessionID,
		"tool", call.Name,
		"is_error", result.IsError,
		"duration", time.Since(started).Round(time.Millisecond),
	)

	if result.StopBatch {
		emit(Event{Type: EventStatus, Text: ">>> [System]: Remaining tool calls in this batch were skipped."})
		return callStoppedBatch, result.OutputSent
	}
	if result.IsError || looksLikeFailure(text) {
		return callFailed, result.OutputSent
	}
	return callSucceeded, result.OutputSent
}

func (e *Engine) persistToolResult(ctx context.Context, sessionID string, call providers.ToolCall, text string) {
	if err := e.history.AddMessage(ctx, sessionID, providers.Message{
		Role:       "tool",
		Content:    text,
		ToolCallID: call.ID,
		Name:       call.Name,
	}); err != nil {
		slog.Error("persist tool result failed", "session", sessionID, "tool", call.Name, "error", err)
	}
}

// looksLikeFailure detects error-flavored tool output.
func looksLikeFailure(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "error") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "exception")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
