// Package router multiplexes inbound channel events onto sessions:
// duplicate suppression, echo drops, allow-lists, control commands,
// pending-question delivery, and dispatch into the conversation engine.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/agent"
	"github.com/nextlevelbuilder/liteclaw/internal/pending"
)

// PendingQuestions is the per-session question mailbox. It lives in
// internal/pending so vision can use it without importing router.
type PendingQuestions = pending.PendingQuestions

// NewPendingQuestions constructs an empty mailbox.
func NewPendingQuestions() *PendingQuestions { return pending.NewPendingQuestions() }

// processedCap bounds the dedup set; on overflow it is cleared
// wholesale rather than evicted piecewise.
const processedCap = 1000

const resetCommand = "/reset"

// Inbound is a normalized channel event from the bridge.
type Inbound struct {
	MessageID  string `json:"message_id,omitempty"`
	Sender     string `json:"from"`
	SenderName string `json:"senderName,omitempty"`
	Body       string `json:"body"`
	FromMe     bool   `json:"fromMe,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// Outcome reports how an inbound event was handled.
type Outcome struct {
	Status string `json:"status"`
}

// Outcome statuses.
const (
	StatusProcessing      = "processing"
	StatusIgnoredDup      = "ignored_duplicate"
	StatusIgnoredEcho     = "ignored_echo"
	StatusIgnoredUnauth   = "ignored_unauthorized"
	StatusIgnoredEmpty    = "ignored_empty"
	StatusReset           = "reset"
	StatusAnswerDelivered = "answer_delivered"
)

// Engine is the conversation engine surface the router needs.
type Engine interface {
	Run(ctx context.Context, req agent.RunRequest, onEvent func(agent.Event)) (*agent.RunResult, error)
}

// History is the store surface the router needs.
type History interface {
	EnsureSession(ctx context.Context, id, parentID string) error
	ClearSession(ctx context.Context, sessionID string) error
}

// Egress is the outbound surface the router needs.
type Egress interface {
	SendText(ctx context.Context, to, text, platform string) error
	KeepTyping(ctx context.Context, to, platform string, interval time.Duration)
}

// Router handles inbound events.
type Router struct {
	engine  Engine
	history History
	egress  Egress
	pending *PendingQuestions
	selfTag string
	allowed map[string]bool // empty = allow everyone

	mu        sync.Mutex
	processed map[string]bool
}

func New(engine Engine, history History, eg Egress, pending *PendingQuestions, selfTag string, allowedNumbers []string) *Router {
	allowed := make(map[string]bool, len(allowedNumbers))
	for _, n := range allowedNumbers {
		if n = strings.TrimSpace(n); n != "" {
			allowed[n] = true
		}
	}
	return &Router{
		engine:    engine,
		history:   history,
		egress:    eg,
		pending:   pending,
		selfTag:   selfTag,
		allowed:   allowed,
		processed: make(map[string]bool),
	}
}

// Pending exposes the question mailbox shared with long-running workers.
func (r *Router) Pending() *PendingQuestions { return r.pending }

// Handle routes one inbound event. Engine turns run on a background
// goroutine so the caller (HTTP handler) returns immediately.
func (r *Router) Handle(ctx context.Context, in Inbound) Outcome {
	if in.MessageID != "" && r.seen(in.MessageID) {
		slog.Debug("duplicate inbound dropped", "message_id", in.MessageID)
		return Outcome{Status: StatusIgnoredDup}
	}

	if strings.Contains(in.Body, r.selfTag) {
		slog.Debug("own echo dropped", "sender", in.Sender)
		return Outcome{Status: StatusIgnoredEcho}
	}

	if strings.TrimSpace(in.Body) == "" {
		return Outcome{Status: StatusIgnoredEmpty}
	}

	if in.Platform == "whatsapp" && len(r.allowed) > 0 && !r.allowed[in.Sender] {
		slog.Warn("unauthorized sender dropped", "sender", in.Sender, "platform", in.Platform)
		return Outcome{Status: StatusIgnoredUnauth}
	}

	if err := r.history.EnsureSession(ctx, in.Sender, ""); err != nil {
		slog.Error("ensure session failed", "session", in.Sender, "error", err)
	}

	if strings.TrimSpace(in.Body) == resetCommand {
		if err := r.history.ClearSession(ctx, in.Sender); err != nil {
			slog.Error("reset failed", "session", in.Sender, "error", err)
		}
		r.reply(in, "Session history cleared. Fresh start.")
		return Outcome{Status: StatusReset}
	}

	// A blocked worker waiting on a question has priority over a new
	// engine turn.
	if r.pending.Answer(in.Sender, in.Body) {
		slog.Info("pending question answered", "session", in.Sender)
		r.reply(in, "Got it, passing your answer along.")
		return Outcome{Status: StatusAnswerDelivered}
	}

	go r.runTurn(in)
	return Outcome{Status: StatusProcessing}
}

func (r *Router) runTurn(in Inbound) {
	ctx := context.Background()

	senderName := in.SenderName
	if senderName == "" {
		senderName = in.Sender
	}
	message := fmt.Sprintf("[%s (%s)]: %s", senderName, in.Sender, in.Body)

	typingCtx, stopTyping := context.WithCancel(ctx)
	go r.egress.KeepTyping(typingCtx, in.Sender, in.Platform, 4*time.Second)
	defer stopTyping()

	res, err := r.engine.Run(ctx, agent.RunRequest{
		SessionID: in.Sender,
		Platform:  in.Platform,
		Sender:    in.Sender,
		Message:   message,
	}, nil)
	stopTyping()
	if err != nil {
		slog.Error("engine turn failed", "session", in.Sender, "error", err)
		r.reply(in, "Something went wrong handling that message. Please try again.")
		return
	}
	if res.OutputSent {
		// A tool already pushed output (media, gif) to the user;
		// relaying the model's description would double-send.
		slog.Debug("reply suppressed, tool output already sent", "session", in.Sender)
		return
	}
	if strings.TrimSpace(res.Text) == "" {
		return
	}
	r.reply(in, res.Text)
}

// reply sends text to the sender, prefixed with the self tag so the
// bridge echo is dropped on the way back in.
func (r *Router) reply(in Inbound, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.egress.SendText(ctx, in.Sender, r.selfTag+" "+text, in.Platform); err != nil {
		slog.Error("reply delivery failed", "session", in.Sender, "error", err)
	}
}

// seen records a message ID, clearing the whole set at the cap.
func (r *Router) seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[id] {
		return true
	}
	if len(r.processed) >= processedCap {
		r.processed = make(map[string]bool)
	}
	r.processed[id] = true
	return false
}
