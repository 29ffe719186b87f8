package pending

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAnswerTimeout is returned when no answer arrives in time.
var ErrAnswerTimeout = errors.New("user did not respond in time")

// DefaultAskTimeout bounds how long a worker waits for an answer.
const DefaultAskTimeout = 300 * time.Second

// PendingQuestions is a single-slot mailbox per session. A worker asks
// a question and blocks; the router delivers the user's next inbound
// message as the answer. Asking again replaces an unanswered question.
type PendingQuestions struct {
	mu    sync.Mutex
	slots map[string]*questionSlot
}

type questionSlot struct {
	question string
	answerCh chan string
}

func NewPendingQuestions() *PendingQuestions {
	return &PendingQuestions{slots: make(map[string]*questionSlot)}
}

// Ask registers a question for a session and blocks until the answer
// arrives, the timeout elapses, or the context is cancelled.
func (p *PendingQuestions) Ask(ctx context.Context, sessionID, question string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}

	slot := &questionSlot{question: question, answerCh: make(chan string, 1)}
	p.mu.Lock()
	// A newer question supersedes an unanswered one; the old asker
	// times out on its own.
	p.slots[sessionID] = slot
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.slots[sessionID] == slot {
			delete(p.slots, sessionID)
		}
		p.mu.Unlock()
	}()

	select {
	case answer := <-slot.answerCh:
		return answer, nil
	case <-time.After(timeout):
		return "", ErrAnswerTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pending returns the open question for a session, if any.
func (p *PendingQuestions) Pending(sessionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.slots[sessionID]
	if !ok {
		return "", false
	}
	return slot.question, true
}

// Answer delivers the user's reply to the waiting asker. Reports false
// when no question was pending.
func (p *PendingQuestions) Answer(sessionID, answer string) bool {
	p.mu.Lock()
	slot, ok := p.slots[sessionID]
	if ok {
		delete(p.slots, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	slot.answerCh <- answer
	return true
}
