package pending

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAskThenAnswer(t *testing.T) {
	p := NewPendingQuestions()

	got := make(chan string, 1)
	go func() {
		ans, err := p.Ask(context.Background(), "s1", "continue?", time.Second)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- ans
	}()

	waitForPending(t, p, "s1")

	if !p.Answer("s1", "yes") {
		t.Fatal("Answer reported no pending question")
	}
	select {
	case ans := <-got:
		if ans != "yes" {
			t.Errorf("answer = %q", ans)
		}
	case <-time.After(time.Second):
		t.Fatal("asker never unblocked")
	}
}

func TestAskTimesOut(t *testing.T) {
	p := NewPendingQuestions()

	_, err := p.Ask(context.Background(), "s1", "anyone?", 20*time.Millisecond)
	if !errors.Is(err, ErrAnswerTimeout) {
		t.Errorf("err = %v, want ErrAnswerTimeout", err)
	}

	// The slot is cleaned up after timeout.
	if _, ok := p.Pending("s1"); ok {
		t.Error("question still pending after timeout")
	}
}

func TestAskHonorsContextCancel(t *testing.T) {
	p := NewPendingQuestions()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Ask(ctx, "s1", "waiting", time.Minute)
		done <- err
	}()
	waitForPending(t, p, "s1")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("asker not released on cancel")
	}
}

func TestAnswerWithoutQuestion(t *testing.T) {
	p := NewPendingQuestions()
	if p.Answer("s1", "unsolicited") {
		t.Error("Answer reported delivery with no pending question")
	}
}

func TestNewQuestionReplacesOld(t *testing.T) {
	p := NewPendingQuestions()

	first := make(chan error, 1)
	go func() {
		_, err := p.Ask(context.Background(), "s1", "old question", 200*time.Millisecond)
		first <- err
	}()
	waitForPending(t, p, "s1")

	second := make(chan string, 1)
	go func() {
		ans, _ := p.Ask(context.Background(), "s1", "new question", time.Second)
		second <- ans
	}()

	deadline := time.After(time.Second)
	for {
		if q, ok := p.Pending("s1"); ok && q == "new question" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("new question never took the slot")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The answer goes to the newer asker; the old one times out alone.
	p.Answer("s1", "for the new one")

	select {
	case ans := <-second:
		if ans != "for the new one" {
			t.Errorf("new asker got %q", ans)
		}
	case <-time.After(time.Second):
		t.Fatal("new asker never unblocked")
	}

	select {
	case err := <-first:
		if !errors.Is(err, ErrAnswerTimeout) {
			t.Errorf("old asker err = %v, want timeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("old asker never timed out")
	}
}

func TestQuestionsAreScopedPerSession(t *testing.T) {
	p := NewPendingQuestions()

	go p.Ask(context.Background(), "s1", "q1", time.Second)
	waitForPending(t, p, "s1")

	if p.Answer("s2", "wrong session") {
		t.Error("answer for another session delivered")
	}
	if _, ok := p.Pending("s1"); !ok {
		t.Error("s1 question lost")
	}
}

func waitForPending(t *testing.T, p *PendingQuestions, sessionID string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if _, ok := p.Pending(sessionID); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("question never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
