package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddMessage_OrderPreserved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess1", ""); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	msgs := []providers.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "user", Content: "how are you"},
	}
	for _, m := range msgs {
		if err := s.AddMessage(ctx, "sess1", m); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	got, err := s.Messages(ctx, "sess1", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i := range msgs {
		if got[i].Role != msgs[i].Role || got[i].Content != msgs[i].Content {
			t.Errorf("message %d = {%s %q}, want {%s %q}", i, got[i].Role, got[i].Content, msgs[i].Role, msgs[i].Content)
		}
	}
}

func TestAddMessage_AdjacentDuplicateDropped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnsureSession(ctx, "sess1", "")

	tests := []struct {
		name string
		a, b providers.Message
		want int // messages stored after both appends
	}{
		{
			name: "identical user messages collapse",
			a:    providers.Message{Role: "user", Content: "ping"},
			b:    providers.Message{Role: "user", Content: "ping"},
			want: 1,
		},
		{
			name: "different content both kept",
			a:    providers.Message{Role: "user", Content: "one"},
			b:    providers.Message{Role: "user", Content: "two"},
			want: 2,
		},
		{
			name: "same content different role both kept",
			a:    providers.Message{Role: "user", Content: "same"},
			b:    providers.Message{Role: "assistant", Content: "same"},
			want: 2,
		},
		{
			name: "same content different tool_call_id both kept",
			a:    providers.Message{Role: "tool", Content: "ok", ToolCallID: "call_1", Name: "shell"},
			b:    providers.Message{Role: "tool", Content: "ok", ToolCallID: "call_2", Name: "shell"},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := "dup_" + tt.name
			s.EnsureSession(ctx, session, "")
			if err := s.AddMessage(ctx, session, tt.a); err != nil {
				t.Fatalf("first AddMessage: %v", err)
			}
			if err := s.AddMessage(ctx, session, tt.b); err != nil {
				t.Fatalf("second AddMessage: %v", err)
			}
			got, err := s.Messages(ctx, session, 0)
			if err != nil {
				t.Fatalf("Messages: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("stored %d messages, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAddMessage_NonAdjacentDuplicateKept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnsureSession(ctx, "sess1", "")

	s.AddMessage(ctx, "sess1", providers.Message{Role: "user", Content: "ping"})
	s.AddMessage(ctx, "sess1", providers.Message{Role: "assistant", Content: "pong"})
	s.AddMessage(ctx, "sess1", providers.Message{Role: "user", Content: "ping"})

	got, _ := s.Messages(ctx, "sess1", 0)
	if len(got) != 3 {
		t.Fatalf("stored %d messages, want 3 (only adjacent duplicates drop)", len(got))
	}
}

func TestMessages_ToolCallsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnsureSession(ctx, "sess1", "")

	msg := providers.Message{
		Role: "assistant",
		ToolCalls: []providers.ToolCall{
			{ID: "call_1", Name: "execute_command", Arguments: map[string]interface{}{"command": "ls"}},
		},
	}
	if err := s.AddMessage(ctx, "sess1", msg); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	got, err := s.Messages(ctx, "sess1", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 1 || len(got[0].ToolCalls) != 1 {
		t.Fatalf("tool calls not rehydrated: %+v", got)
	}
	tc := got[0].ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "execute_command" {
		t.Errorf("tool call = %+v, want id call_1 name execute_command", tc)
	}
	if cmd, ok := tc.Arguments["command"].(string); !ok || cmd != "ls" {
		t.Errorf("arguments = %v, want command=ls", tc.Arguments)
	}
}

func TestMessages_LimitReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnsureSession(ctx, "sess1", "")

	for i := 0; i < 10; i++ {
		s.AddMessage(ctx, "sess1", providers.Message{Role: "user", Content: string(rune('a' + i))})
	}

	got, err := s.Messages(ctx, "sess1", 3)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	// Most recent three, still in chronological order.
	want := []string{"h", "i", "j"}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestClearSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnsureSession(ctx, "sess1", "")
	s.AddMessage(ctx, "sess1", providers.Message{Role: "user", Content: "hello"})

	if err := s.ClearSession(ctx, "sess1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	got, _ := s.Messages(ctx, "sess1", 0)
	if len(got) != 0 {
		t.Errorf("messages remain after clear: %d", len(got))
	}

	// Session row survives the wipe.
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	found := false
	for _, sess := range sessions {
		if sess.ID == "sess1" {
			found = true
		}
	}
	if !found {
		t.Error("session row deleted by ClearSession")
	}
}

func TestEnsureSession_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess1", ""); err != nil {
		t.Fatalf("first EnsureSession: %v", err)
	}
	if err := s.EnsureSession(ctx, "sess1", "parent"); err != nil {
		t.Fatalf("second EnsureSession: %v", err)
	}

	sessions, _ := s.ListSessions(ctx)
	count := 0
	for _, sess := range sessions {
		if sess.ID == "sess1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("session stored %d times, want 1", count)
	}
}

func TestCronStore_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := jobFixture("job1", "cron", "0 9 * * *")
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob(ctx, "job1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil || got.Name != job.Name || got.ScheduleValue != job.ScheduleValue {
		t.Fatalf("GetJob = %+v, want %+v", got, job)
	}
	if got.LastRun != nil {
		t.Errorf("new job has last_run set: %v", got.LastRun)
	}

	now := time.Now().Truncate(time.Second)
	if err := s.TouchLastRun(ctx, "job1", now); err != nil {
		t.Fatalf("TouchLastRun: %v", err)
	}
	got, _ = s.GetJob(ctx, "job1")
	if got.LastRun == nil || !got.LastRun.Equal(now) {
		t.Errorf("last_run = %v, want %v", got.LastRun, now)
	}

	if err := s.SetActive(ctx, "job1", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := s.ListJobs(ctx, true)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("inactive job listed as active: %+v", active)
	}
	all, _ := s.ListJobs(ctx, false)
	if len(all) != 1 {
		t.Errorf("ListJobs(false) = %d jobs, want 1", len(all))
	}

	if err := s.DeleteJob(ctx, "job1"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if got, _ := s.GetJob(ctx, "job1"); got != nil {
		t.Errorf("job survives delete: %+v", got)
	}
}

func TestCronStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if got, err := s.GetJob(ctx, "missing"); err != nil {
		t.Fatalf("GetJob on missing id: %v", err)
	} else if got != nil {
		t.Errorf("GetJob(missing) = %+v, want nil", got)
	}
	if err := s.DeleteJob(ctx, "missing"); err == nil {
		t.Error("DeleteJob(missing) succeeded, want error")
	}
	if err := s.SetActive(ctx, "missing", true); err == nil {
		t.Error("SetActive(missing) succeeded, want error")
	}
}

func jobFixture(id, schedType, schedValue string) store.CronJob {
	return store.CronJob{
		ID:            id,
		Name:          "morning briefing",
		ScheduleType:  schedType,
		ScheduleValue: schedValue,
		Task:          "summarize my calendar",
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
}
