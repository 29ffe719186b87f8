// Package store defines the persistence interfaces for conversation
// history and scheduled jobs. The sqlite subpackage implements them.
package store

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/providers"
)

// Session is a conversation thread. Sub-agent and cron sessions carry
// the parent session ID that spawned them.
type Session struct {
	ID        string    `json:"session_id"`
	ParentID  string    `json:"parent_session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CronJob is a persisted scheduled task.
type CronJob struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ScheduleType  string     `json:"schedule_type"`  // "cron", "interval", "webhook"
	ScheduleValue string     `json:"schedule_value"` // cron expr or interval seconds
	Task          string     `json:"task"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastRun       *time.Time `json:"last_run,omitempty"`
}

// Schedule types for CronJob.
const (
	ScheduleCron     = "cron"
	ScheduleInterval = "interval"
	ScheduleWebhook  = "webhook"
)

// HistoryStore persists sessions and their message history.
type HistoryStore interface {
	// EnsureSession creates the session row if it does not exist.
	EnsureSession(ctx context.Context, id, parentID string) error

	// AddMessage appends a message to a session's history. A message
	// identical to the most recent one in the session (same role,
	// content, tool_call_id and name) is silently dropped.
	AddMessage(ctx context.Context, sessionID string, msg providers.Message) error

	// Messages returns the most recent messages for a session in
	// chronological order. limit <= 0 means no limit.
	Messages(ctx context.Context, sessionID string, limit int) ([]providers.Message, error)

	// ClearSession deletes all messages for a session, keeping the
	// session row.
	ClearSession(ctx context.Context, sessionID string) error

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]Session, error)
}

// CronStore persists scheduled jobs.
type CronStore interface {
	CreateJob(ctx context.Context, job CronJob) error
	GetJob(ctx context.Context, id string) (*CronJob, error)
	ListJobs(ctx context.Context, activeOnly bool) ([]CronJob, error)
	SetActive(ctx context.Context, id string, active bool) error
	DeleteJob(ctx context.Context, id string) error
	TouchLastRun(ctx context.Context, id string, t time.Time) error
}
