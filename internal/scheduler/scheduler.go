// Package scheduler runs durable cron, interval, and webhook jobs.
// Each firing gets a fresh ephemeral session so context never
// accumulates across runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/liteclaw/internal/egress"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// Runner runs one engine turn to completion. Implemented by agent.Engine.
type Runner interface {
	RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error)
}

// Scheduler ticks persistent jobs and fires them through the engine.
type Scheduler struct {
	store   store.CronStore
	history store.HistoryStore
	runner  Runner
	egress  *egress.Client
	gron    *gronx.Gronx
	selfTag string

	// notifyTo receives job results; empty disables delivery.
	notifyTo       string
	notifyPlatform string

	mu       sync.Mutex
	nextRuns map[string]time.Time // interval job → next fire
}

// Config wires a Scheduler.
type Config struct {
	Store          store.CronStore
	History        store.HistoryStore
	Runner         Runner
	Egress         *egress.Client
	SelfTag        string
	NotifyTo       string // first allow-listed recipient, may be empty
	NotifyPlatform string // defaults to "whatsapp"
}

func New(cfg Config) *Scheduler {
	if cfg.NotifyPlatform == "" {
		cfg.NotifyPlatform = "whatsapp"
	}
	return &Scheduler{
		store:          cfg.Store,
		history:        cfg.History,
		runner:         cfg.Runner,
		egress:         cfg.Egress,
		gron:           gronx.New(),
		selfTag:        cfg.SelfTag,
		notifyTo:       cfg.NotifyTo,
		notifyPlatform: cfg.NotifyPlatform,
		nextRuns:       make(map[string]time.Time),
	}
}

// Create validates and persists a new job. Webhook jobs are stored but
// never ticked; they run only on explicit Trigger.
func (s *Scheduler) Create(ctx context.Context, name, scheduleType, scheduleValue, task string) (*store.CronJob, error) {
	switch scheduleType {
	case store.ScheduleCron:
		if !s.gron.IsValid(scheduleValue) {
			return nil, fmt.Errorf("invalid cron expression %q", scheduleValue)
		}
	case store.ScheduleInterval:
		secs, err := strconv.Atoi(strings.TrimSpace(scheduleValue))
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("interval must be a positive number of seconds, got %q", scheduleValue)
		}
	case store.ScheduleWebhook:
		// Opaque tag, nothing to validate.
	default:
		return nil, fmt.Errorf("unknown schedule type %q", scheduleType)
	}

	job := store.CronJob{
		ID:            uuid.NewString()[:8],
		Name:          name,
		ScheduleType:  scheduleType,
		ScheduleValue: scheduleValue,
		Task:          task,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	slog.Info("cron job created", "id", job.ID, "name", name, "type", scheduleType, "value", scheduleValue)
	return &job, nil
}

// List returns all persisted jobs.
func (s *Scheduler) List(ctx context.Context) ([]store.CronJob, error) {
	return s.store.ListJobs(ctx, false)
}

// Delete removes a job by ID.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.nextRuns, id)
	s.mu.Unlock()
	return s.store.DeleteJob(ctx, id)
}

// Trigger fires any job kind immediately, webhooks included.
func (s *Scheduler) Trigger(ctx context.Context, id string) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("cron job %s not found", id)
	}
	go s.fire(*job)
	return nil
}

// Start ticks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastMinute := time.Now().Truncate(time.Minute)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			jobs, err := s.store.ListJobs(ctx, true)
			if err != nil {
				slog.Error("scheduler job load failed", "error", err)
				continue
			}

			minute := now.Truncate(time.Minute)
			checkCron := !minute.Equal(lastMinute)
			if checkCron {
				lastMinute = minute
			}

			for _, job := range jobs {
				switch job.ScheduleType {
				case store.ScheduleCron:
					if !checkCron {
						continue
					}
					due, err := s.gron.IsDue(job.ScheduleValue, now)
					if err != nil {
						slog.Warn("cron expression check failed", "id", job.ID, "error", err)
						continue
					}
					if due {
						go s.fire(job)
					}
				case store.ScheduleInterval:
					if s.intervalDue(job, now) {
						go s.fire(job)
					}
				case store.ScheduleWebhook:
					// Stored only; fired by Trigger.
				}
			}
		}
	}
}

func (s *Scheduler) intervalDue(job store.CronJob, now time.Time) bool {
	secs, err := strconv.Atoi(strings.TrimSpace(job.ScheduleValue))
	if err != nil || secs <= 0 {
		return false
	}
	interval := time.Duration(secs) * time.Second

	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.nextRuns[job.ID]
	if !ok {
		s.nextRuns[job.ID] = now.Add(interval)
		return false
	}
	if now.Before(next) {
		return false
	}
	s.nextRuns[job.ID] = now.Add(interval)
	return true
}

// fire runs one job in a fresh ephemeral session and delivers the
// result to the configured recipient. Never panics the process.
func (s *Scheduler) fire(job store.CronJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sessionID := fmt.Sprintf("cron_%s_%s", job.ID, uuid.NewString()[:8])
	slog.Info("cron job firing", "id", job.ID, "name", job.Name, "session", sessionID)

	if err := s.history.EnsureSession(ctx, sessionID, ""); err != nil {
		slog.Error("cron session create failed", "id", job.ID, "error", err)
	}
	if err := s.store.TouchLastRun(ctx, job.ID, time.Now()); err != nil {
		slog.Warn("cron last_run update failed", "id", job.ID, "error", err)
	}

	text, err := s.runner.RunToCompletion(ctx, sessionID, s.notifyPlatform, job.Task)
	if err != nil {
		slog.Error("cron job run failed", "id", job.ID, "error", err)
		return
	}

	if s.notifyTo == "" || strings.TrimSpace(text) == "" {
		return
	}
	report := fmt.Sprintf("%s [%s] %s", s.selfTag, job.Name, text)
	if err := s.egress.SendText(ctx, s.notifyTo, report, s.notifyPlatform); err != nil {
		slog.Error("cron result delivery failed", "id", job.ID, "error", err)
	}
}
