package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// CreateJob inserts a new scheduled job.
func (s *Store) CreateJob(ctx context.Context, job store.CronJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cron_jobs (id, name, schedule_type, schedule_value, task, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.ScheduleType, job.ScheduleValue, job.Task, job.IsActive)
	if err != nil {
		return fmt.Errorf("create cron job: %w", err)
	}
	return nil
}

// GetJob returns the job with the given ID, or nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*store.CronJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, schedule_type, schedule_value, task, is_active, created_at, last_run
		FROM cron_jobs WHERE id = ?`, id)
	job, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cron job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs, optionally only active ones.
func (s *Store) ListJobs(ctx context.Context, activeOnly bool) ([]store.CronJob, error) {
	query := `
		SELECT id, name, schedule_type, schedule_value, task, is_active, created_at, last_run
		FROM cron_jobs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	defer rows.Close()

	var out []store.CronJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan cron job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// SetActive toggles a job's active flag.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cron_jobs SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set cron job active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cron job %s not found", id)
	}
	return nil
}

// DeleteJob removes a job.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete cron job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cron job %s not found", id)
	}
	return nil
}

// TouchLastRun records the job's last firing time.
func (s *Store) TouchLastRun(ctx context.Context, id string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cron_jobs SET last_run = ? WHERE id = ?`, t, id)
	if err != nil {
		return fmt.Errorf("touch cron job: %w", err)
	}
	return nil
}

func scanJob(scan func(dest ...interface{}) error) (*store.CronJob, error) {
	var job store.CronJob
	var createdAt time.Time
	var lastRun sql.NullTime
	if err := scan(&job.ID, &job.Name, &job.ScheduleType, &job.ScheduleValue,
		&job.Task, &job.IsActive, &createdAt, &lastRun); err != nil {
		return nil, err
	}
	job.CreatedAt = createdAt
	if lastRun.Valid {
		t := lastRun.Time
		job.LastRun = &t
	}
	return &job, nil
}
