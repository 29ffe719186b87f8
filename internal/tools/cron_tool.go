package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/liteclaw/internal/scheduler"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// CronTool lets the model manage its own scheduled jobs.
type CronTool struct {
	scheduler *scheduler.Scheduler
}

func NewCronTool(s *scheduler.Scheduler) *CronTool {
	return &CronTool{scheduler: s}
}

func (t *CronTool) Name() string { return "manage_cron_job" }
func (t *CronTool) Description() string {
	return "Create, list, delete or trigger scheduled jobs. Schedule types: cron (5-field expression), interval (seconds), webhook (runs only when its webhook is hit)."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"create", "list", "delete", "trigger"},
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Human-readable job name (for create)",
			},
			"schedule_type": map[string]interface{}{
				"type": "string",
				"enum": []string{store.ScheduleCron, store.ScheduleInterval, store.ScheduleWebhook},
			},
			"schedule_value": map[string]interface{}{
				"type":        "string",
				"description": "Cron expression, interval seconds, or webhook tag",
			},
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The prompt to run when the job fires (for create)",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Job id (for delete and trigger)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	switch action {
	case "create":
		name, _ := args["name"].(string)
		schedType, _ := args["schedule_type"].(string)
		schedValue, _ := args["schedule_value"].(string)
		task, _ := args["task"].(string)
		if name == "" || schedType == "" || schedValue == "" || task == "" {
			return ErrorResult("create needs name, schedule_type, schedule_value and task")
		}
		job, err := t.scheduler.Create(ctx, name, schedType, schedValue, task)
		if err != nil {
			return ErrorResult(fmt.Sprintf("create job: %v", err))
		}
		return SilentResult(fmt.Sprintf("Job %q created with id %s (%s: %s).", job.Name, job.ID, job.ScheduleType, job.ScheduleValue))

	case "list":
		jobs, err := t.scheduler.List(ctx)
		if err != nil {
			return ErrorResult(fmt.Sprintf("list jobs: %v", err))
		}
		if len(jobs) == 0 {
			return SilentResult("No scheduled jobs.")
		}
		var sb strings.Builder
		sb.WriteString("Scheduled jobs:\n")
		for _, j := range jobs {
			state := "active"
			if !j.IsActive {
				state = "inactive"
			}
			fmt.Fprintf(&sb, "- %s [%s] %s (%s: %s) %s\n", j.ID, state, j.Name, j.ScheduleType, j.ScheduleValue, lastRunText(j))
		}
		return SilentResult(strings.TrimRight(sb.String(), "\n"))

	case "delete":
		id, _ := args["job_id"].(string)
		if id == "" {
			return ErrorResult("job_id is required to delete")
		}
		if err := t.scheduler.Delete(ctx, id); err != nil {
			return ErrorResult(fmt.Sprintf("delete job: %v", err))
		}
		return SilentResult(fmt.Sprintf("Job %s deleted.", id))

	case "trigger":
		id, _ := args["job_id"].(string)
		if id == "" {
			return ErrorResult("job_id is required to trigger")
		}
		if err := t.scheduler.Trigger(ctx, id); err != nil {
			return ErrorResult(fmt.Sprintf("trigger job: %v", err))
		}
		return SilentResult(fmt.Sprintf("Job %s triggered.", id))

	default:
		return ErrorResult(fmt.Sprintf("unknown action %q", action))
	}
}

func lastRunText(j store.CronJob) string {
	if j.LastRun == nil {
		return "never run"
	}
	return "last run " + j.LastRun.Format("2006-01-02 15:04")
}
