package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const minScheduleInterval = 60

// ScheduledTask is a stored request as shown to the model.
type ScheduledTask struct {
	ID              int
	Description     string
	IntervalSeconds int
	LastRun         time.Time
}

type CronStore interface {
	AddTask(chatID string, description string, intervalSeconds int) error
	ListTasks(chatID string) ([]ScheduledTask, error)
	DeleteTask(chatID string, taskID int) error
	ClearTasks(chatID string) error
}

// CronTool stores requests that the scheduler later runs as fresh agent runs.
type CronTool struct {
	Store CronStore
}

func NewCronTool(store CronStore) *CronTool {
	return &CronTool{Store: store}
}

func (c *CronTool) Name() string {
	return "schedule_task"
}

func (c *CronTool) Description() string {
	return "Schedule a request to be run later (once or repeatedly), list or delete this chat's scheduled requests, or clear all of them."
}

func (c *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"schedule", "list", "delete", "clear"},
				"description": "'schedule' a new request, 'list' them, 'delete' one by id, or 'clear' all of them",
			},
			"task_id": map[string]any{
				"type":        "integer",
				"description": "Id of the request to remove (only for 'delete')",
			},
			"task_description": map[string]any{
				"type":        "string",
				"description": "The request to run (only for 'schedule')",
			},
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "Repeat interval in seconds, minimum 60; 0 runs it once (only for 'schedule')",
			},
		},
		"required": []string{"action"},
	}
}

func (c *CronTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action   string `json:"action"`
		Desc     string `json:"task_description"`
		Interval int    `json:"interval_seconds"`
		ID       int    `json:"task_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	chatID, ok := ChatIDFrom(ctx)
	if !ok {
		return "", fmt.Errorf("scheduling needs a chat; this run has none")
	}

	switch args.Action {
	case "clear":
		if err := c.Store.ClearTasks(chatID); err != nil {
			return "", fmt.Errorf("failed to clear tasks: %v", err)
		}
		return "Cleared all scheduled tasks for this chat.", nil

	case "list":
		tasks, err := c.Store.ListTasks(chatID)
		if err != nil {
			return "", fmt.Errorf("failed to list tasks: %v", err)
		}
		return formatTasks(tasks), nil

	case "delete":
		if args.ID <= 0 {
			return "", fmt.Errorf("task_id is required")
		}
		if err := c.Store.DeleteTask(chatID, args.ID); err != nil {
			return "", fmt.Errorf("failed to delete task %d: %v", args.ID, err)
		}
		return fmt.Sprintf("Deleted scheduled task %d.", args.ID), nil

	case "schedule":
		if args.Desc == "" {
			return "", fmt.Errorf("task_description is required")
		}
		if args.Interval != 0 && args.Interval < minScheduleInterval {
			return "", fmt.Errorf("minimum interval is %d seconds", minScheduleInterval)
		}
		if err := c.Store.AddTask(chatID, args.Desc, args.Interval); err != nil {
			return "", fmt.Errorf("failed to schedule task: %v", err)
		}
		if args.Interval == 0 {
			return fmt.Sprintf("Scheduled one-time task: '%s'.", args.Desc), nil
		}
		return fmt.Sprintf("Scheduled task: '%s' every %d seconds.", args.Desc, args.Interval), nil

	default:
		return "", fmt.Errorf("invalid action %q, use 'schedule', 'list', 'delete' or 'clear'", args.Action)
	}
}

func formatTasks(tasks []ScheduledTask) string {
	if len(tasks) == 0 {
		return "No scheduled tasks for this chat."
	}
	var sb strings.Builder
	for _, t := range tasks {
		every := "once"
		if t.IntervalSeconds > 0 {
			every = fmt.Sprintf("every %ds", t.IntervalSeconds)
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", t.ID, t.Description, every)
	}
	return strings.TrimRight(sb.String(), "\n")
}
