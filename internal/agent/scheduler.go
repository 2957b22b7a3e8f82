package agent

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultPollInterval is how often the scheduler looks for due tasks.
const DefaultPollInterval = 30 * time.Second

type Messenger interface {
	Send(chatID string, text string) error
}

// Task is a stored request the scheduler runs when it falls due.
// An IntervalSeconds of zero means the task runs once.
type Task struct {
	ID              int
	ChatID          string
	Description     string
	IntervalSeconds int
	LastRun         time.Time
}

type TaskStore interface {
	GetPendingTasks() ([]Task, error)
	UpdateTaskLastRun(id int) error
	DeleteTask(chatID string, taskID int) error
}

type Scheduler struct {
	Brain    Brain
	Store    TaskStore
	Gateway  Messenger
	Interval time.Duration
}

func NewScheduler(brain Brain, store TaskStore, gateway Messenger) *Scheduler {
	return &Scheduler{
		Brain:    brain,
		Store:    store,
		Gateway:  gateway,
		Interval: DefaultPollInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Task scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs every due task once. Each task is a separate run. A failed run
// still counts as the task's run: the chat is told, last_run moves on and a
// one-shot task is removed, so a broken task is not retried on every poll.
func (s *Scheduler) Poll(ctx context.Context) {
	tasks, err := s.Store.GetPendingTasks()
	if err != nil {
		log.Printf("Error polling tasks: %v", err)
		return
	}

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Executing scheduled task %d for chat %s: %s", t.ID, t.ChatID, t.Description)

		response, err := s.Brain.Think(ctx, t.ChatID, scheduledRequest(t.Description))
		if err != nil && ctx.Err() != nil {
			// Shutting down; the task stays due for the next start.
			return
		}
		message := "⏰ *Scheduled Task Output*\n\n" + response
		if err != nil {
			log.Printf("Error executing scheduled task %d: %v", t.ID, err)
			message = fmt.Sprintf("⚠️ *Scheduled Task Failed*\n\n%s\n\n%v", t.Description, err)
		}

		if err := s.Store.UpdateTaskLastRun(t.ID); err != nil {
			log.Printf("Error updating last run for task %d: %v", t.ID, err)
		}

		if t.IntervalSeconds == 0 {
			if err := s.Store.DeleteTask(t.ChatID, t.ID); err != nil {
				log.Printf("Error deleting one-time task %d: %v", t.ID, err)
			}
		}

		if s.Gateway != nil {
			if err := s.Gateway.Send(t.ChatID, message); err != nil {
				log.Printf("Error delivering task %d output: %v", t.ID, err)
			}
		}
	}
}

func scheduledRequest(desc string) string {
	return fmt.Sprintf("%s\n\n(This request was scheduled earlier. Carry it out now and do not schedule it again.)", desc)
}
