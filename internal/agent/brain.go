package agent

import (
	"context"
	"log"

	"github.com/tmc/langchaingo/llms"
)

// DefaultHistoryTurns is how many earlier chat messages Think shows the planner.
const DefaultHistoryTurns = 6

// Brain answers one chat message. Gateways and the scheduler depend on it.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

// HistoryStore keeps the chat transcript that Think reads and extends.
type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// Think runs input as a fresh request for chatID and saves the exchange to
// the chat history. Earlier turns are loaded for planning context only.
func (r *Runner) Think(ctx context.Context, chatID string, input string) (string, error) {
	run := NewRunState(chatID, input)
	if r.History != nil {
		history, err := r.History.GetHistory(chatID, DefaultHistoryTurns)
		if err != nil {
			log.Printf("Warning: failed to load history for chat %s: %v", chatID, err)
		}
		run.History = history
	}

	report, err := r.Execute(ctx, run, r.RecursionLimit)
	if err != nil {
		return "", err
	}

	if r.History != nil {
		if err := r.History.AddMessage(chatID, "human", input); err != nil {
			log.Printf("Warning: failed to save message for chat %s: %v", chatID, err)
		}
		if err := r.History.AddMessage(chatID, "ai", report); err != nil {
			log.Printf("Warning: failed to save reply for chat %s: %v", chatID, err)
		}
	}
	return report, nil
}
