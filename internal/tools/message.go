package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sender delivers a message to a chat.
type Sender interface {
	Send(chatID string, text string) error
}

// MessageTool lets the agent talk to the user while it works.
type MessageTool struct {
	Sender Sender
	// DefaultChat is used when the run did not come from a chat.
	DefaultChat string
}

func NewMessageTool(sender Sender, defaultChat string) *MessageTool {
	return &MessageTool{Sender: sender, DefaultChat: defaultChat}
}

func (m *MessageTool) Name() string {
	return "send_message"
}

func (m *MessageTool) Description() string {
	return "Send a message to the user, e.g. to report progress, ask a question, or deliver a result."
}

func (m *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The text to send",
			},
		},
		"required": []string{"message"},
	}
}

func (m *MessageTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.Message == "" {
		return "", fmt.Errorf("message is required")
	}

	if m.Sender == nil {
		return args.Message, nil
	}
	chatID, ok := ChatIDFrom(ctx)
	if !ok {
		chatID = m.DefaultChat
	}
	if chatID == "" {
		return args.Message, nil
	}
	if err := m.Sender.Send(chatID, args.Message); err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return args.Message, nil
}
