package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// ObservationLog is the append-only working memory of a run. Every model call
// after planning sees the whole log.
type ObservationLog struct {
	entries []llms.MessageContent
	onAdd   func(seq int, msg llms.MessageContent)
}

// Append adds entries to the end of the log.
func (o *ObservationLog) Append(msgs ...llms.MessageContent) {
	for _, m := range msgs {
		o.entries = append(o.entries, m)
		if o.onAdd != nil {
			o.onAdd(len(o.entries)-1, m)
		}
	}
}

// Messages returns a copy of the log suitable for building a request.
func (o *ObservationLog) Messages() []llms.MessageContent {
	return append([]llms.MessageContent(nil), o.entries...)
}

// Len returns the number of entries.
func (o *ObservationLog) Len() int {
	return len(o.entries)
}

// RunState is everything one run owns. It is never shared between runs.
type RunState struct {
	ID           string
	ChatID       string
	UserMessage  string
	Plan         *Plan
	Observations *ObservationLog
	FinalReport  string

	// Reported is set with FinalReport and ends the run for good.
	Reported bool

	// History holds earlier chat turns shown to the planner when the run is
	// created. It is context only and never enters the observation log.
	History []llms.MessageContent
}

// NewRunState starts a run with no plan and an empty log.
func NewRunState(chatID, userMessage string) *RunState {
	return &RunState{
		ID:           uuid.New().String(),
		ChatID:       chatID,
		UserMessage:  userMessage,
		Observations: &ObservationLog{},
	}
}

func humanMessage(text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

func systemMessage(text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

func aiMessage(text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

// MessageText joins the text parts of a message.
func MessageText(m llms.MessageContent) string {
	var out string
	for _, p := range m.Parts {
		switch v := p.(type) {
		case llms.TextContent:
			out += v.Text
		case llms.ToolCallResponse:
			out += v.Content
		}
	}
	return out
}

// textTranscript renders tool call records and tool results as plain text.
// Calls that send the log without offering tools need it: providers reject
// tool records in a request that defines no tools, and some accept text only.
func textTranscript(msgs []llms.MessageContent) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		var b strings.Builder
		converted := false
		for _, p := range m.Parts {
			switch v := p.(type) {
			case llms.TextContent:
				b.WriteString(v.Text)
			case llms.ToolCall:
				converted = true
				b.WriteString(inlineToolCall(callName(v), callArgs(v)))
			case llms.ToolCallResponse:
				converted = true
				b.WriteString("tool_result: " + v.Content)
			}
		}
		if !converted {
			out = append(out, m)
			continue
		}
		role := m.Role
		if role == llms.ChatMessageTypeTool {
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.MessageContent{Role: role, Parts: []llms.ContentPart{llms.TextPart(b.String())}})
	}
	return out
}

// inlineToolCall writes a call in the <tool_call> block format.
func inlineToolCall(name, args string) string {
	if !json.Valid([]byte(args)) {
		quoted, _ := json.Marshal(args)
		args = string(quoted)
	}
	return fmt.Sprintf("%s{\"name\": %q, \"args\": %s}%s", toolCallOpen, name, args, toolCallClose)
}
