package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeRun        EventType = "run"
	EventTypePlan       EventType = "plan"
	EventTypeRetry      EventType = "retry"
	EventTypeStep       EventType = "step"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypePolicy     EventType = "policy_check"
	EventTypeReport     EventType = "report"
	EventTypeCost       EventType = "cost"
	EventTypeHeartbeat  EventType = "heartbeat"
	EventTypeLLM        EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger writes one JSON line per event. llm events are also kept in a
// size-rotated file. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

type LoggerOption func(*Logger)

// WithOutput sends events to w instead of stdout.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) { l.out = w }
}

// WithLLMLog sets the llm transcript file; an empty path disables it.
func WithLLMLog(path string) LoggerOption {
	return func(l *Logger) { l.llmLogPath = path }
}

func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, "failed to marshal event: "+err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Keep a single .old generation.
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(runID string, phase string, plan any) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data:  map[string]any{"phase": phase, "plan": plan},
	})
}

func (l *Logger) LogRetry(runID string, attempt int, reason string) {
	l.Log(Event{
		Type:  EventTypeRetry,
		RunID: runID,
		Data:  map[string]any{"attempt": attempt, "reason": reason},
	})
}

func (l *Logger) LogStep(runID string, index int, title string) {
	l.Log(Event{
		Type:  EventTypeStep,
		RunID: runID,
		Data:  map[string]any{"index": index, "title": title},
	})
}

func (l *Logger) LogToolCall(runID, tool, args string) {
	l.Log(Event{
		Type:  EventTypeToolCall,
		RunID: runID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(runID, tool, result string, failed bool) {
	l.Log(Event{
		Type:  EventTypeToolResult,
		RunID: runID,
		Data: map[string]any{
			"tool":   tool,
			"result": result,
			"failed": failed,
		},
	})
}

func (l *Logger) LogPolicy(runID, tool, effect, reason string) {
	l.Log(Event{
		Type:  EventTypePolicy,
		RunID: runID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogReport(runID, chatID, report string) {
	l.Log(Event{
		Type:   EventTypeReport,
		RunID:  runID,
		ChatID: chatID,
		Data:   map[string]string{"report": report},
	})
}

func (l *Logger) LogRun(runID, chatID, status string, detail string) {
	l.Log(Event{
		Type:   EventTypeRun,
		RunID:  runID,
		ChatID: chatID,
		Data:   map[string]string{"status": status, "detail": detail},
	})
}

func (l *Logger) LogCost(runID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:  EventTypeCost,
		RunID: runID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(runID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
