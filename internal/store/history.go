package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrRunNotFound is returned by GetRun for an unknown id.
	ErrRunNotFound = errors.New("run not found")
	// ErrTaskNotFound is returned by DeleteTask when the chat has no such task.
	ErrTaskNotFound = errors.New("task not found")
)

const timeLayout = "2006-01-02 15:04:05"

// HistoryStore is the sqlite backed store for runs, their observations,
// gateway chat history and scheduled tasks.
type HistoryStore struct {
	DB *sql.DB
}

// Run is the stored summary of one agent run.
type Run struct {
	ID          string
	ChatID      string
	UserMessage string
	Plan        *agent.Plan
	FinalReport string
	Status      string
	Detail      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Observation is one stored entry of a run's observation log.
type Observation struct {
	Seq       int
	Role      llms.ChatMessageType
	Text      string
	ToolCalls []StoredToolCall
}

// StoredToolCall is a tool call or tool result as kept in the observations
// table. Result is empty for calls.
type StoredToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
}

type storedMessage struct {
	Text      string           `json:"text,omitempty"`
	ToolCalls []StoredToolCall `json:"tool_calls,omitempty"`
}

func encodeMessage(msg llms.MessageContent) (string, error) {
	var sm storedMessage
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case llms.TextContent:
			sm.Text += v.Text
		case llms.ToolCall:
			tc := StoredToolCall{ID: v.ID}
			if v.FunctionCall != nil {
				tc.Name, tc.Arguments = v.FunctionCall.Name, v.FunctionCall.Arguments
			}
			sm.ToolCalls = append(sm.ToolCalls, tc)
		case llms.ToolCallResponse:
			sm.ToolCalls = append(sm.ToolCalls, StoredToolCall{ID: v.ToolCallID, Name: v.Name, Result: v.Content})
		}
	}
	b, err := json.Marshal(sm)
	return string(b), err
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; runs record concurrently.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			task_description TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			chat_id TEXT,
			user_message TEXT,
			plan TEXT,
			final_report TEXT,
			status TEXT DEFAULT 'running',
			detail TEXT,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS observations (
			run_id TEXT,
			seq INTEGER,
			role TEXT,
			content TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

// Chat history

func (h *HistoryStore) AddMessage(chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	_, err := h.DB.Exec(query, chatID, role, content)
	return err
}

// GetHistory returns the last limit messages of a chat, oldest first.
func (h *HistoryStore) GetHistory(chatID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		history = append(history, llms.MessageContent{
			Role:  chatRole(role),
			Parts: []llms.ContentPart{llms.TextPart(content)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case "ai":
		return llms.ChatMessageTypeAI
	case "system":
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

// Runs

func (h *HistoryStore) StartRun(runID, chatID, userMessage string) error {
	_, err := h.DB.Exec(`INSERT INTO runs (id, chat_id, user_message) VALUES (?, ?, ?)`, runID, chatID, userMessage)
	return err
}

func (h *HistoryStore) SavePlan(runID string, plan *agent.Plan) error {
	_, err := h.DB.Exec(`UPDATE runs SET plan = ? WHERE id = ?`, plan.JSON(), runID)
	return err
}

// SaveObservation stores the message parts as JSON so tool calls and tool
// results survive alongside plain text.
func (h *HistoryStore) SaveObservation(runID string, seq int, msg llms.MessageContent) error {
	content, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = h.DB.Exec(`INSERT INTO observations (run_id, seq, role, content) VALUES (?, ?, ?, ?)`,
		runID, seq, string(msg.Role), content)
	return err
}

func (h *HistoryStore) FinishRun(runID, status, detail string) error {
	report := ""
	if status == "completed" {
		report = detail
	}
	_, err := h.DB.Exec(`UPDATE runs SET status = ?, detail = ?, final_report = ?, finished_at = datetime('now') WHERE id = ?`,
		status, detail, report, runID)
	return err
}

func (h *HistoryStore) GetRun(runID string) (*Run, error) {
	row := h.DB.QueryRow(`SELECT id, chat_id, user_message, plan, final_report, status, detail, started_at, finished_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. An empty chatID
// lists runs from every chat.
func (h *HistoryStore) ListRuns(chatID string, limit int) ([]Run, error) {
	query := `SELECT id, chat_id, user_message, plan, final_report, status, detail, started_at, finished_at FROM runs`
	args := []any{}
	if chatID != "" {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (h *HistoryStore) Observations(runID string) ([]Observation, error) {
	rows, err := h.DB.Query(`SELECT seq, role, content FROM observations WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		var role, content string
		if err := rows.Scan(&o.Seq, &role, &content); err != nil {
			return nil, err
		}
		var sm storedMessage
		if err := json.Unmarshal([]byte(content), &sm); err != nil {
			return nil, fmt.Errorf("decode observation %d of run %s: %w", o.Seq, runID, err)
		}
		o.Role = llms.ChatMessageType(role)
		o.Text, o.ToolCalls = sm.Text, sm.ToolCalls
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var plan, report, detail, started, done sql.NullString
	if err := s.Scan(&r.ID, &r.ChatID, &r.UserMessage, &plan, &report, &r.Status, &detail, &started, &done); err != nil {
		return nil, err
	}
	r.FinalReport = report.String
	r.Detail = detail.String
	r.StartedAt = parseTime(started.String)
	r.FinishedAt = parseTime(done.String)
	if plan.Valid && plan.String != "" {
		var p agent.Plan
		if err := json.Unmarshal([]byte(plan.String), &p); err != nil {
			return nil, fmt.Errorf("decode plan of run %s: %w", r.ID, err)
		}
		r.Plan = &p
	}
	return &r, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Tasks

func (h *HistoryStore) AddTask(chatID string, description string, intervalSeconds int) error {
	query := `INSERT INTO tasks (chat_id, task_description, interval_seconds, last_run) VALUES (?, ?, ?, datetime('now', '-365 days'))`
	_, err := h.DB.Exec(query, chatID, description, intervalSeconds)
	return err
}

// GetPendingTasks returns active tasks whose interval has elapsed since their
// last run. One-shot tasks are due immediately.
func (h *HistoryStore) GetPendingTasks() ([]agent.Task, error) {
	return h.queryTasks(`
		SELECT id, chat_id, task_description, interval_seconds, last_run
		FROM tasks
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)
		ORDER BY id`)
}

// ListTasks returns a chat's active tasks for the schedule_task tool.
func (h *HistoryStore) ListTasks(chatID string) ([]tools.ScheduledTask, error) {
	tasks, err := h.queryTasks(`
		SELECT id, chat_id, task_description, interval_seconds, last_run
		FROM tasks
		WHERE chat_id = ? AND status = 'active'
		ORDER BY id`, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]tools.ScheduledTask, len(tasks))
	for i, t := range tasks {
		out[i] = tools.ScheduledTask{ID: t.ID, Description: t.Description, IntervalSeconds: t.IntervalSeconds, LastRun: t.LastRun}
	}
	return out, nil
}

func (h *HistoryStore) queryTasks(query string, args ...any) ([]agent.Task, error) {
	rows, err := h.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []agent.Task
	for rows.Next() {
		var t agent.Task
		var lastRun sql.NullString
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Description, &t.IntervalSeconds, &lastRun); err != nil {
			return nil, err
		}
		t.LastRun = parseTime(lastRun.String)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (h *HistoryStore) UpdateTaskLastRun(id int) error {
	query := `UPDATE tasks SET last_run = datetime('now') WHERE id = ?`
	_, err := h.DB.Exec(query, id)
	return err
}

func (h *HistoryStore) DeleteTask(chatID string, taskID int) error {
	res, err := h.DB.Exec(`DELETE FROM tasks WHERE chat_id = ? AND id = ?`, chatID, taskID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
	}
	return nil
}

func (h *HistoryStore) ClearTasks(chatID string) error {
	query := `DELETE FROM tasks WHERE chat_id = ?`
	_, err := h.DB.Exec(query, chatID)
	return err
}
