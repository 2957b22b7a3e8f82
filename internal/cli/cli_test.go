package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/governance"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/rahul/stepwise/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel returns its choices in order.
type scriptedModel struct {
	mu      sync.Mutex
	choices []llms.ContentChoice
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.choices) == 0 {
		return nil, errors.New("script exhausted")
	}
	c := m.choices[0]
	m.choices = m.choices[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{&c}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func planChoice(status agent.StepStatus) llms.ContentChoice {
	p := &agent.Plan{
		Goal:  "create test.py",
		Steps: []agent.Step{{Title: "Write file", Description: "create test.py", Status: status}},
	}
	return llms.ContentChoice{Content: p.JSON()}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"app": map[string]any{
			"workspace": filepath.Join(dir, "workspace"),
			"llm_log":   "",
		},
		"agent":  map[string]any{"prompts_dir": filepath.Join(dir, "prompts")},
		"memory": map[string]any{"type": "sqlite", "path": filepath.Join(dir, "stepwise.db")},
		"policy": map[string]any{"denied_tools": []string{"shell_exec"}},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestAppRunsAndRecords(t *testing.T) {
	a, err := loadApp(writeConfig(t), observability.WithOutput(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	model := &scriptedModel{choices: []llms.ContentChoice{
		planChoice(agent.StatusPending),
		{ToolCalls: []llms.ToolCall{{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "create_file", Arguments: `{"file_name":"test.py","file_contents":"print('hi')"}`},
		}}},
		{Content: "Created test.py."},
		planChoice(agent.StatusCompleted),
		{Content: "test.py now prints hi."},
	}}

	runner := a.runner(model)
	var progress bytes.Buffer
	runner.OnEvent = printEvent(&progress)

	run := agent.NewRunState("cli", "create test.py")
	report, err := runner.Execute(context.Background(), run, 0)
	require.NoError(t, err)
	assert.Equal(t, "test.py now prints hi.", report)

	data, err := os.ReadFile(filepath.Join(a.cfg.App.Workspace, "test.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))

	assert.Contains(t, progress.String(), "[step 1] -> create_file")
	assert.Contains(t, progress.String(), "[step 1] done: Created test.py.")

	stored, err := a.store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, report, stored.FinalReport)
	require.NotNil(t, stored.Plan)
	assert.Equal(t, 1, stored.Plan.Completed())

	obs, err := a.store.Observations(run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, obs)

	var out bytes.Buffer
	printRun(&out, stored, obs)
	assert.Contains(t, out.String(), "[x] 1. Write file")
	assert.Contains(t, out.String(), "-> create_file")
	assert.Contains(t, out.String(), "Report:\ntest.py now prints hi.")
}

func TestAppToolListMarksDenied(t *testing.T) {
	a, err := loadApp(writeConfig(t), observability.WithOutput(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.registry.Lookup("shell_exec")
	require.NoError(t, err)

	res, err := a.policy.Evaluate(context.Background(), governance.Request{Tool: "shell_exec"})
	require.NoError(t, err)
	assert.Equal(t, governance.EffectDeny, res.Effect)

	res, err = a.policy.Evaluate(context.Background(), governance.Request{Tool: "create_file"})
	require.NoError(t, err)
	assert.NotEqual(t, governance.EffectDeny, res.Effect)
}

func TestPrintRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	runs := []store.Run{
		{
			ID: "r1", Status: "completed", StartedAt: started, UserMessage: "summarise\nthe   news",
			Plan: &agent.Plan{Steps: []agent.Step{{Status: agent.StatusCompleted}, {Status: agent.StatusPending}}},
		},
		{ID: "r2", Status: "failed", StartedAt: started, UserMessage: "x"},
	}

	var out bytes.Buffer
	printRuns(&out, runs)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "2026-03-01 09:30:00")
	assert.Contains(t, lines[1], "1/2")
	assert.Contains(t, lines[1], "summarise the news")
	assert.Contains(t, lines[2], "-")
}

func TestPrintRunFailure(t *testing.T) {
	var out bytes.Buffer
	printRun(&out, &store.Run{ID: "r", Status: "failed", UserMessage: "x", Detail: "recursion limit reached"}, nil)
	assert.Contains(t, out.String(), "Observations (0):")
	assert.Contains(t, out.String(), "Detail: recursion limit reached")
	assert.NotContains(t, out.String(), "Goal:")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc", 10))
	assert.Equal(t, "héll...", oneLine("héllo world", 4))
}
