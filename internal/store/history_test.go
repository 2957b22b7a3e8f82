package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartRun("run-1", "cli", "create test.py"))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)
	assert.Nil(t, run.Plan)
	assert.False(t, run.StartedAt.IsZero())
	assert.True(t, run.FinishedAt.IsZero())

	plan := &agent.Plan{
		Goal: "create test.py",
		Steps: []agent.Step{
			{Title: "Write", Description: "write the file", Status: agent.StatusCompleted},
			{Title: "Check", Description: "read it back", Status: agent.StatusPending},
		},
	}
	require.NoError(t, s.SavePlan("run-1", plan))
	require.NoError(t, s.FinishRun("run-1", "completed", "done"))

	run, err = s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "done", run.FinalReport)
	assert.False(t, run.FinishedAt.IsZero())
	require.NotNil(t, run.Plan)
	assert.Equal(t, plan.Steps, run.Plan.Steps)
}

func TestFailedRunHasNoReport(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.StartRun("run-1", "cli", "x"))
	require.NoError(t, s.FinishRun("run-1", "failed", "recursion limit reached"))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	assert.Empty(t, run.FinalReport)
	assert.Equal(t, "recursion limit reached", run.Detail)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.StartRun("a", "telegram:1", "first"))
	require.NoError(t, s.StartRun("b", "discord:2", "second"))
	require.NoError(t, s.StartRun("c", "telegram:1", "third"))

	all, err := s.ListRuns("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	chat, err := s.ListRuns("telegram:1", 10)
	require.NoError(t, err)
	require.Len(t, chat, 2)
	assert.Equal(t, []string{"c", "a"}, []string{chat[0].ID, chat[1].ID})

	limited, err := s.ListRuns("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestObservations(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.StartRun("run-1", "cli", "x"))

	call := llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "create_file", Arguments: `{"path":"test.py"}`},
	}
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "Step 1: Write"),
		{Role: llms.ChatMessageTypeAI, Parts: []llms.ContentPart{llms.TextPart("calling"), call}},
		{Role: llms.ChatMessageTypeTool, Parts: []llms.ContentPart{llms.ToolCallResponse{
			ToolCallID: "call_1", Name: "create_file", Content: "created test.py",
		}}},
	}
	for i, m := range msgs {
		require.NoError(t, s.SaveObservation("run-1", i, m))
	}

	obs, err := s.Observations("run-1")
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, llms.ChatMessageTypeHuman, obs[0].Role)
	assert.Equal(t, "Step 1: Write", obs[0].Text)
	assert.Empty(t, obs[0].ToolCalls)

	assert.Equal(t, "calling", obs[1].Text)
	assert.Equal(t, []StoredToolCall{{ID: "call_1", Name: "create_file", Arguments: `{"path":"test.py"}`}}, obs[1].ToolCalls)

	assert.Equal(t, llms.ChatMessageTypeTool, obs[2].Role)
	assert.Equal(t, "created test.py", obs[2].ToolCalls[0].Result)

	assert.Error(t, s.SaveObservation("run-1", 0, msgs[0]), "sequence numbers are unique per run")
}

func TestHistoryOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddMessage("c", "human", "one"))
	require.NoError(t, s.AddMessage("c", "ai", "two"))
	require.NoError(t, s.AddMessage("c", "human", "three"))
	require.NoError(t, s.AddMessage("other", "human", "elsewhere"))

	hist, err := s.GetHistory("c", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, llms.ChatMessageTypeAI, hist[0].Role)
	assert.Equal(t, llms.TextContent{Text: "two"}, hist[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, hist[1].Role)
	assert.Equal(t, llms.TextContent{Text: "three"}, hist[1].Parts[0])
}

func TestTasks(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddTask("c", "daily digest", 3600))
	require.NoError(t, s.AddTask("c", "once", 0))
	require.NoError(t, s.AddTask("d", "other chat", 60))

	pending, err := s.GetPendingTasks()
	require.NoError(t, err)
	require.Len(t, pending, 3, "new tasks are due")
	assert.Equal(t, "daily digest", pending[0].Description)
	assert.True(t, pending[0].LastRun.Before(time.Now().Add(-24*time.Hour)))

	require.NoError(t, s.UpdateTaskLastRun(pending[0].ID))
	pending, err = s.GetPendingTasks()
	require.NoError(t, err)
	assert.Len(t, pending, 2, "interval not yet elapsed")

	assert.ErrorIs(t, s.DeleteTask("d", pending[0].ID), ErrTaskNotFound, "wrong chat deletes nothing")
	listed, err := s.ListTasks("c")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "daily digest", listed[0].Description)
	assert.Equal(t, 3600, listed[0].IntervalSeconds)

	require.NoError(t, s.DeleteTask("c", listed[1].ID))
	listed, err = s.ListTasks("c")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, s.ClearTasks("c"))
	listed, err = s.ListTasks("c")
	require.NoError(t, err)
	assert.Empty(t, listed)

	listed, err = s.ListTasks("d")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
