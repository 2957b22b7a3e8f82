package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rahul/stepwise/internal/governance"
	"github.com/rahul/stepwise/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestExecutor(model llms.Model, policy governance.PolicyEngine, ts ...tools.Tool) *Executor {
	registry := tools.NewRegistry()
	for _, t := range ts {
		registry.Register(t)
	}
	return NewExecutor(model, registry, nil, policy, nil)
}

func runWithPlan(steps ...Step) *RunState {
	run := NewRunState("chat-1", "do the thing")
	run.Plan = &Plan{Goal: "g", Steps: steps}
	return run
}

func collect(t *testing.T, e *Executor, run *RunState) ([]Event, error) {
	t.Helper()
	var events []Event
	for ev, err := range e.ExecuteCurrentStep(context.Background(), run) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestExecuteStepWithToolCall(t *testing.T) {
	mult := &fakeTool{name: "multiply", out: "6"}
	model := newFakeModel(
		calls(toolCall("call-1", "multiply", `{"a":2,"b":3}`)),
		text("<think>easy</think>The answer is 6."),
	)
	e := newTestExecutor(model, nil, mult)
	run := runWithPlan(done("setup"), pending("compute"))

	events, err := collect(t, e, run)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventToolCall, EventToolResult, EventAnswer}, kinds(events))

	assert.Equal(t, 1, events[0].StepIndex)
	assert.Equal(t, "multiply", events[0].Tool)
	assert.Equal(t, `{"a":2,"b":3}`, events[0].Arguments)
	assert.Equal(t, "6", events[1].Content)
	assert.False(t, events[1].Failed)
	assert.Equal(t, "The answer is 6.", events[2].Content)
	assert.Equal(t, []string{`{"a":2,"b":3}`}, mult.inputs)

	// step prompt, call record, tool result, answer
	log := run.Observations.Messages()
	require.Len(t, log, 4)
	assert.Equal(t, llms.ChatMessageTypeHuman, log[0].Role)
	assert.Contains(t, MessageText(log[0]), "do the thing")
	assert.Contains(t, MessageText(log[0]), "do compute")
	assert.Equal(t, llms.ChatMessageTypeAI, log[1].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, log[2].Role)
	assert.Contains(t, MessageText(log[2]), "tool_result: 6")
	assert.Equal(t, "<think>easy</think>The answer is 6.", MessageText(log[3]))

	// The second request saw the tool result.
	last := model.lastCall()
	assert.Equal(t, llms.ChatMessageTypeSystem, last[0].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, last[len(last)-1].Role)

	// Executing never changes step status.
	assert.Equal(t, StatusPending, run.Plan.Steps[1].Status)
}

func TestExecuteStepToolErrorIsObserved(t *testing.T) {
	broken := &fakeTool{name: "shell_exec", err: errors.New("exit status 2")}
	model := newFakeModel(
		calls(toolCall("c1", "shell_exec", `{"command":"false"}`)),
		text("The command failed."),
	)
	e := newTestExecutor(model, nil, broken)

	events, err := collect(t, e, runWithPlan(pending("run")))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[1].Failed)
	assert.Equal(t, "Error: exit status 2", events[1].Content)
	assert.Equal(t, EventAnswer, events[2].Kind)
}

func TestExecuteStepUnknownTool(t *testing.T) {
	model := newFakeModel(
		calls(toolCall("c1", "teleport", `{}`)),
		text("No such tool."),
	)
	e := newTestExecutor(model, nil)
	run := runWithPlan(pending("go"))

	events, err := collect(t, e, run)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[1].Failed)
	assert.Contains(t, events[1].Content, tools.ErrToolNotFound.Error())
	assert.Contains(t, MessageText(run.Observations.Messages()[2]), "teleport")
}

func TestExecuteStepMultipleCallsInOrder(t *testing.T) {
	a := &fakeTool{name: "a", out: "A"}
	b := &fakeTool{name: "b", out: "B"}
	model := newFakeModel(
		reply{content: "calling both", toolCalls: []llms.ToolCall{toolCall("1", "a", `{}`), toolCall("2", "b", `{}`)}},
		text("both done"),
	)
	e := newTestExecutor(model, nil, a, b)
	run := runWithPlan(pending("x"))

	events, err := collect(t, e, run)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventToolCall, EventToolResult, EventToolCall, EventToolResult, EventAnswer}, kinds(events))
	assert.Equal(t, "a", events[0].Tool)
	assert.Equal(t, "b", events[2].Tool)

	log := run.Observations.Messages()
	require.Len(t, log, 6)
	// Only the first call record carries the reply text.
	assert.Len(t, log[1].Parts, 2)
	assert.Len(t, log[3].Parts, 1)
}

func TestExecuteStepLegacyToolCall(t *testing.T) {
	mult := &fakeTool{name: "multiply", out: "42"}
	raw := `<think>use the tool</think><tool_call>{"name": "multiply", "args": {"a": 6, "b": 7}}</tool_call>`
	model := newFakeModel(text(raw), text("It is 42."))
	e := newTestExecutor(model, nil, mult)
	run := runWithPlan(pending("compute"))

	events, err := collect(t, e, run)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventToolCall, EventToolResult, EventAnswer}, kinds(events))
	assert.True(t, events[0].Legacy)
	assert.JSONEq(t, `{"a": 6, "b": 7}`, mult.inputs[0])

	log := run.Observations.Messages()
	require.Len(t, log, 4)
	assert.Equal(t, raw, MessageText(log[1]))
	assert.Equal(t, llms.ChatMessageTypeHuman, log[2].Role)
	assert.Contains(t, MessageText(log[2]), "tool_result: ")
	assert.Contains(t, MessageText(log[2]), "42")
}

func TestExecuteStepMalformedLegacyCall(t *testing.T) {
	model := newFakeModel(text(`<tool_call>{broken</tool_call>`), text("giving up"))
	e := newTestExecutor(model, nil)

	events, err := collect(t, e, runWithPlan(pending("x")))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[1].Failed)
	assert.Contains(t, events[1].Content, "invalid tool_call block")
}

func TestExecuteStepPolicyDenial(t *testing.T) {
	shell := &fakeTool{name: "shell_exec", out: "should not run"}
	policy, err := governance.NewPolicyEngine(nil, governance.DefaultDeniedPatterns)
	require.NoError(t, err)
	model := newFakeModel(
		calls(toolCall("c1", "shell_exec", `{"command":"rm -rf /"}`)),
		text("Refused."),
	)
	e := newTestExecutor(model, policy, shell)

	events, err := collect(t, e, runWithPlan(pending("clean")))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[1].Failed)
	assert.Contains(t, events[1].Content, "denied")
	assert.Equal(t, 0, shell.calls())
}

func TestExecuteStepToolRoundBound(t *testing.T) {
	loop := &fakeTool{name: "loop", out: "again"}
	model := newFakeModel()
	model.fallback = &reply{toolCalls: []llms.ToolCall{toolCall("c", "loop", `{}`)}}
	e := newTestExecutor(model, nil, loop)
	e.MaxToolRounds = 3

	_, err := collect(t, e, runWithPlan(pending("spin")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolRoundsExceeded)
	assert.ErrorIs(t, err, ErrBoundedExecution)
	assert.Equal(t, 3, model.callCount())
	assert.Equal(t, 3, loop.calls())
}

func TestExecuteStepNoPendingStep(t *testing.T) {
	model := newFakeModel()
	e := newTestExecutor(model, nil)

	_, err := collect(t, e, runWithPlan(done("a")))
	assert.ErrorIs(t, err, ErrNoPendingStep)
	assert.Equal(t, 0, model.callCount())
}

func TestExecuteStepModelError(t *testing.T) {
	boom := errors.New("timeout")
	e := newTestExecutor(newFakeModel(reply{err: boom}), nil)

	_, err := collect(t, e, runWithPlan(pending("a")))
	assert.ErrorIs(t, err, boom)
}

func TestExecuteStepStopsWhenConsumerBreaks(t *testing.T) {
	tool := &fakeTool{name: "t", out: "ok"}
	model := newFakeModel(calls(toolCall("1", "t", `{}`)), text("done"))
	e := newTestExecutor(model, nil, tool)

	for ev, err := range e.ExecuteCurrentStep(context.Background(), runWithPlan(pending("a"))) {
		require.NoError(t, err)
		assert.Equal(t, EventToolCall, ev.Kind)
		break
	}
	assert.Equal(t, 1, model.callCount())
	assert.Equal(t, 0, tool.calls())
}

func TestExecuteStepPassesChatID(t *testing.T) {
	var seen string
	rec := &chatRecorder{seen: &seen}
	model := newFakeModel(calls(toolCall("1", "whoami", `{}`)), text("ok"))
	e := newTestExecutor(model, nil, rec)

	_, err := collect(t, e, runWithPlan(pending("a")))
	require.NoError(t, err)
	assert.Equal(t, "chat-1", seen)
}

type chatRecorder struct{ seen *string }

func (p *chatRecorder) Name() string               { return "whoami" }
func (p *chatRecorder) Description() string        { return "records the chat id" }
func (p *chatRecorder) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (p *chatRecorder) Execute(ctx context.Context, input string) (string, error) {
	*p.seen, _ = tools.ChatIDFrom(ctx)
	return "ok", nil
}
