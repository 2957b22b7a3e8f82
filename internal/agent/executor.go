package agent

import (
	"context"
	"fmt"
	"iter"
	"log"

	"github.com/rahul/stepwise/internal/governance"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/rahul/stepwise/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxToolRounds bounds the model calls spent on a single step.
const DefaultMaxToolRounds = 20

// EventKind classifies executor progress events.
type EventKind string

const (
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventAnswer     EventKind = "answer"
)

// Event is one unit of progress produced while executing a step.
type Event struct {
	Kind      EventKind
	StepIndex int
	Step      Step
	Tool      string
	CallID    string
	Arguments string

	// Content is the tool result for EventToolResult and the step answer
	// for EventAnswer, with any reasoning preamble removed.
	Content string
	Failed  bool

	// Legacy is set for calls parsed from an inline <tool_call> block.
	Legacy  bool
	Message llms.MessageContent
}

// Executor runs the tool-calling loop for the current pending step.
type Executor struct {
	Model         llms.Model
	Registry      *tools.Registry
	Prompts       *PromptManager
	Policy        governance.PolicyEngine
	Logger        *observability.Logger
	MaxToolRounds int
	Options       []llms.CallOption

	// InlineTools is for models without native tool calling. Tools are
	// described in the system prompt, called with <tool_call> blocks, and
	// the log is sent as text.
	InlineTools bool
}

func NewExecutor(model llms.Model, registry *tools.Registry, prompts *PromptManager, policy governance.PolicyEngine, logger *observability.Logger) *Executor {
	return &Executor{
		Model:         model,
		Registry:      registry,
		Prompts:       prompts,
		Policy:        policy,
		Logger:        logger,
		MaxToolRounds: DefaultMaxToolRounds,
	}
}

// ExecuteCurrentStep returns the event sequence for the first pending step.
// The sequence performs its model and tool calls as it is iterated, appends
// everything it sees to the run's observation log, and ends after the
// model answers without calling a tool. It must be iterated at most once.
// A non-nil error is always the last value yielded.
func (e *Executor) ExecuteCurrentStep(ctx context.Context, run *RunState) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		idx, cur, ok := run.Plan.CurrentStep()
		if !ok {
			yield(Event{}, ErrNoPendingStep)
			return
		}
		step := *cur
		ctx := tools.WithChatID(ctx, run.ChatID)

		log.Printf("[Executor] Step %d: %s", idx+1, step.Title)
		e.Logger.LogStep(run.ID, idx, step.Title)

		run.Observations.Append(humanMessage(e.Prompts.Render(PromptExecuteStep, map[string]string{
			"user_message": run.UserMessage,
			"step":         step.Description,
		})))

		opts := append([]llms.CallOption(nil), e.Options...)
		system := e.Prompts.System(PromptExecuteSystem)
		transcript := run.Observations.Messages
		if e.InlineTools {
			system += "\n\n" + e.Prompts.Render(PromptInlineTools, map[string]string{"tools": e.Registry.Catalog()})
			transcript = func() []llms.MessageContent { return textTranscript(run.Observations.Messages()) }
		} else if defs := e.Registry.LLMTools(); len(defs) > 0 {
			opts = append(opts, llms.WithTools(defs))
		}

		maxRounds := e.MaxToolRounds
		if maxRounds <= 0 {
			maxRounds = DefaultMaxToolRounds
		}

		for round := 1; ; round++ {
			if round > maxRounds {
				yield(Event{}, fmt.Errorf("step %q: %w", step.Title, ErrToolRoundsExceeded))
				return
			}

			messages := append([]llms.MessageContent{systemMessage(system)}, transcript()...)
			choice, err := generate(ctx, e.Model, e.Logger, run.ID, messages, opts...)
			if err != nil {
				yield(Event{}, fmt.Errorf("execute step %q: %w", step.Title, err))
				return
			}
			text := StripReasoning(choice.Content)

			if len(choice.ToolCalls) > 0 {
				for i, tc := range choice.ToolCalls {
					name, args := callName(tc), callArgs(tc)

					var parts []llms.ContentPart
					if i == 0 && choice.Content != "" {
						parts = append(parts, llms.TextContent{Text: choice.Content})
					}
					callMsg := llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: append(parts, tc)}
					run.Observations.Append(callMsg)
					if !yield(Event{Kind: EventToolCall, StepIndex: idx, Step: step, Tool: name, CallID: tc.ID, Arguments: args, Content: text, Message: callMsg}, nil) {
						return
					}

					result, failed := e.invoke(ctx, run.ID, name, args)
					resultMsg := llms.MessageContent{
						Role: llms.ChatMessageTypeTool,
						Parts: []llms.ContentPart{
							llms.ToolCallResponse{
								ToolCallID: tc.ID,
								Name:       name,
								Content:    toolObservation(name, args, result),
							},
						},
					}
					run.Observations.Append(resultMsg)
					if !yield(Event{Kind: EventToolResult, StepIndex: idx, Step: step, Tool: name, CallID: tc.ID, Arguments: args, Content: result, Failed: failed, Message: resultMsg}, nil) {
						return
					}
				}
				continue
			}

			if call, found, perr := ParseLegacyToolCall(choice.Content); found {
				name, args := call.Name, call.Arguments()
				result, failed := "", true
				if perr != nil {
					result = fmt.Sprintf("Error: %v", perr)
				} else {
					result, failed = e.invoke(ctx, run.ID, name, args)
				}

				callMsg := aiMessage(choice.Content)
				resultMsg := humanMessage("tool_result: " + toolObservation(name, args, result))
				run.Observations.Append(callMsg, resultMsg)
				if !yield(Event{Kind: EventToolCall, StepIndex: idx, Step: step, Tool: name, Arguments: args, Content: text, Legacy: true, Message: callMsg}, nil) {
					return
				}
				if !yield(Event{Kind: EventToolResult, StepIndex: idx, Step: step, Tool: name, Arguments: args, Content: result, Failed: failed, Legacy: true, Message: resultMsg}, nil) {
					return
				}
				continue
			}

			answer := aiMessage(choice.Content)
			run.Observations.Append(answer)
			log.Printf("[Executor] Step %d finished: %s", idx+1, text)
			yield(Event{Kind: EventAnswer, StepIndex: idx, Step: step, Content: text, Message: answer}, nil)
			return
		}
	}
}

// invoke runs one tool call. Every failure becomes result text for the
// model; the second return value reports whether it failed.
func (e *Executor) invoke(ctx context.Context, runID, name, args string) (string, bool) {
	e.Logger.LogToolCall(runID, name, args)

	if e.Policy != nil {
		res, err := e.Policy.Evaluate(ctx, governance.Request{Tool: name, Arguments: args, RunID: runID})
		if err != nil {
			return e.failed(runID, name, fmt.Errorf("policy check failed: %w", err))
		}
		e.Logger.LogPolicy(runID, name, string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			return e.failed(runID, name, fmt.Errorf("denied: %s", res.Reason))
		}
	}

	tool, err := e.Registry.Lookup(name)
	if err != nil {
		return e.failed(runID, name, err)
	}

	log.Printf("[Executor] Executing tool %s with args: %s", name, args)
	out, err := tool.Execute(ctx, args)
	if err != nil {
		return e.failed(runID, name, err)
	}
	e.Logger.LogToolResult(runID, name, out, false)
	return out, false
}

func (e *Executor) failed(runID, name string, err error) (string, bool) {
	result := fmt.Sprintf("Error: %v", err)
	log.Printf("[Executor] Tool %s failed: %v", name, err)
	e.Logger.LogToolResult(runID, name, result, true)
	return result, true
}

func toolObservation(name, args, result string) string {
	return fmt.Sprintf("tool_name: %s, tool_args: %s\ntool_result: %s", name, args, result)
}

func callName(tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return ""
	}
	return tc.FunctionCall.Name
}

func callArgs(tc llms.ToolCall) string {
	if tc.FunctionCall == nil || tc.FunctionCall.Arguments == "" {
		return "{}"
	}
	return tc.FunctionCall.Arguments
}
