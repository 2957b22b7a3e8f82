package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// reply is one scripted model response.
type reply struct {
	content   string
	toolCalls []llms.ToolCall
	err       error
}

// fakeModel answers GenerateContent from a script and records every request.
type fakeModel struct {
	mu      sync.Mutex
	replies []reply
	calls   [][]llms.MessageContent
	// fallback, when set, is returned once the script is used up.
	fallback *reply

	// toolsRequired rejects requests carrying tool records but no tool
	// definitions, as Anthropic does. textOnly rejects any non-text part,
	// as langchaingo's ollama client does.
	toolsRequired bool
	textOnly      bool
	offered       []int
}

func newFakeModel(replies ...reply) *fakeModel {
	return &fakeModel{replies: replies}
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.calls = append(f.calls, append([]llms.MessageContent(nil), messages...))
	f.offered = append(f.offered, len(opts.Tools))
	if err := f.check(messages, len(opts.Tools)); err != nil {
		return nil, err
	}
	var r reply
	switch {
	case len(f.replies) > 0:
		r, f.replies = f.replies[0], f.replies[1:]
	case f.fallback != nil:
		r = *f.fallback
	default:
		return nil, errors.New("fake model: script exhausted")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: r.content, ToolCalls: r.toolCalls}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) check(messages []llms.MessageContent, tools int) error {
	for _, m := range messages {
		for _, p := range m.Parts {
			switch p.(type) {
			case llms.TextContent:
			case llms.ToolCall, llms.ToolCallResponse:
				if f.textOnly {
					return errors.New("only support Text and BinaryContent parts right now")
				}
				if f.toolsRequired && tools == 0 {
					return errors.New("requests which include tool_use or tool_result blocks must define tools")
				}
			default:
				if f.textOnly {
					return fmt.Errorf("unsupported part %T", p)
				}
			}
		}
	}
	return nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeModel) lastCall() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func text(s string) reply {
	return reply{content: s}
}

func calls(tcs ...llms.ToolCall) reply {
	return reply{toolCalls: tcs}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

// fakeTool returns out or err and records the inputs it saw.
type fakeTool struct {
	name   string
	out    string
	err    error
	mu     sync.Mutex
	inputs []string
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "fake " + t.name }
func (t *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *fakeTool) Execute(ctx context.Context, input string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, input)
	return t.out, t.err
}

func (t *fakeTool) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputs)
}

// planReply renders a plan reply the way models usually send it.
func planReply(goal string, steps ...Step) reply {
	p := &Plan{Goal: goal, Thought: "straightforward", Steps: steps}
	return text("```json\n" + p.JSON() + "\n```")
}

func pending(title string) Step {
	return Step{Title: title, Description: "do " + title, Status: StatusPending}
}

func done(title string) Step {
	return Step{Title: title, Description: "do " + title, Status: StatusCompleted}
}
