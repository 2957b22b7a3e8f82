package agent

import (
	"context"
	"errors"

	"github.com/rahul/stepwise/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

var errNoChoices = errors.New("model returned no choices")

// generate performs one model call and logs the exchange.
func generate(ctx context.Context, model llms.Model, logger *observability.Logger, runID string, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errNoChoices
	}
	choice := resp.Choices[0]

	logger.LogLLM(runID, messages, choice.Content, choice.ToolCalls)
	if in, out := usage(choice.GenerationInfo); in+out > 0 {
		name, _ := choice.GenerationInfo["Model"].(string)
		logger.LogCost(runID, in, out, name)
	}
	return choice, nil
}

// usage reads token counts from provider-specific generation info.
func usage(info map[string]any) (prompt, completion int) {
	prompt = firstInt(info, "PromptTokens", "InputTokens")
	completion = firstInt(info, "CompletionTokens", "OutputTokens")
	return prompt, completion
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
