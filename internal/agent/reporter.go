package agent

import (
	"context"
	"fmt"

	"github.com/rahul/stepwise/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Reporter turns the observation log into the answer the user sees.
type Reporter struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
	Options []llms.CallOption
}

func NewReporter(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Reporter {
	return &Reporter{Model: model, Prompts: prompts, Logger: logger}
}

// ComposeReport makes a single model call over the whole log. No tools are
// offered, so tool records are sent as text.
func (r *Reporter) ComposeReport(ctx context.Context, run *RunState) (string, error) {
	messages := append(textTranscript(run.Observations.Messages()), humanMessage(r.Prompts.Render(PromptReport, nil)))

	choice, err := generate(ctx, r.Model, r.Logger, run.ID, messages, r.Options...)
	if err != nil {
		return "", fmt.Errorf("compose report: %w", err)
	}

	run.Observations.Append(aiMessage(choice.Content))
	report := StripReasoning(choice.Content)
	r.Logger.LogReport(run.ID, run.ChatID, report)
	return report, nil
}
