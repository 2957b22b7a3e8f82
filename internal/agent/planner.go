package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/rahul/stepwise/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxPlanAttempts bounds how often UpdatePlan asks the model again
// after a malformed reply.
const DefaultMaxPlanAttempts = 5

// Planner creates the initial plan and revises it after every executed step.
// It is the only component that moves a step from pending to completed.
type Planner struct {
	Model       llms.Model
	Prompts     *PromptManager
	Logger      *observability.Logger
	MaxAttempts int
	Options     []llms.CallOption
}

func NewPlanner(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Planner {
	return &Planner{
		Model:       model,
		Prompts:     prompts,
		Logger:      logger,
		MaxAttempts: DefaultMaxPlanAttempts,
	}
}

// CreatePlan asks the model for the first plan. A reply that is not a valid
// plan is fatal: there is no conversation yet to correct it in.
func (p *Planner) CreatePlan(ctx context.Context, run *RunState, toolCatalog string) (*Plan, error) {
	messages := []llms.MessageContent{systemMessage(p.Prompts.System(PromptPlannerSystem))}
	messages = append(messages, run.History...)
	messages = append(messages, humanMessage(p.Prompts.Render(PromptPlanCreate, map[string]string{
		"user_message": run.UserMessage,
		"tools":        toolCatalog,
	})))

	choice, err := generate(ctx, p.Model, p.Logger, run.ID, messages, p.Options...)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	// The raw reply, reasoning included, stays in the log for audit.
	run.Observations.Append(humanMessage(run.UserMessage), aiMessage(choice.Content))

	plan, err := ParsePlan(choice.Content)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	p.Logger.LogPlan(run.ID, "create", plan)
	log.Printf("[Planner] Plan created: %s (%d steps)", plan.Goal, len(plan.Steps))
	return plan, nil
}

// UpdatePlan asks the model to mark finished steps and amend the rest.
// Malformed replies are answered with a correction and retried up to
// MaxAttempts model calls; after that a *RetryError is returned.
func (p *Planner) UpdatePlan(ctx context.Context, run *RunState) (*Plan, error) {
	prev := run.Plan
	if prev == nil {
		return nil, fmt.Errorf("update plan: %w: no current plan", ErrMalformedPlan)
	}

	messages := []llms.MessageContent{systemMessage(p.Prompts.System(PromptPlannerSystem))}
	messages = append(messages, textTranscript(run.Observations.Messages())...)
	messages = append(messages, humanMessage(p.Prompts.Render(PromptPlanUpdate, map[string]string{
		"goal": prev.Goal,
		"plan": prev.JSON(),
	})))

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxPlanAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		choice, err := generate(ctx, p.Model, p.Logger, run.ID, messages, p.Options...)
		if err != nil {
			return nil, fmt.Errorf("update plan: %w", err)
		}

		plan, err := ParsePlan(choice.Content)
		if err == nil {
			if restored := keepCompleted(prev, plan); len(restored) > 0 {
				log.Printf("[Planner] Kept completed status for steps the model reopened: %v", restored)
			}
			run.Observations.Append(aiMessage(plan.JSON()))
			p.Logger.LogPlan(run.ID, "update", plan)
			log.Printf("[Planner] Plan updated: %d/%d steps completed", plan.Completed(), len(plan.Steps))
			return plan, nil
		}

		lastErr = err
		p.Logger.LogRetry(run.ID, attempt, err.Error())
		log.Printf("[Planner] Attempt %d/%d returned a malformed plan: %v", attempt, maxAttempts, err)
		messages = append(messages,
			aiMessage(choice.Content),
			humanMessage(p.Prompts.Render(PromptPlanFix, map[string]string{"error": err.Error()})),
		)
	}
	return nil, &RetryError{Attempts: maxAttempts, Last: lastErr}
}
