package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/rahul/stepwise/internal/observability"
	"github.com/rahul/stepwise/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// DefaultRecursionLimit is used when Run is given a non-positive limit.
const DefaultRecursionLimit = 100

// Recorder persists the progress of runs. Implementations must be safe for
// concurrent use by independent runs.
type Recorder interface {
	StartRun(runID, chatID, userMessage string) error
	SavePlan(runID string, plan *Plan) error
	SaveObservation(runID string, seq int, msg llms.MessageContent) error
	FinishRun(runID, status, detail string) error
}

type node int

const (
	nodePlan node = iota
	nodeExecute
	nodeRevise
	nodeReport
	nodeDone
)

var nodePhase = map[node]observability.Phase{
	nodePlan:    observability.PhasePlan,
	nodeExecute: observability.PhaseExecute,
	nodeRevise:  observability.PhaseRevise,
	nodeReport:  observability.PhaseReport,
}

// Runner drives one request through plan, execute, revise and report.
// A Runner holds no per-run state and may serve concurrent runs.
type Runner struct {
	Planner  *Planner
	Executor *Executor
	Reporter *Reporter
	Registry *tools.Registry
	Recorder Recorder
	History  HistoryStore
	Logger   *observability.Logger

	// OnEvent, if set, receives every executor event as it happens.
	OnEvent func(run *RunState, ev Event)

	RecursionLimit int
}

// Run executes userMessage to completion and returns the final report.
func (r *Runner) Run(ctx context.Context, userMessage string, recursionLimit int) (string, error) {
	return r.Execute(ctx, NewRunState("", userMessage), recursionLimit)
}

// Execute drives an already created run. Each node visit counts against
// recursionLimit; exceeding it aborts with ErrRecursionLimit. A run is
// reported once; executing it again returns ErrRunFinished.
func (r *Runner) Execute(ctx context.Context, run *RunState, recursionLimit int) (report string, err error) {
	if run.Reported {
		return run.FinalReport, fmt.Errorf("run %s: %w", run.ID, ErrRunFinished)
	}
	if recursionLimit <= 0 {
		recursionLimit = r.RecursionLimit
	}
	if recursionLimit <= 0 {
		recursionLimit = DefaultRecursionLimit
	}

	r.startRecording(run)
	observability.RunStarted()
	defer func() {
		observability.RunFinished()
		r.finishRecording(run, err)
	}()

	state := nodePlan
	for visits := 0; state != nodeDone; visits++ {
		if visits >= recursionLimit {
			return "", fmt.Errorf("run %s: %w (%d)", run.ID, ErrRecursionLimit, recursionLimit)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		observability.SetStatus(nodePhase[state], run.UserMessage)

		switch state {
		case nodePlan:
			plan, err := r.Planner.CreatePlan(ctx, run, r.Registry.Catalog())
			if err != nil {
				return "", err
			}
			r.setPlan(run, plan)
			state = nodeExecute

		case nodeExecute:
			for ev, err := range r.Executor.ExecuteCurrentStep(ctx, run) {
				if err != nil {
					return "", err
				}
				if r.OnEvent != nil {
					r.OnEvent(run, ev)
				}
			}
			state = nodeRevise

		case nodeRevise:
			plan, err := r.Planner.UpdatePlan(ctx, run)
			if err != nil {
				return "", err
			}
			r.setPlan(run, plan)
			decision := Route(plan)
			log.Printf("[Router] %s", decision)
			if decision == DecisionReport {
				state = nodeReport
			} else {
				state = nodeExecute
			}

		case nodeReport:
			report, err := r.Reporter.ComposeReport(ctx, run)
			if err != nil {
				return "", err
			}
			run.FinalReport = report
			run.Reported = true
			state = nodeDone
		}
	}
	return run.FinalReport, nil
}

func (r *Runner) setPlan(run *RunState, plan *Plan) {
	run.Plan = plan
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.SavePlan(run.ID, plan); err != nil {
		log.Printf("Warning: failed to save plan for run %s: %v", run.ID, err)
	}
}

func (r *Runner) startRecording(run *RunState) {
	r.Logger.LogRun(run.ID, run.ChatID, "started", run.UserMessage)
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.StartRun(run.ID, run.ChatID, run.UserMessage); err != nil {
		log.Printf("Warning: failed to record run %s: %v", run.ID, err)
	}
	run.Observations.onAdd = func(seq int, msg llms.MessageContent) {
		if err := r.Recorder.SaveObservation(run.ID, seq, msg); err != nil {
			log.Printf("Warning: failed to save observation %d for run %s: %v", seq, run.ID, err)
		}
	}
}

func (r *Runner) finishRecording(run *RunState, runErr error) {
	status, detail := "completed", run.FinalReport
	if runErr != nil {
		status, detail = "failed", runErr.Error()
	}
	r.Logger.LogRun(run.ID, run.ChatID, status, detail)
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.FinishRun(run.ID, status, detail); err != nil {
		log.Printf("Warning: failed to finish run %s: %v", run.ID, err)
	}
}
