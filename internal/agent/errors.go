package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPlan is returned when a model reply cannot be turned into a valid plan.
	ErrMalformedPlan = errors.New("malformed plan")

	// ErrRunFinished is returned when a run that already has its report is executed again.
	ErrRunFinished = errors.New("run already reported")

	// ErrNoPendingStep is returned when execution is requested but every step is completed.
	ErrNoPendingStep = errors.New("no pending step in plan")

	// ErrBoundedExecution is the parent of every limit-exceeded error.
	ErrBoundedExecution = errors.New("bounded execution limit exceeded")

	// ErrRecursionLimit is returned when a run exceeds its node visit budget.
	ErrRecursionLimit = fmt.Errorf("%w: recursion limit reached", ErrBoundedExecution)

	// ErrToolRoundsExceeded is returned when a single step keeps calling tools.
	ErrToolRoundsExceeded = fmt.Errorf("%w: too many tool rounds in one step", ErrBoundedExecution)

	// ErrRetriesExhausted is returned when the planner gives up on malformed replies.
	ErrRetriesExhausted = fmt.Errorf("%w: plan retries exhausted", ErrBoundedExecution)
)

// RetryError records the last parse failure seen before UpdatePlan gave up.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("plan update failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}
