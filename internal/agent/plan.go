package agent

import (
	"encoding/json"
	"fmt"
)

// StepStatus is the completion state of a single step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusCompleted StepStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s StepStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Step represents a single sub-task in a broader plan.
type Step struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
}

// Plan represents a goal and the ordered steps that fulfil it.
// Revisions replace the plan; a Plan value is never edited after it is returned.
type Plan struct {
	Goal    string `json:"goal"`
	Thought string `json:"thought"`
	Steps   []Step `json:"steps"`
}

// Validate checks the invariants every plan must satisfy when it crosses
// a planning boundary.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is empty", ErrMalformedPlan)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan has no steps", ErrMalformedPlan)
	}
	for i, s := range p.Steps {
		if !s.Status.Valid() {
			return fmt.Errorf("%w: step %d has invalid status %q", ErrMalformedPlan, i, s.Status)
		}
	}
	return nil
}

// CurrentStep returns the first pending step and its index.
func (p *Plan) CurrentStep() (int, *Step, bool) {
	if p == nil {
		return -1, nil, false
	}
	for i := range p.Steps {
		if p.Steps[i].Status == StatusPending {
			return i, &p.Steps[i], true
		}
	}
	return -1, nil, false
}

// JSON renders the plan in its wire format.
func (p *Plan) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Completed counts completed steps.
func (p *Plan) Completed() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// keepCompleted marks every step of next that was completed in prev (matched
// by title) as completed again. It returns the titles it had to restore.
func keepCompleted(prev, next *Plan) []string {
	if prev == nil || next == nil {
		return nil
	}
	done := make(map[string]bool, len(prev.Steps))
	for _, s := range prev.Steps {
		if s.Status == StatusCompleted {
			done[s.Title] = true
		}
	}
	var restored []string
	for i := range next.Steps {
		if done[next.Steps[i].Title] && next.Steps[i].Status != StatusCompleted {
			next.Steps[i].Status = StatusCompleted
			restored = append(restored, next.Steps[i].Title)
		}
	}
	return restored
}
