package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		plan *Plan
		want Decision
	}{
		{"nil plan", nil, DecisionContinue},
		{"empty plan", &Plan{}, DecisionContinue},
		{"last pending", &Plan{Steps: []Step{done("a"), pending("b")}}, DecisionContinue},
		{"all completed", &Plan{Steps: []Step{done("a"), done("b")}}, DecisionReport},
		// Only the last step gates termination.
		{"earlier pending, last completed", &Plan{Steps: []Step{pending("a"), done("b")}}, DecisionReport},
		{"unknown status", &Plan{Steps: []Step{{Title: "a", Status: "weird"}}}, DecisionContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.plan))
		})
	}
}

func TestRouteMonotonic(t *testing.T) {
	// Completing more steps never turns a report decision back into continue.
	p := &Plan{Steps: []Step{pending("a"), pending("b"), done("c")}}
	assert.Equal(t, DecisionReport, Route(p))
	for i := range p.Steps {
		p.Steps[i].Status = StatusCompleted
		assert.Equal(t, DecisionReport, Route(p))
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "continue-executing", DecisionContinue.String())
	assert.Equal(t, "advance-to-report", DecisionReport.String())
}
