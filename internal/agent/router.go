package agent

// Decision is the router's verdict after a plan revision.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionReport
)

func (d Decision) String() string {
	if d == DecisionReport {
		return "advance-to-report"
	}
	return "continue-executing"
}

// Route decides whether the run can move on to reporting.
//
// Only the last step gates termination: a plan whose final step is completed
// is done even if an earlier step is still pending. Empty plans and unknown
// statuses keep the run executing.
func Route(plan *Plan) Decision {
	if plan == nil || len(plan.Steps) == 0 {
		return DecisionContinue
	}
	if plan.Steps[len(plan.Steps)-1].Status == StatusCompleted {
		return DecisionReport
	}
	return DecisionContinue
}
