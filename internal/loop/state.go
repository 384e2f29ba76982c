package loop

import "agentloop/internal/executor"

// Phase is a control loop state.
type Phase string

const (
	PhaseAwaitingTask     Phase = "awaiting_task"
	PhasePlanGenerated    Phase = "plan_generated"
	PhaseAwaitingApproval Phase = "awaiting_approval"
	PhaseExecuting        Phase = "executing"
	PhaseFeedback         Phase = "feedback"
	PhaseDone             Phase = "done"
)

// State is the in-memory loop state. It is never persisted.
type State struct {
	Phase    Phase
	Task     string
	Plan     *executor.Plan
	Approved bool
	Outcome  *executor.Outcome
	Attempt  int
	Done     bool
}

// Result summarizes a finished session.
type Result struct {
	SessionID string

	// Task is the task as last revised by the operator.
	Task string

	// Attempts counts plan generations, including failed ones.
	Attempts   int
	Executions int
	Declined   int

	Succeeded bool

	// Abandoned is set when the operator declined to retry after a failure.
	Abandoned bool

	// Exhausted is set when loop.max_attempts was reached.
	Exhausted bool

	LastOutcome *executor.Outcome
}
