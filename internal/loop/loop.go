// Package loop drives the plan, approve, execute, feedback cycle.
package loop

import (
	"context"
	"fmt"
	"strings"

	"agentloop/internal/executor"
	"agentloop/internal/logging"
	"agentloop/internal/planner"
)

// Operator prompts.
const (
	TaskPrompt        = "Enter your task: "
	ApprovalPrompt    = "Approve and run this plan? (yes/no): "
	RevisedTaskPrompt = "Enter revised task: "
	RetryMessage      = "Retrying... re-refining the plan."
)

// Operator is the human at the terminal.
type Operator interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
	Info(msg string)
	Warn(msg string)
	Failure(msg string)
	ShowPlan(plan executor.Plan)
	ShowOutcome(out *executor.Outcome)
}

// PlanExecutor runs an approved plan.
type PlanExecutor interface {
	Execute(ctx context.Context, plan executor.Plan) *executor.Outcome
}

// Evaluator decides between stop and retry after each attempt.
type Evaluator interface {
	Evaluate(ctx context.Context, succeeded bool) (stop bool, err error)
}

// Config tunes the loop.
type Config struct {
	SessionID string

	// Kind forces how plans are run. KindAuto (or empty) classifies each plan.
	Kind executor.Kind

	// MaxAttempts caps plan generations. Zero means unbounded.
	MaxAttempts int

	// OnTransition, if set, observes every phase change.
	OnTransition func(from, to Phase)
}

// Loop is the agent control loop. It is single-use and not safe for
// concurrent use.
type Loop struct {
	planner  planner.Planner
	executor PlanExecutor
	eval     Evaluator
	op       Operator
	cfg      Config

	state State
}

// New wires a loop.
func New(p planner.Planner, ex PlanExecutor, ev Evaluator, op Operator, cfg Config) *Loop {
	return &Loop{
		planner:  p,
		executor: ex,
		eval:     ev,
		op:       op,
		cfg:      cfg,
		state:    State{Phase: PhaseAwaitingTask},
	}
}

// State returns a copy of the current state.
func (l *Loop) State() State { return l.state }

func (l *Loop) transition(to Phase) {
	from := l.state.Phase
	l.state.Phase = to
	l.state.Done = to == PhaseDone
	logging.LoopDebug("Phase %s -> %s (attempt %d)", from, to, l.state.Attempt)
	if l.cfg.OnTransition != nil {
		l.cfg.OnTransition(from, to)
	}
}

// Run drives the loop for task until the evaluator says stop. An empty task
// is asked for first. Run returns an error only when operator input fails
// or ctx is cancelled; failed executions are part of the normal flow.
func (l *Loop) Run(ctx context.Context, task string) (*Result, error) {
	res := &Result{SessionID: l.cfg.SessionID}
	log := logging.Get(logging.CategoryLoop).With("session_id", l.cfg.SessionID)
	logging.Loop("Session %s started (kind=%s, max_attempts=%d)", l.cfg.SessionID, l.cfg.Kind, l.cfg.MaxAttempts)

	for strings.TrimSpace(task) == "" {
		var err error
		if task, err = l.op.Ask(ctx, TaskPrompt); err != nil {
			return res, fmt.Errorf("read task: %w", err)
		}
	}
	l.state.Task = task
	res.Task = task

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if l.cfg.MaxAttempts > 0 && res.Attempts >= l.cfg.MaxAttempts {
			l.op.Warn(fmt.Sprintf("Giving up after %d attempts.", res.Attempts))
			logging.LoopWarn("Session %s: attempt limit %d reached", l.cfg.SessionID, l.cfg.MaxAttempts)
			res.Exhausted = true
			l.transition(PhaseDone)
			return res, nil
		}

		res.Attempts++
		l.state.Attempt = res.Attempts
		log.Info("Attempt %d: generating plan", res.Attempts)

		text, err := l.planner.GeneratePlan(ctx, l.state.Task)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			// Generation failures are reported, never executed.
			logging.LoopWarn("Session %s: plan generation failed on attempt %d: %v", l.cfg.SessionID, res.Attempts, err)
			l.op.Failure(fmt.Sprintf("Plan generation failed: %v", err))
			l.transition(PhaseFeedback)
			stop, err := l.eval.Evaluate(ctx, false)
			if err != nil {
				return res, err
			}
			if stop {
				res.Abandoned = true
				l.transition(PhaseDone)
				return res, nil
			}
			l.op.Info(RetryMessage)
			l.transition(PhaseAwaitingTask)
			continue
		}

		plan := executor.NewPlanWithKind(text, l.cfg.Kind)
		l.state.Plan = &plan
		l.state.Approved = false
		l.state.Outcome = nil
		l.transition(PhasePlanGenerated)
		l.op.ShowPlan(plan)

		l.transition(PhaseAwaitingApproval)
		approved, err := l.op.Confirm(ctx, ApprovalPrompt)
		if err != nil {
			return res, fmt.Errorf("read approval: %w", err)
		}
		if !approved {
			res.Declined++
			l.state.Plan = nil
			l.transition(PhaseAwaitingTask)
			revised, err := l.op.Ask(ctx, RevisedTaskPrompt)
			if err != nil {
				return res, fmt.Errorf("read revised task: %w", err)
			}
			if strings.TrimSpace(revised) != "" {
				l.state.Task = revised
				res.Task = revised
			}
			log.Info("Plan declined; task is now %q", l.state.Task)
			continue
		}

		l.state.Approved = true
		l.transition(PhaseExecuting)
		outcome := l.executor.Execute(ctx, plan)
		res.Executions++
		res.LastOutcome = outcome
		l.state.Outcome = outcome
		l.state.Plan = nil
		l.op.ShowOutcome(outcome)
		log.Info("Execution finished: succeeded=%v blocked=%v exit=%d", outcome.Succeeded, outcome.Blocked, outcome.ExitCode)

		if err := ctx.Err(); err != nil {
			return res, err
		}

		l.transition(PhaseFeedback)
		stop, err := l.eval.Evaluate(ctx, outcome.Succeeded)
		if err != nil {
			return res, err
		}
		if stop {
			res.Succeeded = outcome.Succeeded
			res.Abandoned = !outcome.Succeeded
			l.transition(PhaseDone)
			return res, nil
		}

		l.op.Info(RetryMessage)
		l.transition(PhaseAwaitingTask)
	}
}
