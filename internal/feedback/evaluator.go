// Package feedback decides, after each attempt, whether the agent stops or retries.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RetryPrompt is asked after a failed attempt.
const RetryPrompt = "Task failed. Do you want the agent to retry? (yes/no): "

// ErrNoOperator is returned when the operator's answer cannot be read.
var ErrNoOperator = errors.New("operator input unavailable")

// Operator is the slice of the console the evaluator needs.
type Operator interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Success(msg string)
}

// Evaluator turns an outcome flag into a stop/retry decision. It holds no
// state between calls.
type Evaluator struct {
	op Operator
}

// NewEvaluator returns an evaluator that consults op.
func NewEvaluator(op Operator) *Evaluator {
	return &Evaluator{op: op}
}

// Evaluate reports whether the loop should stop. Success always stops.
// After a failure only an explicit "no" stops; empty or unrecognised
// answers mean retry. A cancelled ctx stops with ctx.Err().
func (e *Evaluator) Evaluate(ctx context.Context, succeeded bool) (stop bool, err error) {
	if succeeded {
		e.op.Success("Task completed successfully!")
		return true, nil
	}

	answer, err := e.op.Ask(ctx, RetryPrompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}
		return true, fmt.Errorf("%w: %w", ErrNoOperator, err)
	}
	return IsDecline(answer), nil
}

// IsDecline reports whether answer is exactly "no", ignoring case and
// surrounding whitespace.
func IsDecline(answer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == "no"
}
