package feedback

import (
	"context"
	"errors"
	"io"
	"testing"
)

type scriptedOperator struct {
	answers   []string
	err       error
	prompts   []string
	successes []string
}

func (s *scriptedOperator) Ask(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptedOperator) Success(msg string) { s.successes = append(s.successes, msg) }

func TestEvaluate_SuccessStopsWithoutPrompt(t *testing.T) {
	op := &scriptedOperator{}
	stop, err := NewEvaluator(op).Evaluate(context.Background(), true)
	if err != nil || !stop {
		t.Fatalf("Evaluate(true) = %v, %v; want true, nil", stop, err)
	}
	if len(op.prompts) != 0 {
		t.Errorf("success should not prompt, got %v", op.prompts)
	}
	if len(op.successes) != 1 {
		t.Errorf("expected a success report, got %v", op.successes)
	}
}

func TestEvaluate_FailureAnswers(t *testing.T) {
	tests := []struct {
		answer   string
		wantStop bool
	}{
		{"no", true},
		{"NO", true},
		{"  no \n", true},
		{"yes", false},
		{"", false},
		{"n", false},
		{"nope", false},
		{"no thanks", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			op := &scriptedOperator{answers: []string{tt.answer}}
			stop, err := NewEvaluator(op).Evaluate(context.Background(), false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stop != tt.wantStop {
				t.Errorf("answer %q: stop=%v, want %v", tt.answer, stop, tt.wantStop)
			}
			if len(op.prompts) != 1 || op.prompts[0] != RetryPrompt {
				t.Errorf("expected the retry prompt once, got %v", op.prompts)
			}
		})
	}
}

func TestEvaluate_InputUnavailable(t *testing.T) {
	op := &scriptedOperator{err: io.ErrUnexpectedEOF}
	stop, err := NewEvaluator(op).Evaluate(context.Background(), false)
	if !errors.Is(err, ErrNoOperator) {
		t.Fatalf("expected ErrNoOperator, got %v", err)
	}
	if !stop {
		t.Error("evaluator should stop when the operator is gone")
	}
}

func TestEvaluate_CancelledWhileAsking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := &scriptedOperator{err: context.Canceled}

	stop, err := NewEvaluator(op).Evaluate(ctx, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrNoOperator) {
		t.Error("cancellation should not be reported as a missing operator")
	}
	if !stop {
		t.Error("evaluator should stop when cancelled")
	}
}
