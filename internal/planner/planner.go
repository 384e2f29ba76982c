// Package planner turns a natural-language task into an executable plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoAPIKey is returned when no model API key is configured.
	ErrNoAPIKey = errors.New("no API key provided: set GEMINI_API_KEY")

	// ErrEmptyPlan is returned when the model produced no usable text.
	ErrEmptyPlan = errors.New("model returned an empty plan")
)

// Planner generates a plan for a task. Failures are returned as errors and
// never as plan text, so they cannot be mistaken for something to execute.
type Planner interface {
	GeneratePlan(ctx context.Context, task string) (string, error)
}

// Func adapts a function to the Planner interface.
type Func func(ctx context.Context, task string) (string, error)

// GeneratePlan calls f.
func (f Func) GeneratePlan(ctx context.Context, task string) (string, error) {
	return f(ctx, task)
}

// BuildPrompt returns the instruction sent to the model for task. The task
// is embedded verbatim between double quotes.
func BuildPrompt(task string) string {
	return fmt.Sprintf("You are a coding assistant. Given the task: \"%s\", generate the code or shell command(s) needed to perform it.\n"+
		"Only output the code, no explanation.", task)
}

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*[ \t]*\r?\n(.*?)\r?\n?```")

// CleanPlan trims model output and unwraps the first Markdown code fence,
// if any. Models fence their answers despite being told not to.
func CleanPlan(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
