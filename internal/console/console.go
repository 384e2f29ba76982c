// Package console is the operator's terminal: prompts, plan display and
// outcome reporting.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentloop/internal/executor"
)

// Console reads operator answers from in and writes styled output to out.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	styles Styles

	// pending holds a line read still in flight after a cancelled Ask. The
	// next Ask picks it up instead of starting a second reader.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// New returns a console over in and out.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:     bufio.NewReader(in),
		out:    out,
		styles: NewStyles(lipgloss.NewRenderer(out)),
	}
}

// Ask prints prompt and returns the next input line without its line ending.
// A final line without a newline is returned as-is; io.EOF is returned only
// when nothing was read. Ask returns ctx.Err() as soon as ctx is done, even
// while the read is still blocked.
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, c.styles.Prompt.Render(prompt))

	if c.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := c.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		c.pending = ch
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case r := <-c.pending:
		c.pending = nil
		if r.err != nil {
			if errors.Is(r.err, io.EOF) && r.line != "" {
				fmt.Fprintln(c.out)
				return strings.TrimRight(r.line, "\r\n"), nil
			}
			return "", r.err
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

// Confirm asks a yes/no question. Only "yes" (any case) confirms.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := c.Ask(ctx, prompt)
	if err != nil {
		return false, err
	}
	return IsAffirmative(answer), nil
}

// IsAffirmative reports whether answer is exactly "yes", ignoring case and
// surrounding whitespace.
func IsAffirmative(answer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == "yes"
}

// Banner prints a title line.
func (c *Console) Banner(title string) {
	fmt.Fprintln(c.out, c.styles.Title.Render(title))
}

// Info prints an informational line.
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, c.styles.Info.Render(msg))
}

// Warn prints a warning line.
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, c.styles.Warning.Render(msg))
}

// Success prints a success line.
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.out, c.styles.Success.Render(msg))
}

// Failure prints a failure line.
func (c *Console) Failure(msg string) {
	fmt.Fprintln(c.out, c.styles.Failure.Render(msg))
}

// ShowPlan prints the generated plan and how it will be run.
func (c *Console) ShowPlan(plan executor.Plan) {
	fmt.Fprintln(c.out, c.styles.Label.Render("Generated plan")+" "+
		c.styles.Muted.Render(fmt.Sprintf("(%s)", plan.Kind)))
	fmt.Fprintln(c.out, c.styles.Plan.Render(plan.Text))
}

// ShowOutcome prints captured output, errors and the verdict of one execution.
func (c *Console) ShowOutcome(out *executor.Outcome) {
	if out.Blocked {
		c.Failure(capitalize(out.BlockReason))
		return
	}
	if out.Stdout != "" {
		fmt.Fprintln(c.out, c.styles.Label.Render("Output:"))
		fmt.Fprintln(c.out, strings.TrimRight(out.Stdout, "\n"))
	}
	if out.Stderr != "" {
		fmt.Fprintln(c.out, c.styles.Label.Render("Errors:"))
		fmt.Fprintln(c.out, strings.TrimRight(out.Stderr, "\n"))
	}
	if out.Truncated {
		c.Warn("Output was truncated.")
	}
	if out.Killed {
		c.Warn("Process killed: " + out.KillReason)
	}
	if out.Error != "" {
		c.Failure("Execution error: " + out.Error)
	}
	if !out.Succeeded && out.ExitCode > 0 {
		c.Failure(fmt.Sprintf("Exited with status %d", out.ExitCode))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
