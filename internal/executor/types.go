// Package executor runs operator-approved plans as child processes.
//
// A plan is classified as code or shell, given a fresh scratch workspace,
// screened against a denylist when it is a shell command, and handed to a
// Runner. The workspace is removed on every exit path. The denylist is a
// best-effort filter, not an isolation boundary: the Runner is the place to
// plug in real sandboxing.
package executor

import (
	"strings"
	"time"
)

// Command represents a process invocation handed to a Runner.
type Command struct {
	// Binary is the executable to run (e.g. "python3", "sh").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments. No shell parsing is applied.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (KEY=VALUE), added to the allowed environment.
	Environment []string `json:"environment,omitempty"`

	// Timeout bounds wall time. Zero means use the runner's default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// SessionID links this execution to a loop session (for audit).
	SessionID string `json:"session_id,omitempty"`

	// RequestID uniquely identifies this execution request.
	RequestID string `json:"request_id,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the raw output of a Runner.
type ExecutionResult struct {
	// Success indicates the execution infrastructure worked.
	// A command that runs but exits non-zero has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Combined interleaves stdout and stderr in the order the runner
	// received them. Ordering between the two streams is only as precise
	// as the child's own buffering.
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was forcibly terminated.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was cut at the size limit.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	Command *Command `json:"command,omitempty"`
}

// IsError returns true if the execution infrastructure failed.
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// RunnerCapabilities describes what a Runner can do.
type RunnerCapabilities struct {
	Name             string        `json:"name"`
	Platform         string        `json:"platform"`
	Isolated         bool          `json:"isolated"`
	SupportsTimeouts bool          `json:"supports_timeouts"`
	DefaultTimeout   time.Duration `json:"default_timeout"`
}

// RunnerConfig is the configuration for creating runners.
type RunnerConfig struct {
	// DefaultTimeout is used when Command.Timeout is zero. Zero disables it.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// AllowedEnvironment lists host environment variables passed to children.
	AllowedEnvironment []string `json:"allowed_environment"`

	// MaxOutputBytes caps stdout and stderr capture, each.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// AuditCallback is called for each execution event (optional).
	AuditCallback func(AuditEvent) `json:"-"`
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		DefaultTimeout:     5 * time.Minute,
		MaxOutputBytes:     10 * 1024 * 1024,
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR"},
	}
}

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
	AuditEventBlocked  AuditEventType = "blocked"
)

// AuditEvent represents an execution event.
type AuditEvent struct {
	Type      AuditEventType   `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Command   Command          `json:"command"`
	Result    *ExecutionResult `json:"result,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Runner    string           `json:"runner"`

	// BlockReason explains why execution was blocked (for blocked events).
	BlockReason string `json:"block_reason,omitempty"`
}
