package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"agentloop/internal/logging"
)

// execCommandContext is swapped in tests to observe or fake process spawns.
var execCommandContext = exec.CommandContext

// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
const waitDelay = 2 * time.Second

// DirectRunner executes commands directly on the host using os/exec.
// It provides no isolation beyond the working directory and environment
// allow-list.
type DirectRunner struct {
	mu     sync.RWMutex
	config RunnerConfig

	auditCallback func(AuditEvent)
}

// NewDirectRunner creates a runner with default config.
func NewDirectRunner() *DirectRunner {
	return NewDirectRunnerWithConfig(DefaultRunnerConfig())
}

// NewDirectRunnerWithConfig creates a runner with custom config.
func NewDirectRunnerWithConfig(config RunnerConfig) *DirectRunner {
	logging.ExecutorDebug("Creating DirectRunner: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &DirectRunner{
		config:        config,
		auditCallback: config.AuditCallback,
	}
}

// SetAuditCallback sets the callback for audit events.
func (r *DirectRunner) SetAuditCallback(callback func(AuditEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditCallback = callback
}

func (r *DirectRunner) emitAudit(event AuditEvent) {
	r.mu.RLock()
	callback := r.auditCallback
	r.mu.RUnlock()

	if callback != nil {
		event.Runner = "direct"
		event.Timestamp = time.Now()
		callback(event)
	}
}

// Capabilities returns what this runner supports.
func (r *DirectRunner) Capabilities() RunnerCapabilities {
	return RunnerCapabilities{
		Name:             "direct",
		Platform:         runtime.GOOS,
		Isolated:         false,
		SupportsTimeouts: true,
		DefaultTimeout:   r.config.DefaultTimeout,
	}
}

// Validate checks if a command can be executed.
func (r *DirectRunner) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	if cmd.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", cmd.Timeout)
	}
	return nil
}

// Execute runs a command directly on the host.
func (r *DirectRunner) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, "Direct command execution")
	defer timer.Stop()

	if err := r.Validate(cmd); err != nil {
		logging.ExecutorWarn("Command validation failed: %s - %v", cmd.CommandString(), err)
		return nil, err
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = r.config.DefaultTimeout
	}

	logging.ExecutorDebug("Executing: %s (dir=%s, timeout=%s)", cmd.CommandString(), cmd.WorkingDirectory, timeout)

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	r.emitAudit(AuditEvent{Type: AuditEventStart, Command: cmd, SessionID: cmd.SessionID})

	var (
		execCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	execCmd := execCommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = r.buildEnvironment(cmd.Environment)
	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd) }
	execCmd.WaitDelay = waitDelay

	// Stdin stays nil (the null device) so a plan can never consume the
	// operator's answers.

	maxOutput := r.config.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultRunnerConfig().MaxOutputBytes
	}

	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: maxOutput}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: maxOutput}
	combined := &lockedWriter{w: &limitedWriter{w: &combinedBuf, max: 2 * maxOutput}}
	execCmd.Stdout = io.MultiWriter(stdoutLimited, combined)
	execCmd.Stderr = io.MultiWriter(stderrLimited, combined)

	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = combinedBuf.String()

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.ExecutorWarn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Success = true // Infrastructure worked, command was killed
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		logging.ExecutorWarn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
		r.emitAudit(AuditEvent{Type: AuditEventKilled, Command: cmd, Result: result, SessionID: cmd.SessionID})
		return result, nil
	case errors.Is(execCtx.Err(), context.Canceled):
		result.Success = true
		result.Killed = true
		result.KillReason = "context canceled"
		logging.ExecutorDebug("Command canceled: %s", cmd.Binary)
		r.emitAudit(AuditEvent{Type: AuditEventKilled, Command: cmd, Result: result, SessionID: cmd.SessionID})
		return result, nil
	case errors.As(err, &exitErr):
		result.Success = true // Command ran, just returned non-zero
		result.ExitCode = exitErr.ExitCode()
		logging.ExecutorDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
	default:
		result.Success = false
		result.Error = err.Error()
		logging.ExecutorError("Command failed: %s - %v", cmd.Binary, err)
		r.emitAudit(AuditEvent{Type: AuditEventError, Command: cmd, Result: result, SessionID: cmd.SessionID})
		return result, nil
	}

	r.emitAudit(AuditEvent{Type: AuditEventComplete, Command: cmd, Result: result, SessionID: cmd.SessionID})

	logging.Executor("Command completed: %s -> exit=%d, duration=%s, stdout=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Stdout))

	return result, nil
}

// buildEnvironment passes through allowed host variables plus cmdEnv.
func (r *DirectRunner) buildEnvironment(cmdEnv []string) []string {
	env := make([]string, 0, len(r.config.AllowedEnvironment)+len(cmdEnv))
	for _, key := range r.config.AllowedEnvironment {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			env = append(env, key+"="+val)
		}
	}
	return append(env, cmdEnv...)
}

// lockedWriter serializes writes from the stdout and stderr copy goroutines
// so Combined keeps whole chunks in arrival order.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Report the full length so exec does not see a short write
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
