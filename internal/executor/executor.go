package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentloop/internal/logging"
)

// WorkspaceEnvVar names the variable that tells a running plan where its
// scratch workspace is.
const WorkspaceEnvVar = "AGENTLOOP_WORKSPACE"

// Options configures an Executor.
type Options struct {
	Interpreter     string
	Shell           string
	ScriptName      string
	WorkspacePrefix string

	// Timeout is passed to the Runner per execution. Zero uses the runner default.
	Timeout time.Duration

	SessionID string
}

// DefaultOptions returns the defaults used by New for unset fields.
func DefaultOptions() Options {
	return Options{
		Interpreter:     "python3",
		Shell:           "sh",
		ScriptName:      "task.py",
		WorkspacePrefix: "agentloop_",
	}
}

// Outcome is the observable result of executing one plan.
type Outcome struct {
	RequestID string
	Kind      Kind

	Stdout   string
	Stderr   string
	Combined string
	ExitCode int

	// Succeeded is true iff a process ran and exited 0.
	Succeeded bool

	// Blocked is set when the Guard refused the plan. No process was spawned.
	Blocked     bool
	BlockReason string

	Killed     bool
	KillReason string
	Truncated  bool

	// Error carries infrastructure failures (spawn errors, panics, I/O).
	Error string

	// Workspace is the scratch directory used. It no longer exists once
	// Execute returns.
	Workspace string
	Duration  time.Duration
}

// Executor runs plans: classify, isolate in a workspace, screen, spawn,
// capture, clean up.
type Executor struct {
	runner Runner
	guard  Guard
	opts   Options

	mu            sync.RWMutex
	auditCallback func(AuditEvent)
}

// New returns an Executor. A nil guard uses DefaultDenylist.
func New(runner Runner, guard Guard, opts Options) *Executor {
	def := DefaultOptions()
	if opts.Interpreter == "" {
		opts.Interpreter = def.Interpreter
	}
	if opts.Shell == "" {
		opts.Shell = def.Shell
	}
	if opts.ScriptName == "" {
		opts.ScriptName = def.ScriptName
	}
	if opts.WorkspacePrefix == "" {
		opts.WorkspacePrefix = def.WorkspacePrefix
	}
	if guard == nil {
		guard = DefaultDenylist()
	}
	return &Executor{runner: runner, guard: guard, opts: opts}
}

// SetAuditCallback receives blocked events. Runner events go through the
// runner's own callback.
func (e *Executor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

func (e *Executor) emitAudit(event AuditEvent) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()
	if callback != nil {
		callback(event)
	}
}

// ExecuteText classifies text and executes it.
func (e *Executor) ExecuteText(ctx context.Context, text string) *Outcome {
	return e.Execute(ctx, NewPlan(text))
}

// Execute runs plan and reports the outcome. It never returns an error:
// every failure, including a panic in the runner, becomes a failed Outcome.
// The workspace is removed before Execute returns.
func (e *Executor) Execute(ctx context.Context, plan Plan) (out *Outcome) {
	if plan.Kind == "" || plan.Kind == KindAuto {
		plan = NewPlan(plan.Text)
	}

	out = &Outcome{
		RequestID: uuid.NewString(),
		Kind:      plan.Kind,
		ExitCode:  -1,
	}
	start := time.Now()
	log := logging.Get(logging.CategoryExecutor).With("request_id", out.RequestID)
	log.Info("Executing %s plan (%d bytes)", plan.Kind, len(plan.Text))

	ws, err := NewWorkspace(e.opts.WorkspacePrefix)
	if err != nil {
		out.Error = err.Error()
		out.Duration = time.Since(start)
		log.Error("%v", err)
		return out
	}
	out.Workspace = ws.Path()

	defer func() {
		_ = ws.Close()
		out.Duration = time.Since(start)
	}()
	defer func() {
		if r := recover(); r != nil {
			out.Succeeded = false
			out.Error = fmt.Sprintf("execution panicked: %v", r)
			log.Error("%s", out.Error)
		}
	}()

	cmd, v, err := e.prepare(plan, ws)
	if err != nil {
		out.Error = err.Error()
		log.Error("%v", err)
		return out
	}
	if v != nil {
		out.Blocked = true
		out.BlockReason = v.Error()
		log.Warn("Blocked plan: %s", out.BlockReason)
		e.emitAudit(AuditEvent{
			Type:        AuditEventBlocked,
			Timestamp:   time.Now(),
			Command:     Command{Binary: e.opts.Shell, RequestID: out.RequestID, SessionID: e.opts.SessionID},
			SessionID:   e.opts.SessionID,
			Runner:      e.runner.Capabilities().Name,
			BlockReason: out.BlockReason,
		})
		return out
	}
	cmd.RequestID = out.RequestID

	if err := e.runner.Validate(*cmd); err != nil {
		out.Error = fmt.Sprintf("invalid command: %v", err)
		log.Error("%s", out.Error)
		return out
	}

	res, err := e.runner.Execute(ctx, *cmd)
	if err != nil {
		out.Error = err.Error()
		log.Error("Runner failed: %v", err)
		return out
	}

	out.Stdout = res.Stdout
	out.Stderr = res.Stderr
	out.Combined = res.Combined
	out.ExitCode = res.ExitCode
	out.Killed = res.Killed
	out.KillReason = res.KillReason
	out.Truncated = res.Truncated
	out.Error = res.Error

	switch {
	case res.IsError():
		log.Error("Runner could not execute plan: %s", res.Error)
	case res.Killed:
		log.Warn("Plan killed: %s", res.KillReason)
	case res.IsNonZeroExit():
		log.Info("Plan exited with status %d", res.ExitCode)
	default:
		out.Succeeded = true
	}

	log.Info("Plan finished: exit=%d succeeded=%v", out.ExitCode, out.Succeeded)
	return out
}

// prepare builds the command for plan, or returns the guard's violation.
func (e *Executor) prepare(plan Plan, ws *Workspace) (*Command, *Violation, error) {
	cmd := &Command{
		WorkingDirectory: ws.Path(),
		Environment:      []string{WorkspaceEnvVar + "=" + ws.Path()},
		Timeout:          e.opts.Timeout,
		SessionID:        e.opts.SessionID,
		Tags:             map[string]string{"kind": string(plan.Kind)},
	}

	switch plan.Kind {
	case KindCode:
		script := ws.Join(e.opts.ScriptName)
		if err := os.WriteFile(script, []byte(plan.Text), 0600); err != nil {
			return nil, nil, fmt.Errorf("write script: %w", err)
		}
		cmd.Binary = e.opts.Interpreter
		cmd.Arguments = []string{script}
	case KindShell:
		if v := e.guard.Check(plan.Text); v != nil {
			return nil, v, nil
		}
		cmd.Binary = e.opts.Shell
		cmd.Arguments = shellArgs(e.opts.Shell, plan.Text)
	default:
		return nil, nil, fmt.Errorf("unknown plan kind %q", plan.Kind)
	}
	return cmd, nil, nil
}

// shellArgs returns the argument vector that makes shell run command.
func shellArgs(shell, command string) []string {
	switch strings.ToLower(strings.TrimSuffix(filepath.Base(shell), ".exe")) {
	case "cmd":
		return []string{"/C", command}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command", command}
	default:
		return []string{"-c", command}
	}
}
