package executor

import (
	"sync"
	"time"

	"agentloop/internal/logging"
)

// AuditLogger fans execution events out to the audit log, in-memory
// metrics and any registered callbacks.
type AuditLogger struct {
	mu        sync.RWMutex
	callbacks []func(AuditEvent)
	metrics   *ExecutionMetrics
}

// NewAuditLogger creates an audit logger with fresh metrics.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{metrics: NewExecutionMetrics()}
}

// AddCallback registers a callback for every logged event.
func (l *AuditLogger) AddCallback(callback func(AuditEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

// Log records an event. Its signature matches the runner and executor
// audit callbacks so it can be passed to them directly.
func (l *AuditLogger) Log(event AuditEvent) {
	l.metrics.RecordEvent(event)

	entry := logging.Get(logging.CategoryAudit).With(
		"event", string(event.Type),
		"request_id", event.Command.RequestID,
		"session_id", event.SessionID,
		"runner", event.Runner,
	)
	switch event.Type {
	case AuditEventBlocked:
		entry.Warn("blocked: %s", event.BlockReason)
	case AuditEventError:
		if event.Result != nil {
			entry.Error("error: %s", event.Result.Error)
		}
	case AuditEventKilled:
		if event.Result != nil {
			entry.Warn("killed: %s", event.Result.KillReason)
		}
	case AuditEventComplete:
		if event.Result != nil {
			entry.Info("complete: exit=%d duration=%s", event.Result.ExitCode, event.Result.Duration)
		}
	default:
		entry.Info("%s: %s", event.Type, event.Command.CommandString())
	}

	l.mu.RLock()
	callbacks := l.callbacks
	l.mu.RUnlock()
	for _, cb := range callbacks {
		cb(event)
	}
}

// Metrics returns a snapshot of the collected metrics.
func (l *AuditLogger) Metrics() ExecutionMetricsSnapshot {
	return l.metrics.Snapshot()
}

// ExecutionMetrics aggregates audit events.
type ExecutionMetrics struct {
	mu            sync.Mutex
	started       int64
	succeeded     int64
	nonZero       int64
	errored       int64
	killed        int64
	blocked       int64
	totalDuration time.Duration
}

// NewExecutionMetrics creates an empty metrics collector.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

// RecordEvent updates counters for event.
func (m *ExecutionMetrics) RecordEvent(event AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Type {
	case AuditEventStart:
		m.started++
	case AuditEventComplete:
		if event.Result != nil {
			if event.Result.ExitCode == 0 {
				m.succeeded++
			} else {
				m.nonZero++
			}
			m.totalDuration += event.Result.Duration
		}
	case AuditEventKilled:
		m.killed++
		if event.Result != nil {
			m.totalDuration += event.Result.Duration
		}
	case AuditEventError:
		m.errored++
	case AuditEventBlocked:
		m.blocked++
	}
}

// ExecutionMetricsSnapshot is a point-in-time copy of ExecutionMetrics.
type ExecutionMetricsSnapshot struct {
	Started         int64         `json:"started"`
	Succeeded       int64         `json:"succeeded"`
	NonZeroExits    int64         `json:"non_zero_exits"`
	Errors          int64         `json:"errors"`
	Killed          int64         `json:"killed"`
	Blocked         int64         `json:"blocked"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
}

// Snapshot returns the current counters.
func (m *ExecutionMetrics) Snapshot() ExecutionMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ExecutionMetricsSnapshot{
		Started:       m.started,
		Succeeded:     m.succeeded,
		NonZeroExits:  m.nonZero,
		Errors:        m.errored,
		Killed:        m.killed,
		Blocked:       m.blocked,
		TotalDuration: m.totalDuration,
	}
	if finished := m.succeeded + m.nonZero + m.killed; finished > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(finished)
	}
	return s
}
