package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"agentloop/internal/logging"
)

// Workspace is a scratch directory owned by a single execution.
type Workspace struct {
	path   string
	closed bool
}

// NewWorkspace creates a fresh, uniquely named directory under the system
// temp dir.
func NewWorkspace(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	logging.ExecutorDebug("Created workspace %s", dir)
	return &Workspace{path: dir}, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string { return w.path }

// Join returns name resolved inside the workspace.
func (w *Workspace) Join(name string) string { return filepath.Join(w.path, name) }

// Close removes the workspace and everything in it. It is idempotent.
// Failures are logged and returned, and callers are free to ignore them.
func (w *Workspace) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := os.RemoveAll(w.path); err != nil {
		logging.ExecutorWarn("Failed to remove workspace %s: %v", w.path, err)
		return err
	}
	logging.ExecutorDebug("Removed workspace %s", w.path)
	return nil
}
