//go:build windows

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setupProcessGroup starts the child in a new process group so console
// Ctrl+C events aimed at agentloop do not reach it.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// killProcessGroup terminates the child. Grandchildren are not tracked
// without a job object.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
