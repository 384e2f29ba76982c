package executor

import "context"

// Runner is the process boundary. DirectRunner spawns on the host; a
// container or VM backed implementation can be swapped in without touching
// plan handling.
type Runner interface {
	// Execute runs a command and returns its result. Non-zero exits are
	// reported in the result, not as an error.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)

	// Capabilities returns what this runner supports.
	Capabilities() RunnerCapabilities

	// Validate returns nil if the runner can execute cmd.
	Validate(cmd Command) error
}
