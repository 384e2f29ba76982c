package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentloop/internal/console"
	"agentloop/internal/executor"
	"agentloop/internal/feedback"
	"agentloop/internal/logging"
	"agentloop/internal/loop"
)

const version = "0.1.0"

var (
	// Global flags
	verbose     bool
	configPath  string
	workspace   string
	kindFlag    string
	timeout     time.Duration
	maxAttempts int

	// Logger
	logger *zap.Logger

	// stdin is swapped in tests.
	stdin io.Reader = os.Stdin
)

// rootCmd runs the interactive agent loop.
var rootCmd = &cobra.Command{
	Use:   "agentloop [task]",
	Short: "Local plan, approve, execute, feedback agent",
	Long: `agentloop asks a language model for a plan that performs your task,
shows it to you, and runs it in a throwaway workspace only after you approve.
Failed attempts can be retried with a freshly generated plan.

Shell plans are screened against a denylist before anything runs. The
denylist is a safety net, not a sandbox: read every plan before approving.

Run without arguments to be prompted for a task.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Interactive mode keeps the terminal clean unless -v is given.
		if cmd == cmd.Root() && !verbose {
			logger = zap.NewNop()
			return nil
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.agentloop/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory for config and logs (default: current)")
	rootCmd.PersistentFlags().StringVar(&kindFlag, "kind", "auto", "How to run plans: auto, code or shell")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-execution timeout (overrides execution.timeout)")
	rootCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Stop after this many plan generations (0 = unbounded)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runInteractive drives the full agent loop.
func runInteractive(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	// Cancels a blocked prompt as well as a running plan.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := console.New(stdin, cmd.OutOrStdout())
	con.Banner("Welcome to the Local AI Agent!")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	kind, err := executor.ParseKind(kindFlag)
	if err != nil {
		return err
	}

	p, err := newPlanner(ctx, cfg)
	if err != nil {
		con.Failure(fmt.Sprintf("Error: %v", err))
		return err
	}

	sessionID := uuid.NewString()
	ex, audit, err := newExecutor(cfg, sessionID)
	if err != nil {
		return err
	}

	logger.Info("Starting session",
		zap.String("session_id", sessionID),
		zap.String("model", cfg.LLM.Model),
		zap.String("kind", string(kind)))

	l := loop.New(p, ex, feedback.NewEvaluator(con), con, loop.Config{
		SessionID:   sessionID,
		Kind:        kind,
		MaxAttempts: cfg.Loop.MaxAttempts,
	})

	res, err := l.Run(ctx, strings.Join(args, " "))
	printSummary(con, res, audit.Metrics())

	if errors.Is(err, context.Canceled) {
		con.Warn("Interrupted.")
		return nil
	}
	return err
}

func printSummary(con *console.Console, res *loop.Result, m executor.ExecutionMetricsSnapshot) {
	if res == nil || res.Attempts == 0 {
		return
	}
	con.Info(fmt.Sprintf("Session %s: %d plan(s) generated, %d executed, %d declined.",
		shortID(res.SessionID), res.Attempts, res.Executions, res.Declined))
	if m.Blocked > 0 {
		con.Info(fmt.Sprintf("%d plan(s) blocked by the denylist.", m.Blocked))
	}
	switch {
	case res.Succeeded:
		con.Success("Finished successfully.")
	case res.Exhausted:
		con.Failure("Stopped: attempt limit reached.")
	case res.Abandoned:
		con.Failure("Stopped without success.")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
