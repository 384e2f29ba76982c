package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentloop/internal/console"
	"agentloop/internal/executor"
)

var errBlocked = errors.New("plan blocked by denylist")

var listRules bool

// execCmd runs a single plan without the planner or approval loop.
var execCmd = &cobra.Command{
	Use:   "exec <plan|->",
	Short: "Run one plan through the executor",
	Long: `Runs a plan exactly as the agent would after approval: classified,
screened, executed in a fresh workspace that is removed afterwards.
Pass "-" to read the plan from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

// checkCmd classifies a plan and screens it without running it.
var checkCmd = &cobra.Command{
	Use:   "check <plan|->",
	Short: "Show how a plan would be classified and whether it is blocked",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&listRules, "rules", false, "Also list the active denylist rules")
}

func readPlanArg(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read plan from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func runExec(cmd *cobra.Command, args []string) error {
	text, err := readPlanArg(args[0])
	if err != nil {
		return err
	}
	kind, err := executor.ParseKind(kindFlag)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ex, _, err := newExecutor(cfg, uuid.NewString())
	if err != nil {
		return err
	}

	plan := executor.NewPlanWithKind(text, kind)
	logger.Info("Executing plan", zap.String("kind", string(plan.Kind)), zap.Int("bytes", len(text)))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	con := console.New(stdin, cmd.OutOrStdout())
	out := ex.Execute(ctx, plan)
	con.ShowOutcome(out)

	logger.Info("Plan finished",
		zap.String("request_id", out.RequestID),
		zap.Int("exit_code", out.ExitCode),
		zap.Bool("succeeded", out.Succeeded),
		zap.Duration("duration", out.Duration))

	switch {
	case out.Blocked:
		return errBlocked
	case !out.Succeeded:
		return fmt.Errorf("plan failed (exit %d)", out.ExitCode)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	text, err := readPlanArg(args[0])
	if err != nil {
		return err
	}
	kind, err := executor.ParseKind(kindFlag)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	guard, err := executor.NewDenylist(cfg.Execution.ExtraDenyPatterns...)
	if err != nil {
		return err
	}

	plan := executor.NewPlanWithKind(text, kind)
	w := cmd.OutOrStdout()
	if listRules {
		fmt.Fprintln(w, "rules:")
		for _, rule := range guard.Rules() {
			fmt.Fprintf(w, "  %-45s %s\n", rule.Description, rule.Pattern)
		}
	}
	fmt.Fprintf(w, "kind: %s\n", plan.Kind)

	if plan.Kind != executor.KindShell {
		fmt.Fprintf(w, "runs as: %s <script>\n", cfg.Execution.Interpreter)
		fmt.Fprintln(w, "denylist: not applied to code plans")
		return nil
	}
	fmt.Fprintf(w, "runs as: %s -c <plan>\n", cfg.Execution.Shell)
	if v := guard.Check(plan.Text); v != nil {
		fmt.Fprintf(w, "denylist: %s\n", v.Error())
		return errBlocked
	}
	fmt.Fprintln(w, "denylist: allowed")
	return nil
}
