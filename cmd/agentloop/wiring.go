package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentloop/internal/config"
	"agentloop/internal/executor"
	"agentloop/internal/logging"
	"agentloop/internal/planner"
)

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(ws, config.DefaultPath)
}

// loadConfig resolves .env, the config file and flag overrides, validates
// the result and initializes file logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	if err := config.LoadDotEnv(filepath.Join(ws, ".env")); err != nil {
		logger.Warn("Ignoring unreadable .env", zap.Error(err))
	}

	path := resolveConfigPath(ws)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		cfg.Execution.Timeout = timeout.String()
	}
	if f := cmd.Flags().Lookup("max-attempts"); f != nil && f.Changed {
		cfg.Loop.MaxAttempts = maxAttempts
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := logging.Initialize(ws, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("File logging disabled", zap.Error(err))
	}
	logging.Boot("Config loaded from %s (model=%s, interpreter=%s, shell=%s)",
		path, cfg.LLM.Model, cfg.Execution.Interpreter, cfg.Execution.Shell)
	if cfg.LLM.APIKey == "" {
		logging.BootWarn("No API key configured (GEMINI_API_KEY)")
	}
	if cfg.GetExecutionTimeout() == 0 {
		logging.BootWarn("Execution timeout disabled: plans may run indefinitely")
	}

	logger.Debug("Config resolved", zap.String("path", path), zap.String("workspace", ws))
	return cfg, nil
}

// newPlanner builds the plan generator. Swapped in tests.
var newPlanner = func(ctx context.Context, cfg *config.Config) (planner.Planner, error) {
	return planner.NewGeminiPlanner(ctx, planner.GeminiConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.GetLLMTimeout(),
	})
}

// newExecutor builds the plan executor with audit events feeding a shared
// AuditLogger.
func newExecutor(cfg *config.Config, sessionID string) (*executor.Executor, *executor.AuditLogger, error) {
	guard, err := executor.NewDenylist(cfg.Execution.ExtraDenyPatterns...)
	if err != nil {
		return nil, nil, err
	}

	audit := executor.NewAuditLogger()
	audit.AddCallback(func(e executor.AuditEvent) {
		logger.Debug("execution event",
			zap.String("type", string(e.Type)),
			zap.String("request_id", e.Command.RequestID),
			zap.String("session_id", e.SessionID))
	})

	runner := executor.NewDirectRunnerWithConfig(executor.RunnerConfig{
		DefaultTimeout:     cfg.GetExecutionTimeout(),
		AllowedEnvironment: cfg.Execution.AllowedEnvVars,
		MaxOutputBytes:     cfg.Execution.MaxOutputBytes,
		AuditCallback:      audit.Log,
	})

	ex := executor.New(runner, guard, executor.Options{
		Interpreter:     cfg.Execution.Interpreter,
		Shell:           cfg.Execution.Shell,
		WorkspacePrefix: cfg.Execution.WorkspacePrefix,
		SessionID:       sessionID,
	})
	ex.SetAuditCallback(audit.Log)

	return ex, audit, nil
}
