// Package config loads agentloop settings from .agentloop/config.yaml,
// layered with environment variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config location relative to the workspace.
const DefaultPath = ".agentloop/config.yaml"

// Config holds all agentloop configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Loop      LoopConfig      `yaml:"loop"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the plan generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`
	Temperature float32 `yaml:"temperature"`
}

// ExecutionConfig configures how approved plans are run.
type ExecutionConfig struct {
	// Interpreter runs plans classified as code, with the script path as its only argument.
	Interpreter string `yaml:"interpreter"`

	// Shell runs plans classified as shell commands via "<shell> -c <plan>".
	Shell string `yaml:"shell"`

	// Timeout bounds a single execution. "0" disables the limit.
	Timeout string `yaml:"timeout"`

	MaxOutputBytes  int64    `yaml:"max_output_bytes"`
	WorkspacePrefix string   `yaml:"workspace_prefix"`
	AllowedEnvVars  []string `yaml:"allowed_env_vars"`

	// ExtraDenyPatterns are appended to the built-in denylist. They cannot remove entries.
	ExtraDenyPatterns []string `yaml:"extra_deny_patterns,omitempty"`
}

// LoopConfig configures the control loop.
type LoopConfig struct {
	// MaxAttempts caps plan generations per session. Zero means unbounded.
	MaxAttempts int `yaml:"max_attempts"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Timeout:     "60s",
			Temperature: 0.2,
		},
		Execution: ExecutionConfig{
			Interpreter:     "python3",
			Shell:           "sh",
			Timeout:         "5m",
			MaxOutputBytes:  10 * 1024 * 1024,
			WorkspacePrefix: "agentloop_",
			AllowedEnvVars: []string{
				"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "TERM",
				"PYTHONPATH", "VIRTUAL_ENV", "SYSTEMROOT", "COMSPEC", "PATHEXT",
			},
		},
		Loop: LoopConfig{
			MaxAttempts: 0,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may carry an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetLLMTimeout returns the plan generation timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetExecutionTimeout returns the per-execution timeout. Zero disables it.
func (c *Config) GetExecutionTimeout() time.Duration {
	return parseDuration(c.Execution.Timeout, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LLM.Provider != "gemini" {
		return fmt.Errorf("unsupported llm provider %q (supported: gemini)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Execution.Interpreter == "" {
		return fmt.Errorf("execution.interpreter is required")
	}
	if c.Execution.Shell == "" {
		return fmt.Errorf("execution.shell is required")
	}
	for _, field := range []struct{ name, value string }{
		{"llm.timeout", c.LLM.Timeout},
		{"execution.timeout", c.Execution.Timeout},
	} {
		if field.value == "" || field.value == "0" {
			continue
		}
		if d, err := time.ParseDuration(field.value); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", field.name, field.value)
		}
	}
	if c.Execution.MaxOutputBytes < 0 {
		return fmt.Errorf("execution.max_output_bytes must not be negative")
	}
	if c.Loop.MaxAttempts < 0 {
		return fmt.Errorf("loop.max_attempts must not be negative")
	}
	for _, p := range c.Execution.ExtraDenyPatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
	}
	return nil
}
