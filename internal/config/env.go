package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() {
	// API key, lowest priority first. OPENAI_API_KEY is honoured for
	// setups that stored the Gemini key under that name.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if c.LLM.APIKey != "" && c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}

	if model := os.Getenv("AGENTLOOP_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if interp := os.Getenv("AGENTLOOP_INTERPRETER"); interp != "" {
		c.Execution.Interpreter = interp
	}
	if shell := os.Getenv("AGENTLOOP_SHELL"); shell != "" {
		c.Execution.Shell = shell
	}
}
