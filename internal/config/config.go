// Package config resolves run configuration: provider credentials, model
// selection, budgets, and the fixed CWE-instruction/protected-file tables.
// Layered via viper (flags > env > .env file > XDG config defaults),
// generalizing the teacher's env-file + XDG-credential pattern.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the resolved settings for one Engine run.
type Config struct {
	Provider string
	APIKey   string
	Model    string

	Dataset  string
	Project  string
	UsePatch bool
	NoFlow   bool
	NoBranch bool
	Verbose  bool

	BudgetDollars float64
	TimeoutSecs   int
	MaxTurns      int

	BuildTimeoutSecs int
	RunTimeoutSecs   int
}

// Defaults mirror the original CLI's argparse defaults (main.py).
const (
	DefaultBudgetDollars   = 5.0
	DefaultTimeoutSecs     = 2400
	DefaultMaxTurns        = 100
	DefaultBuildTimeoutSecs = 300
	DefaultRunTimeoutSecs   = 200
	DefaultShellTimeoutSecs = 120
	MaxRepairIterations     = 5
	CondensationThresholdFraction = 0.20
	CondensationTargetFraction    = 0.70
)

// Load resolves configuration via viper, layering flags over environment
// over a project .env file over XDG config defaults.
func Load(v *viper.Viper, provider string) (*Config, error) {
	loadEnvFile(".env")
	if dir, err := ConfigDir(); err == nil {
		loadEnvFile(filepath.Join(dir, "credentials"))
	}

	v.SetEnvPrefix("POVAGENT")
	v.AutomaticEnv()
	v.SetDefault("budget", DefaultBudgetDollars)
	v.SetDefault("timeout", DefaultTimeoutSecs)
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("model", "claude-sonnet-4-5-20250929")
	v.SetDefault("dataset", "cwe-bench-java")

	if provider == "" {
		provider = "anthropic"
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" && provider == "anthropic" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	cfg := &Config{
		Provider:         provider,
		APIKey:           apiKey,
		Model:            v.GetString("model"),
		Dataset:          v.GetString("dataset"),
		Project:          v.GetString("project"),
		UsePatch:         v.GetBool("use_patch"),
		NoFlow:           v.GetBool("no_flow"),
		NoBranch:         v.GetBool("no_branch"),
		Verbose:          v.GetBool("verbose"),
		BudgetDollars:    v.GetFloat64("budget"),
		TimeoutSecs:      v.GetInt("timeout"),
		MaxTurns:         DefaultMaxTurns,
		BuildTimeoutSecs: DefaultBuildTimeoutSecs,
		RunTimeoutSecs:   DefaultRunTimeoutSecs,
	}
	return cfg, nil
}

// WorkdirSuffix reproduces the original main.py's workdir_suffix naming so
// runs with different phase-elision flags don't collide on disk.
func (c *Config) WorkdirSuffix() string {
	suffix := ""
	if c.NoFlow {
		suffix += "_no_flow"
	}
	if c.NoBranch {
		suffix += "_no_branch"
	}
	return suffix
}

// ConfigDir returns the XDG-compliant config directory for this agent.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, "povagent"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "povagent"), nil
}

// loadEnvFile reads KEY=VALUE lines into the environment without overriding
// variables already set. Mirrors the teacher's config.loadEnvFile.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
