// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AuditConfig controls verdict auditing.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled" description:"Record every code generation verdict" default:"false"`
	DBPath     string `yaml:"db_path" description:"SQLite database for audit events (relative to data dir, empty = log only)" default:"audit.db"`
	BufferSize int    `yaml:"buffer_size" description:"Pending audit events before new ones are dropped" default:"1024"`
	LogSources bool   `yaml:"log_sources" description:"Include the full source text in audit log lines" default:"false"`
}

// Config holds jsguard configuration settings
type Config struct {
	Engine       string `yaml:"engine" description:"Script engine backend" default:"goja"`
	PolicyFile   string `yaml:"policy_file" description:"Policy file (relative to data dir, empty = allow all)" default:"policy.yaml"`
	WatchPolicy  bool   `yaml:"watch_policy" description:"Reload the policy file when it changes" default:"true"`
	MaxCallStack int    `yaml:"max_call_stack" description:"Maximum script call depth (0 = engine default)" default:"0"`
	MetricsAddr  string `yaml:"metrics_addr" description:"Listen address for Prometheus /metrics (empty = disabled)"`
	HistoryFile  string `yaml:"history_file" description:"REPL history file (relative to data dir)" default:".jsguard_history"`

	Audit AuditConfig `yaml:"audit" description:"Verdict audit settings"`

	// PolicyOptional is true while PolicyFile is the built-in default, whose
	// absence means the default policy. A policy file named in config.yaml
	// or on the command line must exist.
	PolicyOptional bool `yaml:"-"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		Engine:         "goja",
		PolicyFile:     "policy.yaml",
		PolicyOptional: true,
		WatchPolicy:    true,
		HistoryFile:    ".jsguard_history",
		Audit:          DefaultAuditConfig(),
	}
}

// DefaultAuditConfig returns default audit settings.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		DBPath:     "audit.db",
		BufferSize: 1024,
	}
}

// GetDataDir returns the jsguard data directory.
// Resolution order: -d flag > JSGUARD_DATA env var > ~/.jsguard
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("JSGUARD_DATA"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Can't determine default
	}
	return filepath.Join(home, ".jsguard")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or the file doesn't exist, returns default config.
// Relative paths are resolved against the data directory.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}

	config.PolicyFile = ResolvePath(config.PolicyFile, dataDir)
	config.HistoryFile = ResolvePath(config.HistoryFile, dataDir)
	config.Audit.DBPath = ResolvePath(config.Audit.DBPath, dataDir)

	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	// Fill in defaults for missing values
	defaults := DefaultConfig()
	config.PolicyOptional = config.PolicyFile == defaults.PolicyFile
	if config.Engine == "" {
		config.Engine = defaults.Engine
	}
	if config.Audit.BufferSize == 0 {
		config.Audit.BufferSize = defaults.Audit.BufferSize
	}

	return config, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.MaxCallStack < 0 {
		return fmt.Errorf("max_call_stack must not be negative (got %d)", c.MaxCallStack)
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit.buffer_size must not be negative (got %d)", c.Audit.BufferSize)
	}
	if strings.ContainsAny(c.Engine, " \t/") {
		return fmt.Errorf("invalid engine name '%s'", c.Engine)
	}
	return nil
}

// ResolvePath returns path unchanged if absolute or empty, otherwise joins it to baseDir.
// A leading ~/ is expanded to the user's home directory.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
