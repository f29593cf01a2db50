// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package config loads the guard configuration from a JSON file with
// environment variable overrides. Configuration is read once at process
// start and never re-read.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Limits holds the per-agent guardrail thresholds. Every field is optional:
// a nil field defers to the next configuration layer down.
type Limits struct {
	MaxToolCalls         *int     `json:"max_tool_calls,omitempty" env:"CLAWGUARD_MAX_TOOL_CALLS"`
	MaxDurationMinutes   *float64 `json:"max_duration_minutes,omitempty" env:"CLAWGUARD_MAX_DURATION_MINUTES"`
	MaxRepetition        *int     `json:"max_repetition,omitempty" env:"CLAWGUARD_MAX_REPETITION"`
	MaxConsecutiveErrors *int     `json:"max_consecutive_errors,omitempty" env:"CLAWGUARD_MAX_CONSECUTIVE_ERRORS"`
	WarningFraction      *float64 `json:"warning_fraction,omitempty" env:"CLAWGUARD_WARNING_FRACTION"`
	IdleTimeoutMinutes   *float64 `json:"idle_timeout_minutes,omitempty" env:"CLAWGUARD_IDLE_TIMEOUT_MINUTES"`
}

// GuardrailsConfig configures the circuit breaker.
type GuardrailsConfig struct {
	Enabled bool `json:"enabled" env:"CLAWGUARD_GUARDRAILS_ENABLED"`

	// Base thresholds applied to every agent type unless a built-in
	// profile or a per-agent override defines the field.
	Limits

	// Agents maps an agent type name to override limits. Overrides are
	// looked up by canonical name first, then by the raw configured name.
	Agents map[string]Limits `json:"agents,omitempty"`
}

// DelegationConfig configures active-agent tracking.
type DelegationConfig struct {
	// DispatchTools are tool names whose completion signals that a
	// delegated agent has handed control back.
	DispatchTools []string `json:"dispatch_tools,omitempty"`

	// StaleAfterMs is the delegation staleness window in milliseconds.
	StaleAfterMs int `json:"stale_after_ms,omitempty" env:"CLAWGUARD_DELEGATION_STALE_AFTER_MS"`
}

// RateLimitsConfig configures the optional per-session tool rate limiter.
type RateLimitsConfig struct {
	Enabled                 bool `json:"enabled" env:"CLAWGUARD_RATELIMIT_ENABLED"`
	ToolExecutionsPerMinute int  `json:"tool_executions_per_minute" env:"CLAWGUARD_RATELIMIT_TOOLS_PER_MINUTE"`
	Burst                   int  `json:"burst" env:"CLAWGUARD_RATELIMIT_BURST"`
}

// AuditConfig configures the guard decision audit trail.
type AuditConfig struct {
	Enabled     bool   `json:"enabled" env:"CLAWGUARD_AUDIT_ENABLED"`
	LogFilePath string `json:"log_file_path" env:"CLAWGUARD_AUDIT_LOG_FILE"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level     string `json:"level" env:"CLAWGUARD_LOG_LEVEL"`
	File      string `json:"file" env:"CLAWGUARD_LOG_FILE"`
	Redaction bool   `json:"redaction" env:"CLAWGUARD_LOG_REDACTION"`
}

// Config is the root configuration.
type Config struct {
	Guardrails GuardrailsConfig `json:"guardrails"`
	Delegation DelegationConfig `json:"delegation"`
	RateLimits RateLimitsConfig `json:"rate_limits"`
	Audit      AuditConfig      `json:"audit"`
	Logging    LoggingConfig    `json:"logging"`
}

// LoadConfig reads the config file at path, applies defaults for missing
// sections, and applies environment overrides. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			cfg.applyFloors()
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.applyFloors()
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clawguard.json"
	}
	return filepath.Join(home, ".clawguard", "config.json")
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyFloors clamps nonsensical values back to defaults.
func (c *Config) applyFloors() {
	if c.Delegation.StaleAfterMs <= 0 {
		c.Delegation.StaleAfterMs = DefaultStaleAfterMs
	}
	if c.RateLimits.ToolExecutionsPerMinute <= 0 {
		c.RateLimits.ToolExecutionsPerMinute = DefaultToolExecutionsPerMinute
	}
	if c.RateLimits.Burst <= 0 {
		c.RateLimits.Burst = DefaultRateLimitBurst
	}
	if len(c.Delegation.DispatchTools) == 0 {
		c.Delegation.DispatchTools = defaultDispatchTools()
	}
}
