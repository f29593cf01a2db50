// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package config

// Defaults for sections with scalar floors.
const (
	DefaultStaleAfterMs            = 10_000
	DefaultToolExecutionsPerMinute = 30
	DefaultRateLimitBurst          = 10
	DefaultWarningFraction         = 0.8
	DefaultIdleTimeoutMinutes      = 120.0
)

func defaultDispatchTools() []string {
	return []string{"handoff", "spawn_agent"}
}

// DefaultConfig returns the default configuration for ClawGuard.
func DefaultConfig() *Config {
	warning := DefaultWarningFraction
	idle := DefaultIdleTimeoutMinutes

	return &Config{
		Guardrails: GuardrailsConfig{
			Enabled: true,
			Limits: Limits{
				WarningFraction:    &warning,
				IdleTimeoutMinutes: &idle,
			},
			Agents: map[string]Limits{},
		},
		Delegation: DelegationConfig{
			DispatchTools: defaultDispatchTools(),
			StaleAfterMs:  DefaultStaleAfterMs,
		},
		RateLimits: RateLimitsConfig{
			Enabled:                 false,
			ToolExecutionsPerMinute: DefaultToolExecutionsPerMinute,
			Burst:                   DefaultRateLimitBurst,
		},
		Audit: AuditConfig{
			Enabled:     false,
			LogFilePath: "",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}
