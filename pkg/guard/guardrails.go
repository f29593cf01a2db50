// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package guard implements the circuit breaker that caps what a single
// agent session can do: tool call count, wall-clock duration, consecutive
// identical calls, and consecutive failures. Protection is two-layered: a
// one-shot soft warning when a metric crosses a fraction of its limit, then
// a sticky hard block when any metric reaches the limit itself.
package guard

import (
	"time"

	"github.com/sipeed/clawguard/pkg/audit"
	"github.com/sipeed/clawguard/pkg/config"
	"github.com/sipeed/clawguard/pkg/logger"
	"github.com/sipeed/clawguard/pkg/session"
)

// Evaluator is the circuit breaker. It must be externally serialized: the
// suite holds its lock across every callback that reaches the evaluator.
type Evaluator struct {
	enabled  bool
	registry *session.Registry
	resolver *Resolver
	trail    *audit.Trail
	now      func() time.Time
}

// NewEvaluator creates the circuit breaker. The enabled flag is read here,
// once: a disabled evaluator turns every entry point into a no-op that
// performs no reads or writes. trail may be nil.
func NewEvaluator(cfg *config.GuardrailsConfig, registry *session.Registry, trail *audit.Trail) *Evaluator {
	return &Evaluator{
		enabled:  cfg == nil || cfg.Enabled,
		registry: registry,
		resolver: NewResolver(cfg),
		trail:    trail,
		now:      time.Now,
	}
}

// SetClock replaces the evaluator's time source. Tests only.
func (e *Evaluator) SetClock(now func() time.Time) { e.now = now }

// Enabled reports whether the breaker is active.
func (e *Evaluator) Enabled() bool { return e.enabled }

// Check evaluates one impending tool call against the session's effective
// profile. A nil return means the call may proceed; a non-nil return matches
// ErrBlocked and the host must refuse the call.
//
// The blocked short circuit comes first: once a session's hard limit has
// tripped, no counter moves and no metric is re-evaluated until the next
// identity switch.
func (e *Evaluator) Check(sessionKey, toolName string, args map[string]any) error {
	if !e.enabled {
		return nil
	}

	st := e.registry.Ensure(sessionKey, "")
	if st.HardLimitHit {
		return &AlreadyBlockedError{Agent: st.AgentName, Reason: st.HardLimitReason}
	}

	_, prof := e.resolver.Resolve(st.AgentName)
	now := e.now()

	st.ToolCallCount++
	st.PushToolCall(toolName, ArgsHash(args), now)
	run := repetitionRun(st.RecentToolCalls)
	elapsed := now.Sub(st.StartTime).Minutes()

	if err := e.hardCheck(sessionKey, st, prof, run, elapsed); err != nil {
		return err
	}

	e.softCheck(sessionKey, st, prof, run, elapsed)
	return nil
}

// RecordResult feeds a tool outcome back into the session. Success clears
// the consecutive-error streak; failure extends it. The next Check call
// enforces the error limit.
func (e *Evaluator) RecordResult(sessionKey string, success bool) {
	if !e.enabled {
		return
	}

	st := e.registry.Ensure(sessionKey, "")
	if success {
		st.ConsecutiveErrors = 0
		st.LastSuccessTime = e.now()
		return
	}
	st.ConsecutiveErrors++
}

// hardCheck evaluates the four hard conditions in fixed order and acts on
// the first one met.
func (e *Evaluator) hardCheck(sessionKey string, st *session.State, prof Profile, run int, elapsed float64) error {
	conditions := []struct {
		metric  Metric
		met     bool
		current float64
		limit   float64
	}{
		{MetricToolCalls, st.ToolCallCount >= prof.MaxToolCalls, float64(st.ToolCallCount), float64(prof.MaxToolCalls)},
		{MetricDuration, elapsed >= prof.MaxDurationMinutes, elapsed, prof.MaxDurationMinutes},
		{MetricRepetition, run >= prof.MaxRepetition, float64(run), float64(prof.MaxRepetition)},
		{MetricErrors, st.ConsecutiveErrors >= prof.MaxConsecutiveErrors, float64(st.ConsecutiveErrors), float64(prof.MaxConsecutiveErrors)},
	}

	for _, c := range conditions {
		if !c.met {
			continue
		}
		lerr := &LimitError{Metric: c.metric, Agent: st.AgentName, Current: c.current, Limit: c.limit}
		st.HardLimitHit = true
		st.HardLimitReason = lerr.Error()

		logger.WarnCF("guardrails", "hard limit tripped", map[string]any{
			"session": sessionKey,
			"agent":   st.AgentName,
			"metric":  string(c.metric),
			"ratio":   lerr.Ratio(),
		})
		e.record(audit.EventGuardBlock, sessionKey, st.AgentName, map[string]any{
			"metric": string(c.metric),
			"ratio":  lerr.Ratio(),
		})
		return lerr
	}
	return nil
}

// softCheck issues the one-shot advisory warning. It never fires twice in a
// generation and never blocks.
func (e *Evaluator) softCheck(sessionKey string, st *session.State, prof Profile, run int, elapsed float64) {
	if st.WarningIssued {
		return
	}

	frac := prof.WarningFraction
	var metric Metric
	switch {
	case float64(st.ToolCallCount) >= frac*float64(prof.MaxToolCalls):
		metric = MetricToolCalls
	case elapsed >= frac*prof.MaxDurationMinutes:
		metric = MetricDuration
	case float64(run) >= frac*float64(prof.MaxRepetition):
		metric = MetricRepetition
	case float64(st.ConsecutiveErrors) >= frac*float64(prof.MaxConsecutiveErrors):
		metric = MetricErrors
	default:
		return
	}

	st.WarningIssued = true
	st.WarningReason = warningMessage(metric, st, prof, run, elapsed)

	logger.InfoCF("guardrails", "warning threshold crossed", map[string]any{
		"session": sessionKey,
		"agent":   st.AgentName,
		"metric":  string(metric),
	})
	e.record(audit.EventGuardWarning, sessionKey, st.AgentName, map[string]any{
		"metric": string(metric),
	})
}

func warningMessage(metric Metric, st *session.State, prof Profile, run int, elapsed float64) string {
	le := LimitError{Metric: metric, Agent: st.AgentName}
	switch metric {
	case MetricToolCalls:
		le.Current, le.Limit = float64(st.ToolCallCount), float64(prof.MaxToolCalls)
	case MetricDuration:
		le.Current, le.Limit = elapsed, prof.MaxDurationMinutes
	case MetricRepetition:
		le.Current, le.Limit = float64(run), float64(prof.MaxRepetition)
	case MetricErrors:
		le.Current, le.Limit = float64(st.ConsecutiveErrors), float64(prof.MaxConsecutiveErrors)
	}
	return "approaching " + string(metric) + " limit (" + le.Ratio() + ")"
}

func (e *Evaluator) record(eventType audit.EventType, sessionKey, agent string, details map[string]any) {
	if e.trail == nil {
		return
	}
	e.trail.Record(audit.Event{
		EventType: eventType,
		SessionID: sessionKey,
		Agent:     agent,
		Details:   details,
	})
}
