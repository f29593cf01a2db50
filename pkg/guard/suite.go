// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package guard

import (
	"context"
	"sync"
	"time"

	"github.com/sipeed/clawguard/pkg/agents"
	"github.com/sipeed/clawguard/pkg/audit"
	"github.com/sipeed/clawguard/pkg/config"
	"github.com/sipeed/clawguard/pkg/delegation"
	"github.com/sipeed/clawguard/pkg/hooks"
	"github.com/sipeed/clawguard/pkg/injection"
	"github.com/sipeed/clawguard/pkg/logger"
	"github.com/sipeed/clawguard/pkg/ratelimit"
	"github.com/sipeed/clawguard/pkg/session"
)

// Suite wires the guard components to a host's hook registry. One suite is
// one independent guard instance: constructing two suites gives two fully
// isolated registries.
//
// The host's callbacks may interleave in any order, but the suite serializes
// them: every handler takes the suite lock for its full duration, so no two
// mutations of a session's state ever overlap.
type Suite struct {
	mu sync.Mutex

	enabled       bool
	registry      *session.Registry
	evaluator     *Evaluator
	tracker       *delegation.Tracker
	injector      *injection.Injector
	limiter       *ratelimit.Limiter
	trail         *audit.Trail
	ownTrail      bool
	dispatchTools map[string]struct{}
}

// Option customizes a Suite at construction.
type Option func(*suiteOptions)

type suiteOptions struct {
	clock func() time.Time
	trail *audit.Trail
}

// WithClock replaces the suite's time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(o *suiteOptions) { o.clock = now }
}

// WithTrail supplies an externally owned audit trail. The suite will not
// close it.
func WithTrail(trail *audit.Trail) Option {
	return func(o *suiteOptions) { o.trail = trail }
}

// NewSuite builds a guard from configuration. The enabled decision is made
// here, once: a disabled suite registers no hooks and touches no state.
func NewSuite(cfg *config.Config, opts ...Option) (*Suite, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var o suiteOptions
	for _, opt := range opts {
		opt(&o)
	}

	trail := o.trail
	ownTrail := false
	if trail == nil && cfg.Audit.Enabled {
		var err error
		trail, err = audit.NewTrail(audit.Config{
			Enabled:     true,
			LogFilePath: cfg.Audit.LogFilePath,
		})
		if err != nil {
			return nil, err
		}
		ownTrail = true
	}

	registry := session.NewRegistry(string(agents.Lead))
	tracker := delegation.NewTracker(registry, trail, time.Duration(cfg.Delegation.StaleAfterMs)*time.Millisecond)
	evaluator := NewEvaluator(&cfg.Guardrails, registry, trail)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:                 cfg.RateLimits.Enabled,
		ToolExecutionsPerMinute: cfg.RateLimits.ToolExecutionsPerMinute,
		Burst:                   cfg.RateLimits.Burst,
	})

	if o.clock != nil {
		registry.SetClock(o.clock)
		tracker.SetClock(o.clock)
		evaluator.SetClock(o.clock)
		limiter.SetClock(o.clock)
	}

	dispatch := make(map[string]struct{}, len(cfg.Delegation.DispatchTools))
	for _, name := range cfg.Delegation.DispatchTools {
		dispatch[name] = struct{}{}
	}

	registry.OnEvict(func(sessionKey, agent string) {
		limiter.Forget(sessionKey)
		if trail != nil {
			trail.Record(audit.Event{
				EventType: audit.EventSessionEvicted,
				SessionID: sessionKey,
				Agent:     agent,
				Success:   true,
			})
		}
	})

	return &Suite{
		enabled:       cfg.Guardrails.Enabled,
		registry:      registry,
		evaluator:     evaluator,
		tracker:       tracker,
		injector:      injection.NewInjector(registry),
		limiter:       limiter,
		trail:         trail,
		ownTrail:      ownTrail,
		dispatchTools: dispatch,
	}, nil
}

// Enabled reports whether the guard is active.
func (s *Suite) Enabled() bool { return s.enabled }

// Registry exposes the session registry for host inspection.
func (s *Suite) Registry() *session.Registry { return s.registry }

// Close releases the audit trail if the suite owns it.
func (s *Suite) Close() error {
	if s.ownTrail && s.trail != nil {
		return s.trail.Close()
	}
	return nil
}

// Attach registers the guard's handlers. A disabled suite registers
// nothing, leaving the host's hook chains untouched.
func (s *Suite) Attach(hr *hooks.Registry) {
	if !s.enabled {
		logger.InfoC("guard", "guardrails disabled, not attaching")
		return
	}
	hr.OnAgentMessage("guard.tracker", 10, s.onAgentMessage)
	hr.OnBeforeToolCall("guard.breaker", 10, s.onBeforeToolCall)
	hr.OnAfterToolCall("guard.results", 10, s.onAfterToolCall)
	hr.OnModelInput("guard.injector", 10, s.onModelInput)
	hr.OnSessionStart("guard.sessions", 10, s.onSessionStart)
	hr.OnSessionEnd("guard.sessions", 10, s.onSessionEnd)
}

func (s *Suite) onAgentMessage(ctx context.Context, ev *hooks.AgentMessageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.ObserveAgentMessage(ev.SessionKey, ev.Agent)
	return nil
}

// onBeforeToolCall is the enforcement point. The rate limiter runs first as
// a soft signal; only the circuit breaker can cancel the call.
func (s *Suite) onBeforeToolCall(ctx context.Context, ev *hooks.BeforeToolCallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, _ := s.tracker.Reconcile(ev.SessionKey)

	if !s.limiter.AllowTool(ev.SessionKey) {
		logger.WarnCF("guard", "tool rate limit hit", map[string]any{
			"session": ev.SessionKey,
			"agent":   agent,
			"tool":    ev.ToolName,
		})
		s.record(audit.EventRateLimitHit, ev.SessionKey, agent, map[string]any{
			"tool": ev.ToolName,
		})
	}

	if err := s.evaluator.Check(ev.SessionKey, ev.ToolName, ev.Args); err != nil {
		ev.Cancel = true
		ev.CancelReason = err.Error()
	}
	return nil
}

func (s *Suite) onAfterToolCall(ctx context.Context, ev *hooks.AfterToolCallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluator.RecordResult(ev.SessionKey, ev.Result != nil)
	if _, ok := s.dispatchTools[ev.ToolName]; ok {
		s.tracker.HandoffComplete(ev.SessionKey)
	}
	return nil
}

func (s *Suite) onModelInput(ctx context.Context, ev *hooks.ModelInputEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injector.Inject(ev.SessionKey, ev.Messages)
	return nil
}

func (s *Suite) onSessionStart(ctx context.Context, ev *hooks.SessionEvent) error {
	s.StartSession(ev.SessionKey, ev.Agent)
	return nil
}

func (s *Suite) onSessionEnd(ctx context.Context, ev *hooks.SessionEvent) error {
	s.EndSession(ev.SessionKey)
	return nil
}

// StartSession registers a fresh session. The agent's idle timeout drives
// the opportunistic eviction sweep.
func (s *Suite) StartSession(sessionKey, agent string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, prof := s.evaluator.resolver.Resolve(agent)
	st := s.registry.Start(sessionKey, canonical, prof.IdleTimeout)
	st.DelegationActive = canonical != string(agents.Lead)
}

// EndSession removes a session and its rate limit bucket.
func (s *Suite) EndSession(sessionKey string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.End(sessionKey)
	s.limiter.Forget(sessionKey)
}

func (s *Suite) record(eventType audit.EventType, sessionKey, agent string, details map[string]any) {
	if s.trail == nil {
		return
	}
	s.trail.Record(audit.Event{
		EventType: eventType,
		SessionID: sessionKey,
		Agent:     agent,
		Details:   details,
	})
}
