// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package delegation tracks which agent currently owns a session.
//
// Ownership signals arrive from two independent directions: agent-attributed
// messages observed on the transcript, and completed dispatch tool calls.
// Neither is guaranteed to arrive, so a staleness window acts as the backstop
// that always returns control to the orchestrator.
package delegation

import (
	"time"

	"github.com/sipeed/clawguard/pkg/agents"
	"github.com/sipeed/clawguard/pkg/audit"
	"github.com/sipeed/clawguard/pkg/logger"
	"github.com/sipeed/clawguard/pkg/session"
)

// DefaultStaleWindow is how long a delegation stays credible without any
// agent-attributed activity.
const DefaultStaleWindow = 10 * time.Second

// IsStale reports whether a claimed delegation should still be believed.
// No active delegation is trivially stale; an active one goes stale once
// the last agent event falls outside the window.
func IsStale(now, lastAgentEvent time.Time, delegationActive bool, window time.Duration) bool {
	if !delegationActive {
		return true
	}
	return now.Sub(lastAgentEvent) > window
}

// Tracker maintains the session → current-agent mapping.
//
// Not safe for concurrent use on its own; the guard suite serializes every
// path that reaches it.
type Tracker struct {
	registry    *session.Registry
	trail       *audit.Trail
	staleWindow time.Duration
	now         func() time.Time
}

// NewTracker creates a tracker over the shared session registry. trail may
// be nil. staleWindow <= 0 selects DefaultStaleWindow.
func NewTracker(registry *session.Registry, trail *audit.Trail, staleWindow time.Duration) *Tracker {
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	return &Tracker{
		registry:    registry,
		trail:       trail,
		staleWindow: staleWindow,
		now:         time.Now,
	}
}

// SetClock replaces the tracker's time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// ObserveAgentMessage processes one agent-attributed message. An empty agent
// name means the orchestrator has spoken. The returned name is canonical;
// switched reports whether session ownership changed.
func (t *Tracker) ObserveAgentMessage(sessionKey, agent string) (string, bool) {
	name := agents.Canonicalize(agent)

	prev, existed := t.registry.Get(sessionKey)
	var prevName string
	if existed {
		prevName = prev.AgentName
	}

	st := t.registry.Ensure(sessionKey, name)
	st.DelegationActive = name != string(agents.Lead)
	st.LastAgentEventTime = t.now()

	switched := existed && prevName != name
	if switched {
		t.record(audit.EventIdentitySwitch, sessionKey, name, map[string]any{
			"from":       prevName,
			"generation": st.Generation,
		})
	}
	return name, switched
}

// Reconcile is called before a tool call is evaluated. When the session's
// claimed delegation has gone stale the orchestrator takes ownership back,
// which is itself an identity switch. Returns the agent the call will be
// charged to.
func (t *Tracker) Reconcile(sessionKey string) (string, bool) {
	st, ok := t.registry.Get(sessionKey)
	if !ok {
		st = t.registry.Ensure(sessionKey, "")
		return st.AgentName, false
	}

	now := t.now()
	if st.AgentName != string(agents.Lead) && IsStale(now, st.LastAgentEventTime, st.DelegationActive, t.staleWindow) {
		from := st.AgentName
		st = t.registry.Ensure(sessionKey, string(agents.Lead))
		st.DelegationActive = false
		st.LastAgentEventTime = now

		logger.InfoCF("delegation", "stale delegation, orchestrator takes over", map[string]any{
			"session": sessionKey,
			"from":    from,
		})
		t.record(audit.EventStaleTakeover, sessionKey, string(agents.Lead), map[string]any{
			"from": from,
		})
		return st.AgentName, true
	}
	return st.AgentName, false
}

// HandoffComplete processes a finished dispatch tool call. Control returns
// to the orchestrator unconditionally: a completed handoff outranks any
// message-derived belief about who is active.
func (t *Tracker) HandoffComplete(sessionKey string) {
	st, ok := t.registry.Get(sessionKey)
	if !ok {
		return
	}

	from := st.AgentName
	st = t.registry.Ensure(sessionKey, string(agents.Lead))
	st.DelegationActive = false
	st.LastAgentEventTime = t.now()

	if from != string(agents.Lead) {
		t.record(audit.EventHandoffDone, sessionKey, string(agents.Lead), map[string]any{
			"from": from,
		})
	}
}

func (t *Tracker) record(eventType audit.EventType, sessionKey, agent string, details map[string]any) {
	if t.trail == nil {
		return
	}
	t.trail.Record(audit.Event{
		EventType: eventType,
		SessionID: sessionKey,
		Agent:     agent,
		Details:   details,
		Success:   true,
	})
}
