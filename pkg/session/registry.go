// Package session tracks per-session guard state for one orchestration run.
//
// A session is one continuous agent conversation identified by a stable key.
// State is purely in-memory and scoped to the process; nothing here survives
// a restart.
package session

import (
	"sync"
	"time"

	"github.com/sipeed/clawguard/pkg/logger"
)

// MaxRecentToolCalls bounds the per-session call history used for
// repetition detection. Oldest entries are evicted first.
const MaxRecentToolCalls = 20

// DefaultStaleAfter is how long a session may sit without a tool call
// before the opportunistic sweep evicts it.
const DefaultStaleAfter = 2 * time.Hour

// ToolCallRecord is one entry in a session's bounded call history.
type ToolCallRecord struct {
	Tool     string
	ArgsHash uint64
	At       time.Time
}

// State is the guard state for a single session.
//
// ToolCallCount grows monotonically within a generation; WarningIssued and
// HardLimitHit, once set, stay set until the next identity switch. A
// generation boundary is exactly a change of AgentName on an existing
// session.
type State struct {
	AgentName string

	StartTime          time.Time
	LastToolCallTime   time.Time
	LastAgentEventTime time.Time
	LastSuccessTime    time.Time

	ToolCallCount     int
	ConsecutiveErrors int
	RecentToolCalls   []ToolCallRecord

	WarningIssued   bool
	WarningReason   string
	HardLimitHit    bool
	HardLimitReason string

	// DelegationActive is true while a subagent is believed to be working
	// and false once control has returned to the lead.
	DelegationActive bool

	// Generation counts identity switches, starting at 1.
	Generation int
}

// PushToolCall appends a record to the bounded history.
func (s *State) PushToolCall(tool string, argsHash uint64, at time.Time) {
	s.RecentToolCalls = append(s.RecentToolCalls, ToolCallRecord{
		Tool:     tool,
		ArgsHash: argsHash,
		At:       at,
	})
	if len(s.RecentToolCalls) > MaxRecentToolCalls {
		s.RecentToolCalls = s.RecentToolCalls[len(s.RecentToolCalls)-MaxRecentToolCalls:]
	}
}

// Registry owns the session-key → State map.
//
// The map itself is mutex-guarded, but the *State values it hands out are
// shared: callers on the guard's callback paths must serialize access, which
// the guard suite does by holding its own lock for the duration of each
// callback.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*State
	defaultAgent string
	now          func() time.Time
	onEvict      func(sessionKey, agent string)
}

// NewRegistry creates an empty registry. Sessions created without an
// explicit agent name start under defaultAgent.
func NewRegistry(defaultAgent string) *Registry {
	return &Registry{
		sessions:     make(map[string]*State),
		defaultAgent: defaultAgent,
		now:          time.Now,
	}
}

// OnEvict installs a callback invoked for every session removed by the
// stale sweep. Called with the registry lock held; the callback must not
// call back into the registry.
func (r *Registry) OnEvict(fn func(sessionKey, agent string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// SetClock replaces the registry's time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Ensure returns the session's state, creating it if absent. A non-empty
// agentName that differs from the stored one performs the identity-switch
// reset: counters and sticky flags clear, StartTime and LastSuccessTime
// advance, the session key and generation lineage are preserved.
// LastToolCallTime is always refreshed.
func (r *Registry) Ensure(sessionKey, agentName string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	st, ok := r.sessions[sessionKey]
	if !ok {
		name := agentName
		if name == "" {
			name = r.defaultAgent
		}
		st = newState(name, now)
		r.sessions[sessionKey] = st
		logger.DebugCF("session", "session created", map[string]any{
			"session": sessionKey,
			"agent":   name,
		})
	} else if agentName != "" && agentName != st.AgentName {
		resetForIdentitySwitch(st, agentName, now)
		logger.InfoCF("session", "identity switch", map[string]any{
			"session":    sessionKey,
			"agent":      agentName,
			"generation": st.Generation,
		})
	}

	st.LastToolCallTime = now
	return st
}

// Get is a read-only lookup with no side effects.
func (r *Registry) Get(sessionKey string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionKey]
	return st, ok
}

// Start creates a fresh session after sweeping out any session whose last
// tool call is older than staleAfter. The sweep runs here, opportunistically,
// rather than on a timer.
func (r *Registry) Start(sessionKey, agentName string, staleAfter time.Duration) *State {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	for key, st := range r.sessions {
		if now.Sub(st.LastToolCallTime) > staleAfter {
			delete(r.sessions, key)
			logger.InfoCF("session", "stale session evicted", map[string]any{
				"session": key,
				"agent":   st.AgentName,
			})
			if r.onEvict != nil {
				r.onEvict(key, st.AgentName)
			}
		}
	}

	if agentName == "" {
		agentName = r.defaultAgent
	}
	st := newState(agentName, now)
	st.LastToolCallTime = now
	r.sessions[sessionKey] = st
	return st
}

// End removes the session unconditionally.
func (r *Registry) End(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ActiveDelegation scans for a session with an active delegation. Best-effort
// resolution for paths that cannot name a session directly; map order makes
// the pick arbitrary when several are active.
func (r *Registry) ActiveDelegation() (string, *State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, st := range r.sessions {
		if st.DelegationActive {
			return key, st, true
		}
	}
	return "", nil, false
}

func newState(agentName string, now time.Time) *State {
	return &State{
		AgentName:          agentName,
		StartTime:          now,
		LastAgentEventTime: now,
		LastSuccessTime:    now,
		Generation:         1,
	}
}

func resetForIdentitySwitch(st *State, agentName string, now time.Time) {
	st.AgentName = agentName
	st.StartTime = now
	st.LastSuccessTime = now
	st.ToolCallCount = 0
	st.ConsecutiveErrors = 0
	st.RecentToolCalls = nil
	st.WarningIssued = false
	st.WarningReason = ""
	st.HardLimitHit = false
	st.HardLimitReason = ""
	st.Generation++
}
