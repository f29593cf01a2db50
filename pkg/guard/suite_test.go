package guard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/clawguard/pkg/config"
	"github.com/sipeed/clawguard/pkg/hooks"
	"github.com/sipeed/clawguard/pkg/providers"
)

type suiteHarness struct {
	suite *Suite
	hr    *hooks.Registry
	now   time.Time
	ctx   context.Context
}

func newSuiteHarness(t *testing.T, mutate func(*config.Config)) *suiteHarness {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	h := &suiteHarness{
		hr:  hooks.NewRegistry(),
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ctx: context.Background(),
	}
	s, err := NewSuite(cfg, WithClock(func() time.Time { return h.now }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h.suite = s
	s.Attach(h.hr)
	return h
}

func (h *suiteHarness) agentMessage(session, agent string) {
	h.hr.TriggerAgentMessage(h.ctx, &hooks.AgentMessageEvent{SessionKey: session, Agent: agent})
}

func (h *suiteHarness) toolCall(session, tool string, args map[string]any) *hooks.BeforeToolCallEvent {
	ev := &hooks.BeforeToolCallEvent{SessionKey: session, ToolName: tool, Args: args}
	h.hr.TriggerBeforeToolCall(h.ctx, ev)
	return ev
}

func (h *suiteHarness) toolDone(session, tool string, ok bool) {
	ev := &hooks.AfterToolCallEvent{SessionKey: session, ToolName: tool}
	if ok {
		ev.Result = &providers.ToolResult{Content: "done"}
	}
	h.hr.TriggerAfterToolCall(h.ctx, ev)
}

func TestSuite_BlocksAtToolCallLimit(t *testing.T) {
	h := newSuiteHarness(t, func(cfg *config.Config) {
		cfg.Guardrails.Agents["coder"] = config.Limits{MaxToolCalls: intPtr(3)}
	})

	h.agentMessage("s1", "coder")

	for i := 1; i <= 2; i++ {
		ev := h.toolCall("s1", "shell", map[string]any{"n": i})
		assert.False(t, ev.Cancel, "call %d should pass", i)
		h.toolDone("s1", "shell", true)
	}

	ev := h.toolCall("s1", "shell", map[string]any{"n": 3})
	assert.True(t, ev.Cancel, "third call should be canceled")
	assert.Contains(t, ev.CancelReason, "3/3")

	// Sticky until the next identity switch.
	ev = h.toolCall("s1", "shell", map[string]any{"n": 4})
	assert.True(t, ev.Cancel)
}

func TestSuite_HandoffResetsBreaker(t *testing.T) {
	h := newSuiteHarness(t, func(cfg *config.Config) {
		cfg.Guardrails.Agents["coder"] = config.Limits{MaxToolCalls: intPtr(2)}
	})

	h.agentMessage("s1", "coder")
	h.toolCall("s1", "shell", map[string]any{"n": 1})
	ev := h.toolCall("s1", "shell", map[string]any{"n": 2})
	require.True(t, ev.Cancel)

	h.toolDone("s1", "handoff", true)

	st, ok := h.suite.Registry().Get("s1")
	require.True(t, ok)
	assert.Equal(t, "lead", st.AgentName)
	assert.False(t, st.HardLimitHit, "handoff is an identity switch, the block clears")

	ev = h.toolCall("s1", "shell", map[string]any{"n": 3})
	assert.False(t, ev.Cancel, "the lead gets a fresh generation")
}

func TestSuite_StaleDelegationChargesLead(t *testing.T) {
	h := newSuiteHarness(t, nil)

	h.agentMessage("s1", "researcher")
	h.now = h.now.Add(15 * time.Second)

	ev := h.toolCall("s1", "web_search", map[string]any{"q": "x"})
	assert.False(t, ev.Cancel)

	st, ok := h.suite.Registry().Get("s1")
	require.True(t, ok)
	assert.Equal(t, "lead", st.AgentName, "stale delegation falls back to the orchestrator")
}

func TestSuite_InjectsStopInstruction(t *testing.T) {
	h := newSuiteHarness(t, func(cfg *config.Config) {
		cfg.Guardrails.Agents["coder"] = config.Limits{MaxToolCalls: intPtr(1)}
	})

	h.agentMessage("s1", "coder")
	ev := h.toolCall("s1", "shell", map[string]any{"n": 1})
	require.True(t, ev.Cancel)

	in := &hooks.ModelInputEvent{
		SessionKey: "s1",
		Messages:   []providers.Message{{Role: "user", Content: "keep going"}},
	}
	h.hr.TriggerModelInput(h.ctx, in)

	body, ok := in.Messages[0].Content.(string)
	require.True(t, ok)
	assert.True(t, strings.Contains(body, "Hard limit reached"), "got %q", body)
	assert.True(t, strings.HasSuffix(body, "keep going"))
}

func TestSuite_SessionLifecycle(t *testing.T) {
	h := newSuiteHarness(t, nil)

	h.hr.TriggerSessionStart(h.ctx, &hooks.SessionEvent{SessionKey: "s1", Agent: "coder"})
	assert.Equal(t, 1, h.suite.Registry().Len())

	st, ok := h.suite.Registry().Get("s1")
	require.True(t, ok)
	assert.Equal(t, "coder", st.AgentName)

	h.hr.TriggerSessionEnd(h.ctx, &hooks.SessionEvent{SessionKey: "s1"})
	assert.Equal(t, 0, h.suite.Registry().Len())
}

func TestSuite_RateLimitNeverBlocks(t *testing.T) {
	h := newSuiteHarness(t, func(cfg *config.Config) {
		cfg.RateLimits.Enabled = true
		cfg.RateLimits.ToolExecutionsPerMinute = 60
		cfg.RateLimits.Burst = 1
	})

	h.agentMessage("s1", "coder")
	for i := 1; i <= 5; i++ {
		ev := h.toolCall("s1", "shell", map[string]any{"n": i})
		assert.False(t, ev.Cancel, "a depleted bucket is a signal, not a block")
	}
}

func TestSuite_DisabledRegistersNothing(t *testing.T) {
	h := newSuiteHarness(t, func(cfg *config.Config) {
		cfg.Guardrails.Enabled = false
	})

	h.agentMessage("s1", "coder")
	for i := 0; i < 50; i++ {
		ev := h.toolCall("s1", "shell", nil)
		assert.False(t, ev.Cancel)
	}
	h.hr.TriggerSessionStart(h.ctx, &hooks.SessionEvent{SessionKey: "s1"})

	assert.False(t, h.suite.Enabled())
	assert.Equal(t, 0, h.suite.Registry().Len(), "disabled guard leaves no trace")
}

// Callback order after a delegation boundary is not guaranteed. Whichever
// side fires first, calls are charged to whoever was believed active at the
// moment of the call, and the coder trips at exactly its own limit.
func TestSuite_InterleavingIndependence(t *testing.T) {
	runs := []struct {
		name       string
		first      func(h *suiteHarness)
		coderCalls int // calls already charged to the coder after first()
	}{
		{"message then tool", func(h *suiteHarness) {
			h.agentMessage("s1", "coder")
			h.toolCall("s1", "shell", map[string]any{"n": 1})
		}, 1},
		{"tool then message", func(h *suiteHarness) {
			// The early call lands on the lead; the switch that follows
			// resets counters, so the coder starts clean.
			h.toolCall("s1", "shell", map[string]any{"n": 1})
			h.agentMessage("s1", "coder")
		}, 0},
	}

	for _, run := range runs {
		t.Run(run.name, func(t *testing.T) {
			h := newSuiteHarness(t, func(cfg *config.Config) {
				cfg.Guardrails.Agents["coder"] = config.Limits{MaxToolCalls: intPtr(3)}
			})
			run.first(h)

			for i := run.coderCalls + 1; i < 3; i++ {
				ev := h.toolCall("s1", "shell", map[string]any{"n": 100 + i})
				assert.False(t, ev.Cancel, "coder call %d should pass", i)
			}
			ev := h.toolCall("s1", "shell", map[string]any{"n": 200})
			assert.True(t, ev.Cancel, "coder call 3 should trip")
			assert.Contains(t, ev.CancelReason, "3/3")

			st, ok := h.suite.Registry().Get("s1")
			require.True(t, ok)
			assert.Equal(t, "coder", st.AgentName)
		})
	}
}
