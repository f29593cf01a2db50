// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package hooks

import (
	"time"

	"github.com/sipeed/clawguard/pkg/providers"
)

// AgentMessageEvent is fired when an agent-attributed message is observed
// on the transcript. An empty Agent means the orchestrator spoke.
type AgentMessageEvent struct {
	SessionKey string
	Agent      string
	Content    string
}

// BeforeToolCallEvent is fired before a tool is executed.
// Handlers can modify Args, or set Cancel to block execution.
type BeforeToolCallEvent struct {
	ToolName     string
	SessionKey   string
	CallID       string
	Args         map[string]any // Modifiable
	Cancel       bool
	CancelReason string // Message returned to LLM when canceled
}

// AfterToolCallEvent is fired after a tool completes execution.
// A nil Result means the call failed.
type AfterToolCallEvent struct {
	ToolName   string
	SessionKey string
	CallID     string
	Args       map[string]any
	Duration   time.Duration
	Result     *providers.ToolResult
}

// ModelInputEvent is fired before the message list is sent to the model.
// Handlers may mutate Messages in place.
type ModelInputEvent struct {
	SessionKey string
	Messages   []providers.Message
}

// SessionEvent is fired at session start and end.
type SessionEvent struct {
	SessionKey string
	Agent      string
}
