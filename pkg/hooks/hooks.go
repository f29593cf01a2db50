// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package hooks is the callback surface between a host agent runtime and the
// guard. The host fires four lifecycle events; handlers run sequentially in
// priority order, one event at a time, so handlers may mutate shared state
// without their own locking.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sipeed/clawguard/pkg/logger"
)

// HookHandler is the callback signature for all hooks.
type HookHandler[T any] func(ctx context.Context, event *T) error

// HookRegistration tracks a handler with its priority and name.
type HookRegistration[T any] struct {
	Handler  HookHandler[T]
	Priority int // Lower = runs first
	Name     string
}

// Registry manages all lifecycle hooks.
type Registry struct {
	agentMessage   []HookRegistration[AgentMessageEvent]
	beforeToolCall []HookRegistration[BeforeToolCallEvent]
	afterToolCall  []HookRegistration[AfterToolCallEvent]
	modelInput     []HookRegistration[ModelInputEvent]
	sessionStart   []HookRegistration[SessionEvent]
	sessionEnd     []HookRegistration[SessionEvent]
	mu             sync.RWMutex
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// insertSorted inserts a registration into a new slice sorted by priority.
// Always allocates a new backing array so concurrent readers of the old slice are safe.
func insertSorted[T any](slice []HookRegistration[T], reg HookRegistration[T]) []HookRegistration[T] {
	i := 0
	for i < len(slice) && slice[i].Priority <= reg.Priority {
		i++
	}
	result := make([]HookRegistration[T], len(slice)+1)
	copy(result, slice[:i])
	result[i] = reg
	copy(result[i+1:], slice[i:])
	return result
}

// Registration methods

func (r *Registry) OnAgentMessage(name string, priority int, handler HookHandler[AgentMessageEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agentMessage = insertSorted(r.agentMessage, HookRegistration[AgentMessageEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *Registry) OnBeforeToolCall(name string, priority int, handler HookHandler[BeforeToolCallEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeToolCall = insertSorted(r.beforeToolCall, HookRegistration[BeforeToolCallEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *Registry) OnAfterToolCall(name string, priority int, handler HookHandler[AfterToolCallEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterToolCall = insertSorted(r.afterToolCall, HookRegistration[AfterToolCallEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *Registry) OnModelInput(name string, priority int, handler HookHandler[ModelInputEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelInput = insertSorted(r.modelInput, HookRegistration[ModelInputEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *Registry) OnSessionStart(name string, priority int, handler HookHandler[SessionEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionStart = insertSorted(r.sessionStart, HookRegistration[SessionEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

func (r *Registry) OnSessionEnd(name string, priority int, handler HookHandler[SessionEvent]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionEnd = insertSorted(r.sessionEnd, HookRegistration[SessionEvent]{
		Handler: handler, Priority: priority, Name: name,
	})
}

// trigger runs handlers sequentially by priority. A panicking or erroring
// handler is logged and skipped; the rest still run. When stop is non-nil,
// dispatch halts early once it reports true.
func trigger[T any](ctx context.Context, hooks []HookRegistration[T], event *T, hookName string, stop func(*T) bool) {
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCF("hooks", "Hook panic",
						map[string]any{
							"hook":    hookName,
							"handler": h.Name,
							"panic":   fmt.Sprintf("%v", r),
						})
				}
			}()
			if err := h.Handler(ctx, event); err != nil {
				logger.WarnCF("hooks", "Hook error",
					map[string]any{
						"hook":    hookName,
						"handler": h.Name,
						"error":   err.Error(),
					})
			}
		}()
		if stop != nil && stop(event) {
			logger.InfoCF("hooks", "Hook canceled operation",
				map[string]any{
					"hook":    hookName,
					"handler": h.Name,
				})
			return
		}
	}
}

// TriggerAgentMessage fires all agent_message handlers.
func (r *Registry) TriggerAgentMessage(ctx context.Context, event *AgentMessageEvent) {
	r.mu.RLock()
	hooks := r.agentMessage
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "agent_message", nil)
}

// TriggerBeforeToolCall fires before_tool_call handlers, stopping at the
// first one that sets Cancel. An empty CallID is filled in here.
func (r *Registry) TriggerBeforeToolCall(ctx context.Context, event *BeforeToolCallEvent) {
	if event.CallID == "" {
		event.CallID = uuid.NewString()
	}
	r.mu.RLock()
	hooks := r.beforeToolCall
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "before_tool_call", func(e *BeforeToolCallEvent) bool {
		return e.Cancel
	})
}

// TriggerAfterToolCall fires all after_tool_call handlers.
func (r *Registry) TriggerAfterToolCall(ctx context.Context, event *AfterToolCallEvent) {
	r.mu.RLock()
	hooks := r.afterToolCall
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "after_tool_call", nil)
}

// TriggerModelInput fires all model_input handlers. Handlers may mutate
// event.Messages in place.
func (r *Registry) TriggerModelInput(ctx context.Context, event *ModelInputEvent) {
	r.mu.RLock()
	hooks := r.modelInput
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "model_input", nil)
}

// TriggerSessionStart fires all session_start handlers.
func (r *Registry) TriggerSessionStart(ctx context.Context, event *SessionEvent) {
	r.mu.RLock()
	hooks := r.sessionStart
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "session_start", nil)
}

// TriggerSessionEnd fires all session_end handlers.
func (r *Registry) TriggerSessionEnd(ctx context.Context, event *SessionEvent) {
	r.mu.RLock()
	hooks := r.sessionEnd
	r.mu.RUnlock()
	trigger(ctx, hooks, event, "session_end", nil)
}
