// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package injection splices guard notices into outgoing conversation
// content right before a model invocation.
package injection

import (
	"github.com/sipeed/clawguard/pkg/logger"
	"github.com/sipeed/clawguard/pkg/providers"
	"github.com/sipeed/clawguard/pkg/session"
)

const (
	stopPrefix     = "[SYSTEM GUARD] Hard limit reached: "
	stopSuffix     = ". Stop all tool use now, summarize your progress, and hand control back.\n\n"
	advisoryPrefix = "[SYSTEM GUARD] "
	advisorySuffix = ". Wrap up your current step and prepare to hand off.\n\n"
)

// Injector reads session state and mutates the outgoing message list.
// It never writes session state and never returns an error: a message list
// it cannot act on is left untouched.
type Injector struct {
	registry *session.Registry
}

// NewInjector creates an injector over the shared session registry.
func NewInjector(registry *session.Registry) *Injector {
	return &Injector{registry: registry}
}

// Inject prepends a guard notice to the last user message when the session
// has a tripped or warning state. A hard limit always wins over a warning;
// the two are never combined. Reports whether anything was modified.
func (i *Injector) Inject(sessionKey string, messages []providers.Message) bool {
	st := i.resolve(sessionKey)
	if st == nil {
		return false
	}

	var notice string
	switch {
	case st.HardLimitHit:
		notice = stopPrefix + st.HardLimitReason + stopSuffix
	case st.WarningIssued:
		notice = advisoryPrefix + st.WarningReason + advisorySuffix
	default:
		return false
	}

	for idx := len(messages) - 1; idx >= 0; idx-- {
		if messages[idx].Role != "user" {
			continue
		}
		if providers.PrependText(&messages[idx], notice) {
			logger.DebugCF("injection", "guard notice injected", map[string]any{
				"session": sessionKey,
				"agent":   st.AgentName,
				"hard":    st.HardLimitHit,
			})
			return true
		}
		return false
	}
	return false
}

// resolve finds the session the outgoing messages belong to. When the key
// does not name a live session, fall back to any session with an active
// delegation. Best-effort only.
func (i *Injector) resolve(sessionKey string) *session.State {
	if sessionKey != "" {
		if st, ok := i.registry.Get(sessionKey); ok {
			return st
		}
	}
	if _, st, ok := i.registry.ActiveDelegation(); ok {
		return st
	}
	return nil
}
