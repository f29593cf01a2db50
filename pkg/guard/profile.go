package guard

import (
	"time"

	"github.com/sipeed/clawguard/pkg/agents"
	"github.com/sipeed/clawguard/pkg/config"
)

// Profile is a fully resolved threshold set for one agent.
type Profile struct {
	MaxToolCalls         int
	MaxDurationMinutes   float64
	MaxRepetition        int
	MaxConsecutiveErrors int
	WarningFraction      float64
	IdleTimeout          time.Duration
}

// fallbackProfile is the floor under every configuration layer, used only
// for fields no layer defines.
func fallbackProfile() Profile {
	return Profile{
		MaxToolCalls:         50,
		MaxDurationMinutes:   30,
		MaxRepetition:        3,
		MaxConsecutiveErrors: 3,
		WarningFraction:      config.DefaultWarningFraction,
		IdleTimeout:          time.Duration(config.DefaultIdleTimeoutMinutes) * time.Minute,
	}
}

// builtinLimits holds the per-type built-in profiles. They define the four
// hard limits and leave warning fraction and idle timeout to the base
// configuration. An agent type absent here resolves through the lead's
// profile: an unrecognized type must never inherit unrestricted limits.
var builtinLimits = map[string]config.Limits{
	string(agents.Lead):       limits(75, 45, 3, 4),
	string(agents.Coder):      limits(120, 60, 3, 5),
	string(agents.Researcher): limits(80, 40, 3, 4),
	string(agents.Reviewer):   limits(40, 20, 3, 3),
	string(agents.Tester):     limits(90, 45, 3, 5),
}

func limits(calls int, minutes float64, reps, errs int) config.Limits {
	return config.Limits{
		MaxToolCalls:         &calls,
		MaxDurationMinutes:   &minutes,
		MaxRepetition:        &reps,
		MaxConsecutiveErrors: &errs,
	}
}

// Resolver produces effective profiles from the three configuration layers:
// base config, built-in per-type profile, user override (lowest to highest
// priority). Each field is taken from the highest layer that defines it.
type Resolver struct {
	cfg *config.GuardrailsConfig
}

// NewResolver creates a resolver over the loaded guardrails configuration.
func NewResolver(cfg *config.GuardrailsConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve canonicalizes rawName and returns its effective profile along with
// the canonical name. Resolution runs per call, not cached: the active agent
// for a session may have just changed.
func (r *Resolver) Resolve(rawName string) (string, Profile) {
	canonical := agents.Canonicalize(rawName)

	builtinKey := canonical
	builtin, ok := builtinLimits[builtinKey]
	if !ok {
		builtinKey = string(agents.Lead)
		builtin = builtinLimits[builtinKey]
	}

	p := fallbackProfile()
	if r.cfg != nil {
		applyLimits(&p, r.cfg.Limits)
	}
	applyLimits(&p, builtin)
	if override, ok := r.lookupOverride(canonical, builtinKey, rawName); ok {
		applyLimits(&p, override)
	}
	return canonical, p
}

// lookupOverride tries the user override table under the canonical name,
// then the built-in profile key actually used, then the original raw name.
// The latter two keep older configs keyed by routed names working.
func (r *Resolver) lookupOverride(canonical, builtinKey, rawName string) (config.Limits, bool) {
	if r.cfg == nil || len(r.cfg.Agents) == 0 {
		return config.Limits{}, false
	}
	for _, key := range []string{canonical, builtinKey, rawName} {
		if l, ok := r.cfg.Agents[key]; ok {
			return l, true
		}
	}
	return config.Limits{}, false
}

func applyLimits(p *Profile, l config.Limits) {
	if l.MaxToolCalls != nil {
		p.MaxToolCalls = *l.MaxToolCalls
	}
	if l.MaxDurationMinutes != nil {
		p.MaxDurationMinutes = *l.MaxDurationMinutes
	}
	if l.MaxRepetition != nil {
		p.MaxRepetition = *l.MaxRepetition
	}
	if l.MaxConsecutiveErrors != nil {
		p.MaxConsecutiveErrors = *l.MaxConsecutiveErrors
	}
	if l.WarningFraction != nil {
		p.WarningFraction = *l.WarningFraction
	}
	if l.IdleTimeoutMinutes != nil {
		p.IdleTimeout = time.Duration(*l.IdleTimeoutMinutes * float64(time.Minute))
	}
}
