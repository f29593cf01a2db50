// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package agents defines the closed set of agent types a run can delegate to
// and the canonicalization of routed agent names.
//
// Swarm routing produces names like "node7_coder": a routing identifier
// joined to a base agent type with '_'. Canonicalization strips the routing
// prefix so that limits configured for "coder" apply to every routed coder
// instance.
package agents

import "strings"

// Type identifies a base agent type.
type Type string

const (
	// Lead is the top-level coordinating agent of a run. All sessions
	// start under the lead, and delegation hands control back to it.
	Lead Type = "lead"

	Coder      Type = "coder"
	Researcher Type = "researcher"
	Reviewer   Type = "reviewer"
	Tester     Type = "tester"
)

// KnownTypes lists every base agent type, lead first.
var KnownTypes = []Type{Lead, Coder, Researcher, Reviewer, Tester}

// IsKnown reports whether name is exactly a base agent type.
func IsKnown(name string) bool {
	for _, t := range KnownTypes {
		if name == string(t) {
			return true
		}
	}
	return false
}

// Canonicalize reduces a possibly-routed agent name to its base form.
//
// A name matches a base type when it is the type itself or ends with
// "_"+type (the part before the separator being the routing identifier).
// The longest matching type wins, so a hypothetical "unit_tester" type
// would beat "tester" for the name "node1_unit_tester". Names matching no
// known type are returned unchanged.
func Canonicalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return string(Lead)
	}

	best := ""
	for _, t := range KnownTypes {
		s := string(t)
		if name != s && !strings.HasSuffix(name, "_"+s) {
			continue
		}
		if len(s) > len(best) {
			best = s
		}
	}
	if best == "" {
		return name
	}
	return best
}
