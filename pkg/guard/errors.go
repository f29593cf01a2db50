package guard

import (
	"errors"
	"fmt"
)

// ErrBlocked is the sentinel every blocking guard error matches via
// errors.Is. Hosts translate a matching error into "reject this tool call
// and return the message to the model".
var ErrBlocked = errors.New("tool call blocked by guardrails")

// Metric names the threshold a limit error breached.
type Metric string

const (
	MetricToolCalls  Metric = "tool_calls"
	MetricDuration   Metric = "duration"
	MetricRepetition Metric = "repetition"
	MetricErrors     Metric = "consecutive_errors"
)

// LimitError reports a hard limit breach. Current and Limit carry the
// breached metric's values; for duration they are minutes.
type LimitError struct {
	Metric  Metric
	Agent   string
	Current float64
	Limit   float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", blockPreamble(e.Agent), metricMessage(e.Metric), e.Ratio())
}

func (e *LimitError) Unwrap() error { return ErrBlocked }

// Ratio renders "current/limit", e.g. "5/5" or "61.2/60".
func (e *LimitError) Ratio() string {
	return fmt.Sprintf("%s/%s", trimFloat(e.Current), trimFloat(e.Limit))
}

// AlreadyBlockedError is the fast-fail result once a session's hard limit
// has tripped: no metrics are re-evaluated and no counters move.
type AlreadyBlockedError struct {
	Agent  string
	Reason string
}

func (e *AlreadyBlockedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return blockPreamble(e.Agent) + ": session is blocked until the next agent handoff"
}

func (e *AlreadyBlockedError) Unwrap() error { return ErrBlocked }

func blockPreamble(agent string) string {
	if agent == "" {
		return "agent stopped by guardrails"
	}
	return fmt.Sprintf("agent %q stopped by guardrails", agent)
}

func metricMessage(m Metric) string {
	switch m {
	case MetricToolCalls:
		return "maximum tool calls reached"
	case MetricDuration:
		return "maximum session duration reached, minutes"
	case MetricRepetition:
		return "identical call repeated too many times"
	case MetricErrors:
		return "too many consecutive tool failures"
	default:
		return "limit reached"
	}
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
