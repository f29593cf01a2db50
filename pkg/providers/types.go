// Package providers defines the conversation types exchanged with LLM
// providers. ClawGuard never calls a model itself; these types describe the
// message lists and tool calls the host passes through the hook surface.
package providers

type Message struct {
	Role       string      `json:"role"`
	Content    interface{} `json:"content"` // string, or []interface{} of multipart segments
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool execution as reported by the host.
// A nil *ToolResult on the tool-finished path means the call failed.
type ToolResult struct {
	Content string `json:"content"`
}

// PrependText splices prefix in front of the message's first text-bearing
// content segment. For string content that is the whole body; for multipart
// content it is the first segment carrying a "text" value. Returns false if
// the message has no text-bearing segment, in which case m is unchanged.
func PrependText(m *Message, prefix string) bool {
	switch content := m.Content.(type) {
	case string:
		m.Content = prefix + content
		return true
	case []interface{}:
		for _, seg := range content {
			part, ok := seg.(map[string]interface{})
			if !ok {
				continue
			}
			text, ok := part["text"].(string)
			if !ok {
				continue
			}
			part["text"] = prefix + text
			return true
		}
		return false
	default:
		return false
	}
}
