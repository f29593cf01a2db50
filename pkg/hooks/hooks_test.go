package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/sipeed/clawguard/pkg/providers"
)

func testMessages(bodies ...string) []providers.Message {
	msgs := make([]providers.Message, 0, len(bodies))
	for _, b := range bodies {
		msgs = append(msgs, providers.Message{Role: "user", Content: b})
	}
	return msgs
}

func TestTriggerBeforeToolCall_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string

	r.OnBeforeToolCall("second", 20, func(ctx context.Context, ev *BeforeToolCallEvent) error {
		order = append(order, "second")
		return nil
	})
	r.OnBeforeToolCall("first", 10, func(ctx context.Context, ev *BeforeToolCallEvent) error {
		order = append(order, "first")
		return nil
	})

	r.TriggerBeforeToolCall(context.Background(), &BeforeToolCallEvent{ToolName: "shell"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected [first second], got %v", order)
	}
}

func TestTriggerBeforeToolCall_CancelStopsChain(t *testing.T) {
	r := NewRegistry()
	ran := false

	r.OnBeforeToolCall("blocker", 10, func(ctx context.Context, ev *BeforeToolCallEvent) error {
		ev.Cancel = true
		ev.CancelReason = "blocked"
		return nil
	})
	r.OnBeforeToolCall("late", 20, func(ctx context.Context, ev *BeforeToolCallEvent) error {
		ran = true
		return nil
	})

	ev := &BeforeToolCallEvent{ToolName: "shell"}
	r.TriggerBeforeToolCall(context.Background(), ev)

	if !ev.Cancel || ev.CancelReason != "blocked" {
		t.Errorf("Expected canceled event, got %+v", ev)
	}
	if ran {
		t.Error("Handlers after a cancel should not run")
	}
}

func TestTriggerBeforeToolCall_FillsCallID(t *testing.T) {
	r := NewRegistry()
	ev := &BeforeToolCallEvent{ToolName: "shell"}
	r.TriggerBeforeToolCall(context.Background(), ev)
	if ev.CallID == "" {
		t.Error("Expected CallID to be generated")
	}

	ev2 := &BeforeToolCallEvent{ToolName: "shell", CallID: "keep-me"}
	r.TriggerBeforeToolCall(context.Background(), ev2)
	if ev2.CallID != "keep-me" {
		t.Errorf("Existing CallID should be preserved, got %q", ev2.CallID)
	}
}

func TestTrigger_PanicIsRecovered(t *testing.T) {
	r := NewRegistry()
	ran := false

	r.OnAgentMessage("panics", 10, func(ctx context.Context, ev *AgentMessageEvent) error {
		panic("boom")
	})
	r.OnAgentMessage("survives", 20, func(ctx context.Context, ev *AgentMessageEvent) error {
		ran = true
		return nil
	})

	r.TriggerAgentMessage(context.Background(), &AgentMessageEvent{SessionKey: "s1"})
	if !ran {
		t.Error("A panicking handler must not take down the rest of the chain")
	}
}

func TestTrigger_ErrorDoesNotStopChain(t *testing.T) {
	r := NewRegistry()
	ran := false

	r.OnAfterToolCall("errs", 10, func(ctx context.Context, ev *AfterToolCallEvent) error {
		return errors.New("handler failed")
	})
	r.OnAfterToolCall("ok", 20, func(ctx context.Context, ev *AfterToolCallEvent) error {
		ran = true
		return nil
	})

	r.TriggerAfterToolCall(context.Background(), &AfterToolCallEvent{ToolName: "shell"})
	if !ran {
		t.Error("An erroring handler must not stop dispatch")
	}
}

func TestTriggerModelInput_HandlersMutateMessages(t *testing.T) {
	r := NewRegistry()
	r.OnModelInput("tagger", 10, func(ctx context.Context, ev *ModelInputEvent) error {
		for i := range ev.Messages {
			if s, ok := ev.Messages[i].Content.(string); ok {
				ev.Messages[i].Content = "* " + s
			}
		}
		return nil
	})

	ev := &ModelInputEvent{Messages: testMessages("hello")}
	r.TriggerModelInput(context.Background(), ev)

	if got := ev.Messages[0].Content.(string); got != "* hello" {
		t.Errorf("Expected mutated content, got %q", got)
	}
}
