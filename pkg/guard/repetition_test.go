package guard

import (
	"testing"
	"time"

	"github.com/sipeed/clawguard/pkg/session"
)

func TestArgsHash_NilUsesSentinel(t *testing.T) {
	if ArgsHash(nil) != sentinelHash {
		t.Error("Nil args should hash to the sentinel")
	}
	// Two argument-less calls must collide.
	if ArgsHash(nil) != ArgsHash(nil) {
		t.Error("Sentinel hashes must be equal")
	}
}

func TestArgsHash_Deterministic(t *testing.T) {
	a := map[string]any{"path": "/tmp/x", "recursive": true}
	b := map[string]any{"recursive": true, "path": "/tmp/x"}
	if ArgsHash(a) != ArgsHash(b) {
		t.Error("Insertion order must not change the hash")
	}

	c := map[string]any{"path": "/tmp/y", "recursive": true}
	if ArgsHash(a) == ArgsHash(c) {
		t.Error("Different args should hash differently")
	}
}

func TestArgsHash_EmptyMapDiffersFromNil(t *testing.T) {
	if ArgsHash(map[string]any{}) == sentinelHash {
		t.Error("An empty args object is structured and should not collide with nil")
	}
}

func rec(tool string, hash uint64) session.ToolCallRecord {
	return session.ToolCallRecord{Tool: tool, ArgsHash: hash, At: time.Now()}
}

func TestRepetitionRun(t *testing.T) {
	tests := []struct {
		name    string
		history []session.ToolCallRecord
		want    int
	}{
		{"empty history", nil, 0},
		{"single call", []session.ToolCallRecord{rec("ls", 1)}, 1},
		{
			"three identical",
			[]session.ToolCallRecord{rec("ls", 1), rec("ls", 1), rec("ls", 1)},
			3,
		},
		{
			"mismatch restarts the run",
			[]session.ToolCallRecord{rec("ls", 1), rec("ls", 1), rec("cat", 2), rec("ls", 1), rec("ls", 1)},
			2,
		},
		{
			"same tool different args",
			[]session.ToolCallRecord{rec("ls", 1), rec("ls", 2)},
			1,
		},
		{
			"same hash different tool",
			[]session.ToolCallRecord{rec("ls", 0), rec("pwd", 0)},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repetitionRun(tt.history); got != tt.want {
				t.Errorf("repetitionRun() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRepetitionRun_BoundedHistory(t *testing.T) {
	st := &session.State{}
	for i := 0; i < session.MaxRecentToolCalls+5; i++ {
		st.PushToolCall("ls", 1, time.Now())
	}
	if len(st.RecentToolCalls) != session.MaxRecentToolCalls {
		t.Fatalf("Expected bounded history, got %d", len(st.RecentToolCalls))
	}
	if got := repetitionRun(st.RecentToolCalls); got != session.MaxRecentToolCalls {
		t.Errorf("Run over full bounded history = %d, want %d", got, session.MaxRecentToolCalls)
	}
}
