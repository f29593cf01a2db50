package ratelimit

import (
	"testing"
	"time"
)

func TestAllowTool_Disabled(t *testing.T) {
	l := NewLimiter(Config{Enabled: false})
	for i := 0; i < 100; i++ {
		if !l.AllowTool("s1") {
			t.Fatal("Disabled limiter must always allow")
		}
	}
	if l.Len() != 0 {
		t.Errorf("Disabled limiter should not create buckets, got %d", l.Len())
	}
}

func TestAllowTool_BurstThenDeny(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, ToolExecutionsPerMinute: 60, Burst: 3})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !l.AllowTool("s1") {
			t.Fatalf("Call %d should be within burst", i+1)
		}
	}
	if l.AllowTool("s1") {
		t.Error("Fourth immediate call should be denied")
	}

	// One token refills per second at 60/min.
	now = now.Add(1100 * time.Millisecond)
	if !l.AllowTool("s1") {
		t.Error("Call should be allowed after refill")
	}
}

func TestAllowTool_PerSessionIsolation(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, ToolExecutionsPerMinute: 60, Burst: 1})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	if !l.AllowTool("s1") {
		t.Fatal("First call on s1 should pass")
	}
	if l.AllowTool("s1") {
		t.Error("Second call on s1 should be denied")
	}
	if !l.AllowTool("s2") {
		t.Error("s2 has its own bucket and should pass")
	}
	if l.Len() != 2 {
		t.Errorf("Expected 2 buckets, got %d", l.Len())
	}
}

func TestForget(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, ToolExecutionsPerMinute: 60, Burst: 1})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	l.AllowTool("s1")
	if l.AllowTool("s1") {
		t.Fatal("Bucket should be depleted")
	}

	l.Forget("s1")
	if l.Len() != 0 {
		t.Errorf("Expected 0 buckets after Forget, got %d", l.Len())
	}
	if !l.AllowTool("s1") {
		t.Error("A forgotten session starts with a fresh bucket")
	}
}
