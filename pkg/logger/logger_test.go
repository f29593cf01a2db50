package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"bogus", INFO},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseLevel(c.in), "input %q", c.in)
	}
}

func TestLevelGate(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)

	SetLevel(WARN)
	assert.Equal(t, WARN, GetLevel())
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.log")
	require.NoError(t, EnableFileLogging(path))
	defer DisableFileLogging()

	InfoCF("guardrails", "hard limit tripped", map[string]any{
		"session": "discord:42",
		"metric":  "tool_calls",
	})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected at least one log line")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "guardrails", entry.Component)
	assert.Equal(t, "hard limit tripped", entry.Message)
	assert.Equal(t, "discord:42", entry.Fields["session"])
}

func TestFileSinkRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.log")
	require.NoError(t, EnableFileLogging(path))
	defer DisableFileLogging()

	WarnCF("guardrails", "rejected args", map[string]any{
		"api_key": "sk-abcdefghij0123456789",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-abcdefghij0123456789")
}
