// Package audit records guard decisions with tamper-evident formatting.
// Every blocked tool call, identity switch, and stale takeover lands here
// as a hash-chained JSONL entry, so a run can be reconstructed after the
// fact even when console logs are gone.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventGuardWarning   EventType = "guard_warning"
	EventGuardBlock     EventType = "guard_block"
	EventIdentitySwitch EventType = "identity_switch"
	EventStaleTakeover  EventType = "stale_takeover"
	EventHandoffDone    EventType = "handoff_complete"
	EventSessionEvicted EventType = "session_evicted"
	EventRateLimitHit   EventType = "rate_limit_hit"
)

// Event represents a single audit event.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	SessionID    string         `json:"session_id,omitempty"`
	Agent        string         `json:"agent,omitempty"`
	Action       string         `json:"action,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	Hash         string         `json:"hash,omitempty"`
	PreviousHash string         `json:"previous_hash,omitempty"`
}

// Config holds audit trail configuration.
type Config struct {
	Enabled     bool
	SecretKey   []byte // Key for HMAC signatures
	LogFilePath string
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Enabled:     true,
		SecretKey:   []byte{}, // Will be generated if empty
		LogFilePath: filepath.Join(home, ".clawguard", "audit.log"),
	}
}

// Trail is an append-only, hash-chained audit log. Each event's HMAC covers
// the previous event's hash, so truncation or in-place edits break the chain.
type Trail struct {
	config   Config
	file     *os.File
	mu       sync.Mutex
	lastHash string
}

// NewTrail opens the audit log file and prepares the trail. A disabled
// config yields a trail whose Record is a no-op.
func NewTrail(config Config) (*Trail, error) {
	t := &Trail{config: config}
	if !config.Enabled {
		return t, nil
	}

	dir := filepath.Dir(config.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	t.file = file

	if len(t.config.SecretKey) == 0 {
		t.config.SecretKey = generateSecretKey()
	}
	return t, nil
}

// Close closes the audit log file.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// Record appends an event to the trail. ID and Timestamp are filled in when
// empty. Write failures are returned but never fatal to the caller.
func (t *Trail) Record(event Event) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Action == "" {
		event.Action = string(event.EventType)
	}

	event.PreviousHash = t.lastHash
	event.Hash = t.computeHash(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if t.file != nil {
		if _, err := t.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event: %w", err)
		}
	}

	t.lastHash = event.Hash
	return nil
}

// computeHash computes an HMAC hash of the event for integrity verification.
func (t *Trail) computeHash(event Event) string {
	signData := fmt.Sprintf("%s|%s|%s|%s|%s|%v|%s",
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		event.EventType,
		event.SessionID,
		event.Agent,
		event.Success,
		event.PreviousHash,
	)

	h := hmac.New(sha256.New, t.config.SecretKey)
	h.Write([]byte(signData))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// generateSecretKey generates a random secret key for HMAC.
func generateSecretKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		for i := range key {
			key[i] = byte(time.Now().UnixNano() % 256)
		}
	}
	return key
}
