package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is an atomic, immutable-after-create experience belonging to an
// anima: a message, tool call, or system notice.
type Event struct {
	ID      string    `json:"id"`
	AnimaID string    `json:"anima_id"`
	Type    EventType `json:"type"`
	Role    string    `json:"role,omitempty"`
	Author  string    `json:"author,omitempty"`

	Content    string                 `json:"content"`
	Summary    string                 `json:"summary,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	SessionID  string                 `json:"session_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	SourceURI  string                 `json:"source_uri,omitempty"`

	// DedupeKey, when present, must be unique per (anima_id, dedupe_key).
	DedupeKey string `json:"dedupe_key,omitempty"`

	// Importance is an optional caller-supplied score in [0,1].
	Importance *float64 `json:"importance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// ComputeDedupeKey derives the spec's deterministic dedupe key: a SHA-256
// digest of "anima|type|first-100-chars(content)|occurred_at|source",
// truncated to 32 hex characters. occurred_at is formatted RFC3339 in UTC
// so the key is stable regardless of the caller's local timezone.
func ComputeDedupeKey(animaID string, eventType EventType, content string, occurredAt time.Time, sourceURI string) string {
	trimmed := content
	if len(trimmed) > 100 {
		trimmed = trimmed[:100]
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%s",
		animaID, eventType, trimmed, occurredAt.UTC().Format(time.RFC3339Nano), sourceURI)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:32]
}
