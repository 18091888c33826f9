package types

import (
	"encoding/json"
	"time"
)

// MemoryPack is the persisted artefact produced by the pack compiler: a
// snapshot of everything injected into an LLM context for one compile
// call, kept for audit/replay and pruned by the retention janitor (C9).
type MemoryPack struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Query  string `json:"query,omitempty"`
	Preset string `json:"preset,omitempty"`

	SessionMemoryCount  int `json:"session_memory_count"`
	KnowledgeCount      int `json:"knowledge_count"`
	LongTermMemoryCount int `json:"long_term_memory_count"`

	TokenCount int `json:"token_count"`
	MaxTokens  int `json:"max_tokens"`

	// Content is the serialized pack payload: identity summary, temporal
	// context, layered scored items, and a config echo.
	Content json.RawMessage `json:"content"`

	CompiledAt time.Time `json:"compiled_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
