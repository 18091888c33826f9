package types

import "encoding/json"
import "time"

// Knowledge is a durable, epistemically-typed fact distilled from one or
// more Memories.
type Knowledge struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Type    KnowledgeType `json:"type"`
	Topic   string        `json:"topic,omitempty"`
	Content string        `json:"content"`
	Summary string        `json:"summary,omitempty"`

	Confidence float64             `json:"confidence"`
	SourceType KnowledgeSourceType `json:"source_type"`

	// SourceMemoryID is the memory this knowledge item was distilled from,
	// when SourceType is INTERNAL. Not named as its own column in spec.md
	// §3, but required by §4.6's "replace" dedup policy ("delete existing
	// knowledge linked to this memory first") — see DESIGN.md open
	// question KNOW-SRC.
	SourceMemoryID string `json:"source_memory_id,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// KnowledgeAuditLog is an immutable, append-only trail row recording one
// mutation to one Knowledge item.
type KnowledgeAuditLog struct {
	ID          string          `json:"id"`
	KnowledgeID string          `json:"knowledge_id"`
	Action      AuditAction     `json:"action"`
	SourceType  string          `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Summary     string          `json:"change_summary,omitempty"`
	Trigger     string          `json:"trigger"`
	CreatedAt   time.Time       `json:"created_at"`
}
