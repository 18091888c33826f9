package types

import "time"

// Memory is a consolidated interpretation of one or more Events, the atomic
// unit the synthesis pipeline produces and the dream engine curates.
type Memory struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Content string `json:"content"`
	Summary string `json:"summary"`

	// Importance and Confidence are nullable scores in [0,1].
	Importance *float64 `json:"importance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	State MemoryState `json:"state"`

	// DecayScore is refreshed by the dream engine's light-sleep phase with
	// its linear age/half-life formula. RecencyScore is stored and returned
	// as given; no code here computes it.
	RecencyScore *float64 `json:"recency_score,omitempty"`
	DecayScore   *float64 `json:"decay_score,omitempty"`

	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`

	// Metadata may carry "merged_from" ([]string) or "split_from" (string)
	// provenance set by the dream engine.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`

	// AccessCount/LastAccessedAt are stored and returned as given. The pack
	// compiler's long-term layer does not read them: it scores decay with
	// access count 0 and updated_at as last_accessed (§4.5 step 7).
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// MergedFrom extracts the "merged_from" provenance list from Metadata, if
// present.
func (m *Memory) MergedFrom() []string {
	return stringSliceMeta(m.Metadata, "merged_from")
}

// SplitFrom extracts the "split_from" provenance id from Metadata, if
// present.
func (m *Memory) SplitFrom() string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata["split_from"].(string); ok {
		return v
	}
	return ""
}

func stringSliceMeta(meta map[string]interface{}, key string) []string {
	if meta == nil {
		return nil
	}
	raw, ok := meta[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// MemoryEvent is the immutable provenance junction linking a Memory to one
// of the Events it was synthesized from.
type MemoryEvent struct {
	ID       string   `json:"id"`
	MemoryID string   `json:"memory_id"`
	EventID  string   `json:"event_id"`
	LinkStrength *float64 `json:"link_strength,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
