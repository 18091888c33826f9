package packcompiler

import "encoding/json"

// packContent is the JSON shape persisted in MemoryPack.Content: the
// rendered prompt plus every layer's scored items, kept for later
// inspection/replay.
type packContent struct {
	Context          string                `json:"context"`
	Identity         *identityContent      `json:"identity,omitempty"`
	TemporalContext  *temporalContent      `json:"temporal_context,omitempty"`
	SessionMemories  []scoredMemoryContent `json:"session_memories"`
	Knowledge        []scoredKnowledgeContent `json:"knowledge"`
	LongTermMemories []scoredMemoryContent `json:"long_term_memories"`
	Config           configContent         `json:"config"`
}

type identityContent struct {
	Name                string                 `json:"name"`
	PersonalityType     string                 `json:"personality_type,omitempty"`
	CommunicationStyle  string                 `json:"communication_style,omitempty"`
	SelfReflection      map[string]interface{} `json:"self_reflection,omitempty"`
}

type temporalContent struct {
	LastEventAt   string  `json:"last_event_at"`
	HoursAgo      float64 `json:"hours_ago"`
	MemorySummary string  `json:"memory_summary,omitempty"`
	Formatted     string  `json:"formatted"`
}

type scoredMemoryContent struct {
	ID        string             `json:"id"`
	Summary   string             `json:"summary"`
	Score     float64            `json:"score"`
	Reason    string             `json:"reason"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Similarity *float64          `json:"similarity,omitempty"`
}

type scoredKnowledgeContent struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Type       string  `json:"type"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

type weightsContent struct {
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
	Recency    float64 `json:"recency"`
	Decay      float64 `json:"decay"`
	Similarity float64 `json:"similarity"`
}

type configContent struct {
	AnimaID                  string         `json:"anima_id"`
	Query                    string         `json:"query,omitempty"`
	SessionWindowHours       float64        `json:"session_window_hours"`
	MaxSessionMemories       int            `json:"max_session_memories"`
	MaxKnowledge             int            `json:"max_knowledge"`
	MaxLongTermMemories      int            `json:"max_long_term_memories"`
	MaxTokens                int            `json:"max_tokens"`
	SimilarityThreshold      float64        `json:"similarity_threshold"`
	IncludeIdentity          bool           `json:"include_identity"`
	IncludeTemporalAwareness bool           `json:"include_temporal_awareness"`
	Weights                  weightsContent `json:"weights"`
}

// serializePack flattens a CompiledPack into the persisted JSON shape.
func serializePack(pack *CompiledPack) ([]byte, error) {
	content := packContent{
		Context: pack.PromptContext(),
		Config: configContent{
			AnimaID:                  pack.Config.AnimaID,
			Query:                    pack.Config.Query,
			SessionWindowHours:       pack.Config.SessionWindowHours,
			MaxSessionMemories:       pack.Config.MaxSessionMemories,
			MaxKnowledge:             pack.Config.MaxKnowledge,
			MaxLongTermMemories:      pack.Config.MaxLongTermMemories,
			MaxTokens:                pack.Config.MaxTokens,
			SimilarityThreshold:      pack.Config.SimilarityThreshold,
			IncludeIdentity:          pack.Config.IncludeIdentity,
			IncludeTemporalAwareness: pack.Config.IncludeTemporalAwareness,
			Weights: weightsContent{
				Importance: pack.Config.WeightImportance,
				Confidence: pack.Config.WeightConfidence,
				Recency:    pack.Config.WeightRecency,
				Decay:      pack.Config.WeightDecay,
				Similarity: pack.Config.WeightSimilarity,
			},
		},
	}

	if pack.Identity != nil {
		content.Identity = &identityContent{
			Name:                pack.Identity.Name,
			PersonalityType:     pack.Identity.PersonalityType,
			CommunicationStyle:  pack.Identity.CommunicationStyle,
			SelfReflection:      pack.Identity.SelfReflection,
		}
	}

	if pack.TemporalContext != nil {
		content.TemporalContext = &temporalContent{
			LastEventAt:   pack.TemporalContext.LastEventAt.Format("2006-01-02T15:04:05Z07:00"),
			HoursAgo:      pack.TemporalContext.HoursAgo,
			MemorySummary: pack.TemporalContext.MemorySummary,
			Formatted:     pack.TemporalContext.Formatted,
		}
	}

	for _, m := range pack.SessionMemories {
		content.SessionMemories = append(content.SessionMemories, scoredMemoryContent{
			ID: m.Memory.ID, Summary: m.Memory.Summary, Score: m.Score,
			Reason: string(m.Reason), Breakdown: m.Breakdown, Similarity: m.Similarity,
		})
	}
	for _, k := range pack.Knowledge {
		content.Knowledge = append(content.Knowledge, scoredKnowledgeContent{
			ID: k.Knowledge.ID, Content: k.Knowledge.Content, Type: string(k.Knowledge.Type),
			Score: k.Score, Similarity: k.Similarity,
		})
	}
	for _, m := range pack.LongTermMemories {
		content.LongTermMemories = append(content.LongTermMemories, scoredMemoryContent{
			ID: m.Memory.ID, Summary: m.Memory.Summary, Score: m.Score,
			Reason: string(m.Reason), Breakdown: m.Breakdown, Similarity: m.Similarity,
		})
	}

	return json.Marshal(content)
}
