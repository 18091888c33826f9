package packcompiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrypster/ltam/pkg/types"
)

// Preset names accepted by GetPreset.
const (
	PresetConversational = "conversational"
	PresetSelfDetermined = "self_determined"
)

// selfDeterminedWindowHours, selfDeterminedSessionCap, and the identity/
// temporal flags are the §4.5 "fixed parameters (grounding)" for the
// self_determined preset — always applied regardless of what the LLM
// returns.
const (
	selfDeterminedWindowHours = 24
	selfDeterminedSessionCap  = 5
	selfDeterminedMaxTokens   = 4000
)

// ConversationalPreset is the deterministic, no-LLM-call preset: weights
// favor recency for conversational flow over deep recall.
func ConversationalPreset(animaID, query string) RetrievalConfig {
	return RetrievalConfig{
		AnimaID:                  animaID,
		Query:                    query,
		SessionWindowHours:       4,
		MaxSessionMemories:       5,
		MaxKnowledge:             3,
		MaxLongTermMemories:      3,
		MaxTokens:                2000,
		WeightRecency:            0.35,
		WeightSimilarity:         0.30,
		WeightImportance:         0.20,
		WeightConfidence:         0.10,
		WeightDecay:              0.05,
		SimilarityThreshold:      0.7,
		IncludeIdentity:          true,
		IncludeTemporalAwareness: true,
	}
}

// Adjudicator is the narrow LLM collaborator the self_determined preset
// needs: one call producing a JSON object of retrieval parameters.
type Adjudicator interface {
	Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	ParseJSONResponse(raw string) (map[string]interface{}, error)
}

// SelfDeterminedPreset asks the LLM to choose the adaptive parameters
// (knowledge types, limits, weights, threshold, minimum importance) for a
// query, while keeping identity/session/window parameters fixed (§4.5).
func SelfDeterminedPreset(ctx context.Context, llm Adjudicator, animaID, query string) (RetrievalConfig, error) {
	if query == "" {
		return RetrievalConfig{}, fmt.Errorf("packcompiler: self_determined preset requires a query")
	}

	response, err := llm.Call(ctx, selfDeterminedPrompt(query), 0.2, 512)
	if err != nil {
		return RetrievalConfig{}, fmt.Errorf("packcompiler: self_determined adjudication: %w", err)
	}
	params, err := llm.ParseJSONResponse(response)
	if err != nil {
		return RetrievalConfig{}, fmt.Errorf("packcompiler: parse adjudication response: %w", err)
	}

	cfg := RetrievalConfig{
		AnimaID:                  animaID,
		Query:                    query,
		IncludeIdentity:          true,
		IncludeTemporalAwareness: true,
		SessionWindowHours:       selfDeterminedWindowHours,
		MaxSessionMemories:       selfDeterminedSessionCap,
		MaxTokens:                selfDeterminedMaxTokens,

		KnowledgeTypes:      parseKnowledgeTypes(params["knowledge_types"]),
		MaxKnowledge:        int(clampFloat(numberOr(params["max_knowledge"], 10), 0, 20)),
		MaxLongTermMemories: int(clampFloat(numberOr(params["max_long_term_memories"], 10), 0, 20)),

		WeightImportance: clampFloat(numberOr(params["weight_importance"], 0.25), 0, 1),
		WeightSimilarity: clampFloat(numberOr(params["weight_similarity"], 0.25), 0, 1),
		WeightRecency:    clampFloat(numberOr(params["weight_recency"], 0.20), 0, 1),
		WeightConfidence: 0.15,
		WeightDecay:      0.15,

		SimilarityThreshold: clampFloat(numberOr(params["similarity_threshold"], 0.7), 0.5, 0.9),
	}
	if v, ok := params["min_importance"].(float64); ok {
		cfg.MinImportance = &v
	}
	return cfg, nil
}

// GetPreset resolves a preset by name.
func GetPreset(ctx context.Context, name, animaID, query string, llm Adjudicator) (RetrievalConfig, error) {
	switch name {
	case PresetConversational:
		return ConversationalPreset(animaID, query), nil
	case PresetSelfDetermined:
		return SelfDeterminedPreset(ctx, llm, animaID, query)
	default:
		return RetrievalConfig{}, fmt.Errorf("packcompiler: unknown preset %q (available: %s, %s)", name, PresetConversational, PresetSelfDetermined)
	}
}

func selfDeterminedPrompt(query string) string {
	return fmt.Sprintf(`Given this user query, determine optimal memory retrieval parameters.

Query: %q

Return JSON with these fields:
- knowledge_types: list of types to retrieve (options: "FACT", "CONCEPT", "METHOD", "PRINCIPLE", "EXPERIENCE")
- max_knowledge: int 0-20 (how many knowledge items)
- max_long_term_memories: int 0-20 (how many long-term memories)
- weight_importance: float 0-1 (weight for memory importance)
- weight_similarity: float 0-1 (weight for semantic similarity)
- weight_recency: float 0-1 (weight for recency)
- similarity_threshold: float 0.5-0.9 (minimum similarity to include)
- min_importance: float 0-1 or null (minimum importance filter)

Consider:
- Factual questions -> high knowledge, high similarity weight, types: FACT, CONCEPT
- Personal questions -> preferences/beliefs, importance weighted, types: EXPERIENCE, PRINCIPLE
- Recent events -> high recency weight, more long-term memories
- How-to questions -> types: METHOD, higher max_knowledge
- Abstract/philosophical -> lower threshold, broader recall, types: PRINCIPLE, CONCEPT

Respond with JSON only, no explanation.`, query)
}

func parseKnowledgeTypes(raw interface{}) []types.KnowledgeType {
	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]types.KnowledgeType, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		kt := types.KnowledgeType(strings.ToUpper(s))
		if types.IsValidKnowledgeType(kt) {
			out = append(out, kt)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func numberOr(raw interface{}, fallback float64) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
