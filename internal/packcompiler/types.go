package packcompiler

import (
	"strings"
	"time"

	"github.com/scrypster/ltam/internal/retrieval"
	"github.com/scrypster/ltam/pkg/types"
)

// RetrievalReason records why a scored memory made it into a pack.
type RetrievalReason string

const (
	ReasonSessionRecency RetrievalReason = "session_recency"
	ReasonSemanticMatch  RetrievalReason = "semantic_match"
	ReasonHighImportance RetrievalReason = "high_importance"
	ReasonHybrid         RetrievalReason = "hybrid"
)

// RetrievalConfig is the §6 compile input: a preset's or caller's choice of
// limits, weights, and thresholds for one compile call.
type RetrievalConfig struct {
	AnimaID string
	Query   string

	SessionWindowHours     float64
	MaxSessionMemories     int
	MaxKnowledge           int
	MaxLongTermMemories    int
	MaxTokens              int

	WeightImportance float64
	WeightConfidence float64
	WeightRecency    float64
	WeightDecay      float64
	WeightSimilarity float64

	SimilarityThreshold float64
	MinImportance       *float64
	KnowledgeTypes      []types.KnowledgeType

	IncludeIdentity          bool
	IncludeTemporalAwareness bool
}

// ScoredMemory pairs a memory with its pack-compiler score and the reason
// it was retrieved.
type ScoredMemory struct {
	Memory     types.Memory
	Score      float64
	Reason     RetrievalReason
	Similarity *float64
	Breakdown  map[string]float64
}

// ScoredKnowledge pairs a knowledge item with its knowledge-layer score.
type ScoredKnowledge struct {
	Knowledge  types.Knowledge
	Score      float64
	Similarity float64
}

// IdentitySummary is the condensed identity fetched for Layer 1, ready for
// FormatIdentityProse.
type IdentitySummary struct {
	Name                string
	PersonalityType     string
	CommunicationStyle  string
	SelfReflection      map[string]interface{}
}

// CompiledPack is the assembled result of one compile call: four retrieval
// layers, an optional temporal bridge, and the config that produced them.
type CompiledPack struct {
	AnimaID    string
	Query      string
	CompiledAt time.Time
	TokenCount int

	Identity         *IdentitySummary
	TemporalContext  *retrieval.TemporalContext
	SessionMemories  []ScoredMemory
	Knowledge        []ScoredKnowledge
	LongTermMemories []ScoredMemory

	Config RetrievalConfig
}

// PromptContext renders the pack as the concatenated prompt string §4.5
// describes: identity prose, temporal context, session bullets, knowledge
// bullets (type-tagged), long-term bullets (date-tagged when available).
func (p *CompiledPack) PromptContext() string {
	var sections []string

	if p.Identity != nil {
		if prose := FormatIdentityProse(p.Identity.Name, p.Identity.PersonalityType, p.Identity.CommunicationStyle, p.Identity.SelfReflection); prose != "" {
			sections = append(sections, "## Your Identity\n"+prose)
		}
	}

	if p.TemporalContext != nil {
		sections = append(sections, "## Session Context\n"+p.TemporalContext.Formatted)
	}

	if len(p.SessionMemories) > 0 {
		sections = append(sections, "## Current Session\n"+joinLines(p.SessionMemories, func(m ScoredMemory) string {
			return "- " + m.Memory.Summary
		}))
	}

	if len(p.Knowledge) > 0 {
		lines := make([]string, len(p.Knowledge))
		for i, k := range p.Knowledge {
			lines[i] = "- [" + string(k.Knowledge.Type) + "] " + k.Knowledge.Content
		}
		sections = append(sections, "## Relevant Knowledge\n"+joinAll(lines))
	}

	if len(p.LongTermMemories) > 0 {
		lines := make([]string, len(p.LongTermMemories))
		for i, m := range p.LongTermMemories {
			date := "Unknown"
			if !m.Memory.TimeStart.IsZero() {
				date = m.Memory.TimeStart.Format("2006-01-02")
			}
			lines[i] = "- [" + date + "] " + m.Memory.Summary
		}
		sections = append(sections, "## Relevant Memories\n"+joinAll(lines))
	}

	return joinSections(sections)
}

func joinLines(items []ScoredMemory, render func(ScoredMemory) string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = render(item)
	}
	return joinAll(lines)
}

func joinAll(lines []string) string {
	return strings.Join(lines, "\n")
}

func joinSections(sections []string) string {
	return strings.Join(sections, "\n\n")
}
