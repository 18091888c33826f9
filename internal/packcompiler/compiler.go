// Package packcompiler assembles memory packs: the four-layer context
// artefact (identity, session memories, knowledge, long-term memories) an
// LLM harness injects at the start of a turn (§4.5).
package packcompiler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/retrieval"
	"github.com/scrypster/ltam/internal/scoring"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// defaultRetentionCount is the maxPacks NewCompiler passes to
// Retainer.EnforceRetention after every persisted compile (§4.9).
const defaultRetentionCount = 100

// Store is the slice of the entity store the compiler needs: identity and
// anima lookups, the three retrieval layers, and pack persistence.
type Store interface {
	store.AnimaStore
	store.ConfigStore
	store.MemoryStore
	store.KnowledgeStore
	store.MemoryEventStore
	store.EventStore
	store.PackStore
}

// Embedder produces a query embedding for semantic search. Implementations
// must preserve the "empty input yields no embedding" contract — the
// compiler treats a nil/empty result as "no semantic search this call",
// not an error.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Retainer enforces pack retention after a persisted compile. Satisfied by
// internal/retention.Janitor; nil is accepted by NewCompiler for callers
// that never persist.
type Retainer interface {
	EnforceRetention(ctx context.Context, animaID string, maxPacks int) (int, error)
}

// Compiler assembles CompiledPacks from a Store, an Embedder, and an
// optional Retainer.
type Compiler struct {
	store     Store
	embedder  Embedder
	retainer  Retainer
	retention int
}

// NewCompiler constructs a Compiler. retainer may be nil if the caller
// never compiles with persist=true.
func NewCompiler(s Store, embedder Embedder, retainer Retainer) *Compiler {
	return &Compiler{store: s, embedder: embedder, retainer: retainer, retention: defaultRetentionCount}
}

// Compile runs the §4.5 ten-step algorithm. persist schedules a
// fire-and-forget asynchronous write (with retention enforcement) when
// true; presetName is carried through only as persistence metadata.
func (c *Compiler) Compile(ctx context.Context, cfg RetrievalConfig, persist bool, presetName string) (*CompiledPack, error) {
	now := time.Now().UTC()
	weights := scoring.Weights{
		Importance: cfg.WeightImportance,
		Confidence: cfg.WeightConfidence,
		Recency:    cfg.WeightRecency,
		Decay:      cfg.WeightDecay,
		Similarity: cfg.WeightSimilarity,
	}

	cfg, err := c.applyIOConfigDefaults(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queryEmbedding []float32
	if cfg.Query != "" && c.embedder != nil {
		emb, err := c.embedder.EmbedText(ctx, cfg.Query)
		if err != nil {
			return nil, fmt.Errorf("packcompiler: embed query: %w", err)
		}
		queryEmbedding = emb
	}

	var identity *IdentitySummary
	if cfg.IncludeIdentity {
		id, err := c.retrieveIdentity(ctx, cfg.AnimaID)
		if err != nil {
			return nil, err
		}
		identity = id
	}

	sessionMemories, err := c.retrieveSessionMemories(ctx, cfg, now)
	if err != nil {
		return nil, err
	}

	var temporalContext *retrieval.TemporalContext
	if len(sessionMemories) == 0 && cfg.IncludeTemporalAwareness {
		tc, err := retrieval.Temporal(ctx, c.store, cfg.AnimaID, now)
		if err != nil {
			return nil, fmt.Errorf("packcompiler: temporal context: %w", err)
		}
		temporalContext = tc
	}

	knowledge, err := c.retrieveKnowledge(ctx, cfg, queryEmbedding)
	if err != nil {
		return nil, err
	}

	longTermMemories, err := c.retrieveLongTermMemories(ctx, cfg, queryEmbedding, weights, now)
	if err != nil {
		return nil, err
	}

	sessionMemories, knowledge, longTermMemories = enforceTokenBudget(sessionMemories, knowledge, longTermMemories, identity, cfg.MaxTokens)

	pack := &CompiledPack{
		AnimaID:          cfg.AnimaID,
		Query:            cfg.Query,
		CompiledAt:       now,
		TokenCount:       estimateTokens(sessionMemories, knowledge, longTermMemories, identity),
		Identity:         identity,
		TemporalContext:  temporalContext,
		SessionMemories:  sessionMemories,
		Knowledge:        knowledge,
		LongTermMemories: longTermMemories,
		Config:           cfg,
	}

	if persist {
		c.persistAsync(pack, presetName)
	}

	return pack, nil
}

// applyIOConfigDefaults deep-merges the anima's IOConfig.read_settings over
// the preset baseline's session-window/limit/threshold fields (§4.5a),
// falling back to cfg unchanged when no override exists.
func (c *Compiler) applyIOConfigDefaults(ctx context.Context, cfg RetrievalConfig) (RetrievalConfig, error) {
	io, err := c.store.GetIOConfig(ctx, cfg.AnimaID)
	if err != nil {
		return cfg, fmt.Errorf("packcompiler: load io config: %w", err)
	}
	if len(io.ReadSettings) == 0 {
		return cfg, nil
	}

	baseline := map[string]interface{}{
		"session_window_hours":   cfg.SessionWindowHours,
		"max_session_memories":   float64(cfg.MaxSessionMemories),
		"max_knowledge":          float64(cfg.MaxKnowledge),
		"max_long_term_memories": float64(cfg.MaxLongTermMemories),
		"similarity_threshold":   cfg.SimilarityThreshold,
	}
	merged := types.DeepMerge(baseline, io.ReadSettings)

	if v, ok := merged["session_window_hours"].(float64); ok {
		cfg.SessionWindowHours = v
	}
	if v, ok := merged["max_session_memories"].(float64); ok {
		cfg.MaxSessionMemories = int(v)
	}
	if v, ok := merged["max_knowledge"].(float64); ok {
		cfg.MaxKnowledge = int(v)
	}
	if v, ok := merged["max_long_term_memories"].(float64); ok {
		cfg.MaxLongTermMemories = int(v)
	}
	if v, ok := merged["similarity_threshold"].(float64); ok {
		cfg.SimilarityThreshold = v
	}
	return cfg, nil
}

// retrieveIdentity is Layer 1: a static fetch, no scoring involved.
func (c *Compiler) retrieveIdentity(ctx context.Context, animaID string) (*IdentitySummary, error) {
	id, err := c.store.GetIdentity(ctx, animaID)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("packcompiler: load identity: %w", err)
	}
	if id.ID == "" {
		return nil, nil
	}

	anima, err := c.store.GetAnima(ctx, animaID, false)
	if err != nil && !errors.Is(err, apperr.NotFound) {
		return nil, fmt.Errorf("packcompiler: load anima: %w", err)
	}
	name := id.Name
	if anima != nil && anima.Name != "" {
		name = anima.Name
	}

	return &IdentitySummary{
		Name:                name,
		PersonalityType:     id.PersonalityType,
		CommunicationStyle:  id.CommunicationStyle,
		SelfReflection:      id.SelfReflection,
	}, nil
}

// retrieveSessionMemories is Layer 2: recency-scored, no semantic search,
// restricted to the current session window. Over-fetches 2x to absorb the
// half-life re-sort before truncating to MaxSessionMemories.
func (c *Compiler) retrieveSessionMemories(ctx context.Context, cfg RetrievalConfig, now time.Time) ([]ScoredMemory, error) {
	cutoff := now.Add(-time.Duration(cfg.SessionWindowHours * float64(time.Hour)))
	limit := cfg.MaxSessionMemories * 2
	if limit <= 0 {
		limit = cfg.MaxSessionMemories
	}

	candidates, err := retrieval.TimeWindow(ctx, c.store, retrieval.TimeWindowOptions{
		AnimaID: cfg.AnimaID,
		States:  []types.MemoryState{types.MemoryActive},
		MinTime: cutoff,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("packcompiler: session memories: %w", err)
	}

	scored := make([]ScoredMemory, 0, len(candidates))
	for _, m := range candidates {
		recency := scoring.Recency(m.CreatedAt, now, 1.0)
		scored = append(scored, ScoredMemory{
			Memory:    m,
			Score:     recency,
			Reason:    ReasonSessionRecency,
			Breakdown: map[string]float64{"recency": recency},
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > cfg.MaxSessionMemories {
		scored = scored[:cfg.MaxSessionMemories]
	}
	return scored, nil
}

// retrieveKnowledge is Layer 3: semantic search only, no query means no
// knowledge at all.
func (c *Compiler) retrieveKnowledge(ctx context.Context, cfg RetrievalConfig, queryEmbedding []float32) ([]ScoredKnowledge, error) {
	if len(queryEmbedding) == 0 || cfg.MaxKnowledge <= 0 {
		return nil, nil
	}

	results, err := retrieval.SemanticSearchKnowledge(ctx, c.store, retrieval.KnowledgeSearchOptions{
		AnimaID:        cfg.AnimaID,
		Types:          cfg.KnowledgeTypes,
		QueryEmbedding: queryEmbedding,
		Threshold:      cfg.SimilarityThreshold,
		TopK:           cfg.MaxKnowledge,
	})
	if err != nil {
		return nil, fmt.Errorf("packcompiler: knowledge search: %w", err)
	}

	scored := make([]ScoredKnowledge, 0, len(results))
	for _, r := range results {
		conf := r.Knowledge.Confidence
		scored = append(scored, ScoredKnowledge{
			Knowledge:  r.Knowledge,
			Score:      scoring.KnowledgeScore(&conf, r.Similarity),
			Similarity: r.Similarity,
		})
	}
	if len(scored) > cfg.MaxKnowledge {
		scored = scored[:cfg.MaxKnowledge]
	}
	return scored, nil
}

// retrieveLongTermMemories is Layer 4: semantic search restricted to
// before the session window, then re-scored with the full combined
// formula (access_count=0, last_accessed=updated_at per §4.5 step 7).
func (c *Compiler) retrieveLongTermMemories(ctx context.Context, cfg RetrievalConfig, queryEmbedding []float32, weights scoring.Weights, now time.Time) ([]ScoredMemory, error) {
	if len(queryEmbedding) == 0 {
		return nil, nil
	}
	cutoff := now.Add(-time.Duration(cfg.SessionWindowHours * float64(time.Hour)))

	candidateLimit := cfg.MaxLongTermMemories * 3
	results, err := retrieval.SemanticSearchMemories(ctx, c.store, retrieval.MemorySearchOptions{
		AnimaID:        cfg.AnimaID,
		MaxTime:        cutoff,
		QueryEmbedding: queryEmbedding,
		Threshold:      cfg.SimilarityThreshold,
		TopK:           cfg.MaxLongTermMemories,
		CandidateLimit: candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("packcompiler: long-term memory search: %w", err)
	}

	scored := make([]ScoredMemory, 0, len(results))
	for _, r := range results {
		m := r.Memory
		recency := scoring.Recency(m.CreatedAt, now, 30)
		decay := scoring.DecayAt(m.CreatedAt, m.UpdatedAt, now, 0, scoring.DefaultDecayParams())

		similarity := r.Similarity
		score := scoring.Combined(m.Importance, m.Confidence, recency, decay, &similarity, weights)

		imp, conf := 0.5, 0.5
		if m.Importance != nil {
			imp = *m.Importance
		}
		if m.Confidence != nil {
			conf = *m.Confidence
		}

		scored = append(scored, ScoredMemory{
			Memory:     m,
			Score:      score,
			Reason:     ReasonHybrid,
			Similarity: &similarity,
			Breakdown: map[string]float64{
				"importance": imp,
				"confidence": conf,
				"recency":    recency,
				"decay":      decay,
				"similarity": similarity,
			},
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > cfg.MaxLongTermMemories {
		scored = scored[:cfg.MaxLongTermMemories]
	}
	return scored, nil
}

// persistAsync schedules the pack write and retention sweep as a detached
// goroutine per §4.5 step 10 and §4.9 — its outcome never reaches the
// caller.
func (c *Compiler) persistAsync(pack *CompiledPack, presetName string) {
	go func() {
		ctx := context.Background()
		content, err := serializePack(pack)
		if err != nil {
			return
		}
		row := &types.MemoryPack{
			AnimaID:             pack.AnimaID,
			Query:               pack.Query,
			Preset:              presetName,
			SessionMemoryCount:  len(pack.SessionMemories),
			KnowledgeCount:      len(pack.Knowledge),
			LongTermMemoryCount: len(pack.LongTermMemories),
			TokenCount:          pack.TokenCount,
			MaxTokens:           pack.Config.MaxTokens,
			Content:             content,
			CompiledAt:          pack.CompiledAt,
		}
		if err := c.store.CreatePack(ctx, row); err != nil {
			return
		}
		if c.retainer != nil {
			c.retainer.EnforceRetention(ctx, pack.AnimaID, c.retention)
		}
	}()
}
