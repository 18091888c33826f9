package dream

import (
	"context"
	"fmt"

	"github.com/scrypster/ltam/pkg/types"
)

// deepSleepResults mirrors original_source's DeepSleepResults.
type deepSleepResults struct {
	mergesAttempted    int
	mergesCompleted    int
	reviewsAttempted   int
	updatesCompleted   int
	splitsCompleted    int
	deletionsCompleted int
	errors             []string
}

// runDeepSleep executes the LLM-powered phase: attempt each Light Sleep
// merge candidate, then review the flagged set in batches. Individual
// failures are recorded in results.errors and do not abort the cycle, the
// same best-effort posture original_source's run_deep_sleep takes.
func runDeepSleep(ctx context.Context, ops *operations, llm LLM, embedder Embedder, sess *types.DreamSession, dctx *Context, light lightSleepResults, cfg types.DreamConfig) deepSleepResults {
	var results deepSleepResults

	mergedIDs := map[string]struct{}{}
	for _, group := range light.mergeCandidates {
		results.mergesAttempted++
		merged, err := processMergeGroup(ctx, ops, llm, embedder, sess, dctx, group, cfg)
		if err != nil {
			results.errors = append(results.errors, fmt.Sprintf("merge group %v: %v", group, err))
			continue
		}
		if merged {
			results.mergesCompleted++
			for _, id := range group {
				mergedIDs[id] = struct{}{}
			}
		}
	}

	var toReview []types.Memory
	for _, m := range dctx.Memories {
		if _, merged := mergedIDs[m.ID]; merged {
			continue
		}
		if _, flagged := light.reviewCandidates[m.ID]; !flagged {
			continue
		}
		if m.IsDeleted || m.State != types.MemoryActive {
			continue
		}
		toReview = append(toReview, m)
	}

	batchSize := cfg.CurationBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for i := 0; i < len(toReview); i += batchSize {
		end := i + batchSize
		if end > len(toReview) {
			end = len(toReview)
		}
		batch := toReview[i:end]
		results.reviewsAttempted += len(batch)
		processReviewBatch(ctx, ops, llm, embedder, sess, dctx, batch, cfg, &results)
	}

	return results
}

// processMergeGroup asks the LLM to confirm a Light Sleep merge candidate
// and, on acceptance, executes the merge. Returns (false, nil) for a
// declined merge, which is not an error.
func processMergeGroup(ctx context.Context, ops *operations, llm LLM, embedder Embedder, sess *types.DreamSession, dctx *Context, memoryIDs []string, cfg types.DreamConfig) (bool, error) {
	var candidates []types.Memory
	byID := map[string]types.Memory{}
	for _, m := range dctx.Memories {
		byID[m.ID] = m
	}
	for _, id := range memoryIDs {
		if m, ok := byID[id]; ok && !m.IsDeleted {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) < 2 {
		return false, nil
	}

	prompt := buildMergePrompt(candidates, dctx.Identity, dctx.Knowledge)
	raw, err := llm.Call(ctx, prompt, cfg.LLMTemperature, 1024)
	if err != nil {
		return false, fmt.Errorf("merge LLM call: %w", err)
	}
	parsed, err := llm.ParseJSONResponse(raw)
	if err != nil {
		return false, fmt.Errorf("parse merge response: %w", err)
	}
	decision, err := parseMergeResponse(parsed)
	if err != nil {
		return false, err
	}
	if !decision.ShouldMerge {
		return false, nil
	}

	merged, err := ops.mergeMemories(ctx, sess, memoryIDs, decision.MergedSummary, decision.Importance, decision.Confidence, decision.Reasoning)
	if err != nil {
		return false, err
	}

	if cfg.RegenerateEmbeddings {
		regenerateEmbedding(ctx, ops.store, embedder, merged, cfg.EmbeddingModel)
	}
	return true, nil
}

// processReviewBatch asks the LLM for one curation decision per memory in
// batch and applies each, accumulating counters and non-fatal errors into
// results.
func processReviewBatch(ctx context.Context, ops *operations, llm LLM, embedder Embedder, sess *types.DreamSession, dctx *Context, batch []types.Memory, cfg types.DreamConfig, results *deepSleepResults) {
	prompt := buildReviewPrompt(batch, dctx.Identity, dctx.Knowledge)
	raw, err := llm.Call(ctx, prompt, cfg.LLMTemperature, 2048)
	if err != nil {
		results.errors = append(results.errors, fmt.Sprintf("review LLM call: %v", err))
		return
	}
	parsedObj, err := llm.ParseJSONResponse(raw)
	var items []interface{}
	if err == nil {
		if list, ok := parsedObj["decisions"].([]interface{}); ok {
			items = list
		}
	}
	if items == nil {
		results.errors = append(results.errors, "review response did not contain a decisions array")
		return
	}

	decisions, err := parseReviewResponse(items)
	if err != nil {
		results.errors = append(results.errors, fmt.Sprintf("parse review response: %v", err))
		return
	}

	for _, d := range decisions {
		if d.Index < 0 || d.Index >= len(batch) {
			results.errors = append(results.errors, fmt.Sprintf("review decision index %d out of bounds", d.Index))
			continue
		}
		memory := batch[d.Index]
		if err := applyReviewDecision(ctx, ops, embedder, sess, memory, d, cfg); err != nil {
			results.errors = append(results.errors, fmt.Sprintf("apply %s to memory %s: %v", d.Action, memory.ID, err))
			continue
		}
		switch d.Action {
		case "UPDATE":
			results.updatesCompleted++
		case "SPLIT":
			results.splitsCompleted++
		case "DELETE":
			results.deletionsCompleted++
		}
	}
}

// applyReviewDecision executes one KEEP/UPDATE/SPLIT/DELETE decision.
func applyReviewDecision(ctx context.Context, ops *operations, embedder Embedder, sess *types.DreamSession, memory types.Memory, d reviewDecision, cfg types.DreamConfig) error {
	switch d.Action {
	case "KEEP":
		return nil

	case "UPDATE":
		upd := memoryUpdate{
			Summary:    d.NewSummary,
			Importance: d.NewImportance,
			Confidence: d.NewConfidence,
		}
		if upd.Summary == nil && upd.Importance == nil && upd.Confidence == nil {
			return nil
		}
		reasoning := d.Reasoning
		updated, err := ops.updateMemory(ctx, sess, memory.ID, upd, types.PhaseDeepSleep, &reasoning)
		if err != nil {
			return err
		}
		if d.NewSummary != nil && cfg.RegenerateEmbeddings {
			regenerateEmbedding(ctx, ops.store, embedder, updated, cfg.EmbeddingModel)
		}
		return nil

	case "SPLIT":
		if len(d.SplitInto) < 2 {
			return nil
		}
		results, err := ops.splitMemory(ctx, sess, memory.ID, d.SplitInto, d.Reasoning)
		if err != nil {
			return err
		}
		if cfg.RegenerateEmbeddings {
			for i := range results {
				regenerateEmbedding(ctx, ops.store, embedder, &results[i], cfg.EmbeddingModel)
			}
		}
		return nil

	case "DELETE":
		return ops.deleteMemory(ctx, sess, memory.ID, types.PhaseDeepSleep, d.Reasoning)

	default:
		return nil
	}
}

// regenerateEmbedding refreshes a memory's embedding after its summary
// changed. Best-effort: embedding failures never fail the dream cycle,
// matching original_source's regenerate_embedding.
func regenerateEmbedding(ctx context.Context, s Store, embedder Embedder, m *types.Memory, model string) {
	if m.Summary == "" {
		return
	}
	vec, err := embedder.EmbedText(ctx, m.Summary)
	if err != nil {
		return
	}
	m.Embedding = vec
	m.EmbeddingModel = model
	_ = s.UpdateMemory(ctx, m)
}
