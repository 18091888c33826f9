package dream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/ltam/pkg/types"
)

// lightSleepResults mirrors original_source's LightSleepResults: metrics
// plus the candidates Deep Sleep consumes next.
type lightSleepResults struct {
	memoriesProcessed int
	decayUpdates      int
	stateTransitions  int

	// mergeCandidates is a list of memory-id groups Deep Sleep should try
	// to merge; membership is mutually exclusive across groups.
	mergeCandidates [][]string

	// reviewCandidates is the set (deduplicated via a map) of memory ids
	// flagged for Deep Sleep's review pass.
	reviewCandidates map[string]struct{}
}

// runLightSleep performs the algorithmic, no-LLM phase: decay updates,
// state transitions, merge-candidate grouping via embedding/Jaccard
// similarity, and review flagging. Grounded on
// original_source/app/services/dreamer/light_sleep.py.
func runLightSleep(ctx context.Context, ops *operations, sess *types.DreamSession, dctx *Context, cfg types.DreamConfig) (lightSleepResults, error) {
	results := lightSleepResults{
		memoriesProcessed: len(dctx.Memories),
		reviewCandidates:  map[string]struct{}{},
	}
	if len(dctx.Memories) == 0 {
		return results, nil
	}

	now := time.Now().UTC()

	updates, err := updateDecayScores(ctx, ops, sess, dctx.Memories, cfg, now)
	if err != nil {
		return results, err
	}
	results.decayUpdates = updates

	transitions, err := transitionStaleMemories(ctx, ops, sess, dctx.Memories, cfg)
	if err != nil {
		return results, err
	}
	results.stateTransitions = transitions

	results.mergeCandidates = findMergeCandidates(dctx.Memories, cfg)
	findReviewCandidates(dctx.Memories, cfg, results.reviewCandidates)
	for _, m := range dctx.RecentMemories {
		results.reviewCandidates[m.ID] = struct{}{}
	}

	return results, nil
}

// updateDecayScores applies spec §4.7 step 1: decay = min(1, age_days /
// half_life), written only when it moves by more than 0.01. age is
// measured from updated_at, the "last touched" indicator.
func updateDecayScores(ctx context.Context, ops *operations, sess *types.DreamSession, memories []types.Memory, cfg types.DreamConfig, now time.Time) (int, error) {
	updated := 0
	for _, m := range memories {
		if m.State != types.MemoryActive {
			continue
		}
		ageDays := now.Sub(m.UpdatedAt).Hours() / 24.0
		newDecay := ageDays / cfg.DecayHalfLifeDays
		if newDecay > 1 {
			newDecay = 1
		}
		if newDecay < 0 {
			newDecay = 0
		}
		oldDecay := 0.0
		if m.DecayScore != nil {
			oldDecay = *m.DecayScore
		}
		if abs(oldDecay-newDecay) <= 0.01 {
			continue
		}
		if _, err := ops.updateMemory(ctx, sess, m.ID, memoryUpdate{DecayScore: &newDecay}, types.PhaseLightSleep, nil); err != nil {
			return updated, fmt.Errorf("dream: light sleep decay update for %s: %w", m.ID, err)
		}
		updated++
	}
	return updated, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// transitionStaleMemories applies spec §4.7 step 2's two transitions.
func transitionStaleMemories(ctx context.Context, ops *operations, sess *types.DreamSession, memories []types.Memory, cfg types.DreamConfig) (int, error) {
	transitioned := 0
	for _, m := range memories {
		decay := 0.0
		if m.DecayScore != nil {
			decay = *m.DecayScore
		}
		importance := 0.5
		if m.Importance != nil {
			importance = *m.Importance
		}

		var newState types.MemoryState
		switch m.State {
		case types.MemoryActive:
			if decay > cfg.DecayThreshold && importance < cfg.ImportanceFloor {
				newState = types.MemoryDecaying
			}
		case types.MemoryDecaying:
			if decay > cfg.ArchiveThreshold {
				newState = types.MemoryArchived
			}
		}
		if newState == "" {
			continue
		}
		if _, err := ops.archiveMemory(ctx, sess, m.ID, newState, types.PhaseLightSleep, nil); err != nil {
			return transitioned, fmt.Errorf("dream: light sleep transition for %s: %w", m.ID, err)
		}
		transitioned++
	}
	return transitioned, nil
}

// findMergeCandidates groups ACTIVE memories that look like duplicates:
// embedding cosine distance when both sides have an embedding, a Jaccard
// word-overlap fallback over summaries when neither has one. A pair where
// only one side has an embedding is never grouped. Each memory is placed in
// at most one group.
func findMergeCandidates(memories []types.Memory, cfg types.DreamConfig) [][]string {
	var active []types.Memory
	for _, m := range memories {
		if m.State == types.MemoryActive {
			active = append(active, m)
		}
	}

	processed := map[string]bool{}
	var candidates [][]string

	for _, m1 := range active {
		if processed[m1.ID] {
			continue
		}
		group := []string{m1.ID}

		if len(m1.Embedding) > 0 {
			for _, id := range similarByEmbedding(m1, active, processed, cfg.EmbeddingSimilarityThreshold) {
				group = append(group, id)
				processed[id] = true
			}
		} else {
			for _, id := range similarByJaccard(m1, active, processed, cfg.JaccardFallbackThreshold) {
				group = append(group, id)
				processed[id] = true
			}
		}

		if len(group) > 1 {
			candidates = append(candidates, group)
			processed[m1.ID] = true
		}
	}
	return candidates
}

func similarByEmbedding(source types.Memory, candidates []types.Memory, processed map[string]bool, threshold float64) []string {
	if len(source.Embedding) == 0 {
		return nil
	}
	var out []string
	for _, m := range candidates {
		if m.ID == source.ID || processed[m.ID] || len(m.Embedding) == 0 {
			continue
		}
		if cosineDistance(source.Embedding, m.Embedding) < threshold {
			out = append(out, m.ID)
		}
	}
	return out
}

// cosineDistance returns 1 - cosine_similarity, so 0 means identical and 2
// means opposite, matching the pgVector convention original_source relies
// on.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	cosine := dot / (sqrt(na) * sqrt(nb))
	return 1 - cosine
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 32; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func similarByJaccard(source types.Memory, candidates []types.Memory, processed map[string]bool, threshold float64) []string {
	if source.Summary == "" {
		return nil
	}
	words1 := wordSet(source.Summary)

	var out []string
	for _, m := range candidates {
		if m.ID == source.ID || processed[m.ID] || len(m.Embedding) > 0 || m.Summary == "" {
			continue
		}
		words2 := wordSet(m.Summary)
		inter, union := 0, len(words1)
		for w := range words2 {
			if words1[w] {
				inter++
			} else {
				union++
			}
		}
		if union == 0 {
			continue
		}
		if float64(inter)/float64(union) > threshold {
			out = append(out, m.ID)
		}
	}
	return out
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// findReviewCandidates applies spec §4.7 step 4's low-confidence and
// short-summary flags, adding matches into out.
func findReviewCandidates(memories []types.Memory, cfg types.DreamConfig, out map[string]struct{}) {
	for _, m := range memories {
		if m.State != types.MemoryActive {
			continue
		}
		confidence := 0.5
		if m.Confidence != nil {
			confidence = *m.Confidence
		}
		if confidence < cfg.ConfidenceReviewThreshold {
			out[m.ID] = struct{}{}
			continue
		}
		if m.Summary != "" && len(m.Summary) < cfg.MinSummaryLength {
			out[m.ID] = struct{}{}
		}
	}
}
