// Package synthesis implements the memory-synthesis and knowledge-synthesis
// pipelines (§4.6): the accumulation-score threshold gate that decides when
// an anima's raw events are worth consolidating into a Memory, the LLM-driven
// synthesis itself, and the downstream extraction of durable Knowledge from
// a freshly synthesized Memory.
package synthesis

import (
	"context"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// Skip reasons the threshold node can report. no_events resets the baseline
// forward to now so an inactive anima never accumulates unbounded "hours
// since baseline"; below_threshold leaves the baseline untouched so events
// keep accumulating toward the next check.
const (
	SkipNoEvents       = "no_events"
	SkipBelowThreshold = "below_threshold"
)

// tokensPerEvent is the per-event token estimate the accumulation score
// uses in place of an actual tokenizer call (§4.6).
const tokensPerEvent = 100

// AccumulationScore is the threshold node's scoring breakdown, kept on
// ThresholdResult for observability and tests.
type AccumulationScore struct {
	Baseline      time.Time
	Hours         float64
	EventCount    int
	TokenEstimate int
	Score         float64
}

// ThresholdResult is the outcome of the threshold_check node.
type ThresholdResult struct {
	Proceed    bool
	SkipReason string
	Accum      AccumulationScore
	// Events holds the chronologically-ordered event set collected while
	// computing event_count, reused by event_collection so the gate and the
	// collector never disagree about which events qualified.
	Events []types.Event
}

// evaluateThreshold runs the threshold_check node: resolve the baseline
// timestamp, count qualifying events, compute the accumulation score, and
// decide whether to proceed. On a no_events skip it writes
// last_synthesis_check_at = now back to cfg (and persists it), per §4.6's
// "prevents unbounded time accumulation on inactive animas" invariant.
func evaluateThreshold(ctx context.Context, s Store, anima *types.Anima, cfg *types.SynthesisConfig, now time.Time) (ThresholdResult, error) {
	baseline := resolveBaseline(ctx, s, anima, cfg)

	events, err := s.EventsSince(ctx, anima.ID, baseline)
	if err != nil {
		return ThresholdResult{}, err
	}

	hours := now.Sub(baseline).Hours()
	if hours < 0 {
		hours = 0
	}
	eventCount := len(events)
	tokenEst := eventCount * tokensPerEvent
	score := cfg.TimeWeight*hours + cfg.EventWeight*float64(eventCount) + cfg.TokenWeight*float64(tokenEst)

	accum := AccumulationScore{
		Baseline:      baseline,
		Hours:         hours,
		EventCount:    eventCount,
		TokenEstimate: tokenEst,
		Score:         score,
	}

	if eventCount <= 0 {
		cfg.LastSynthesisCheckAt = now
		if err := s.UpsertSynthesisConfig(ctx, cfg); err != nil {
			return ThresholdResult{}, err
		}
		return ThresholdResult{Proceed: false, SkipReason: SkipNoEvents, Accum: accum}, nil
	}

	if score < cfg.Threshold {
		return ThresholdResult{Proceed: false, SkipReason: SkipBelowThreshold, Accum: accum, Events: events}, nil
	}

	return ThresholdResult{Proceed: true, Accum: accum, Events: events}, nil
}

// resolveBaseline computes max(last_synthesis_check_at, last_memory.created_at,
// anima.created_at).
func resolveBaseline(ctx context.Context, s Store, anima *types.Anima, cfg *types.SynthesisConfig) time.Time {
	baseline := anima.CreatedAt
	if cfg.LastSynthesisCheckAt.After(baseline) {
		baseline = cfg.LastSynthesisCheckAt
	}

	res, err := s.ListMemories(ctx, store.MemoryFilter{
		AnimaID:     anima.ID,
		ListOptions: store.ListOptions{Page: 1, Limit: 1, SortOrder: "desc"},
	})
	if err == nil && res != nil && len(res.Items) > 0 {
		if last := res.Items[0].CreatedAt; last.After(baseline) {
			baseline = last
		}
	}
	return baseline
}
