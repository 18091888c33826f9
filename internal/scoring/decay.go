package scoring

import (
	"math"
	"time"
)

// DecayParams bundles the tunables for Decay so callers don't have to
// remember an argument order with two optional floats in the middle.
type DecayParams struct {
	BaseHalfLifeDays float64 // default 30
	Boost            float64 // default 1.5
}

// DefaultDecayParams returns the spec's defaults: base_half_life=30,
// boost=1.5.
func DefaultDecayParams() DecayParams {
	return DecayParams{BaseHalfLifeDays: 30, Boost: 1.5}
}

// Decay returns the spaced-repetition-style decay score for a memory:
//
//	effective_hl = min(365, base_half_life * boost^access_count)
//	decay = 1 - exp(-ln2 * age_days / effective_hl)
//
// age_days is measured from lastAccessed if it is non-zero, else from
// memoryTime. A non-positive age (future timestamp, or age == 0) yields 0,
// matching the spec's "future/zero ages yield 0" rule.
func Decay(memoryTime, lastAccessed time.Time, accessCount int, p DecayParams) float64 {
	if p.BaseHalfLifeDays <= 0 {
		p.BaseHalfLifeDays = 30
	}
	if p.Boost <= 0 {
		p.Boost = 1.5
	}

	anchor := memoryTime
	if !lastAccessed.IsZero() {
		anchor = lastAccessed
	}

	ageDays := time.Now().UTC().Sub(anchor.UTC()).Hours() / 24.0
	if ageDays <= 0 {
		return 0
	}

	effectiveHalfLife := math.Min(365, p.BaseHalfLifeDays*math.Pow(p.Boost, float64(accessCount)))
	if effectiveHalfLife <= 0 {
		effectiveHalfLife = 1
	}

	decay := 1 - math.Exp(-ln2*ageDays/effectiveHalfLife)
	return clamp01(decay)
}

// DecayAt is Decay with an explicit reference time, used by tests and by
// the pack compiler's long-term layer so a single "now" is shared across
// a whole batch of memories.
func DecayAt(memoryTime, lastAccessed, refTime time.Time, accessCount int, p DecayParams) float64 {
	if p.BaseHalfLifeDays <= 0 {
		p.BaseHalfLifeDays = 30
	}
	if p.Boost <= 0 {
		p.Boost = 1.5
	}

	anchor := memoryTime
	if !lastAccessed.IsZero() {
		anchor = lastAccessed
	}

	ageDays := refTime.UTC().Sub(anchor.UTC()).Hours() / 24.0
	if ageDays <= 0 {
		return 0
	}

	effectiveHalfLife := math.Min(365, p.BaseHalfLifeDays*math.Pow(p.Boost, float64(accessCount)))
	if effectiveHalfLife <= 0 {
		effectiveHalfLife = 1
	}

	decay := 1 - math.Exp(-ln2*ageDays/effectiveHalfLife)
	return clamp01(decay)
}
