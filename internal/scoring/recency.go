// Package scoring implements the pure, deterministic scoring primitives
// from spec.md §4.1: recency, spaced-repetition-style decay, and the
// multi-factor combined score. Every function here except Decay is a pure
// function of its inputs — no I/O, no clock reads beyond an explicit
// reference time; Decay measures age against time.Now(), and DecayAt is its
// explicit-reference-time form.
package scoring

import (
	"math"
	"time"
)

const ln2 = 0.6931471805599453

// Recency returns exp(-ln2 * age_days / halfLifeDays) clamped to [0,1].
// A memory exactly at refTime scores 1; one exactly halfLifeDays old scores
// 0.5; a memory timestamped in the future (age_days < 0) also scores 1,
// since "not yet old" is the same as "brand new" for this purpose.
func Recency(memoryTime, refTime time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 1
	}
	ageDays := refTime.UTC().Sub(memoryTime.UTC()).Hours() / 24.0
	if ageDays <= 0 {
		return 1.0
	}
	score := math.Exp(-ln2 * ageDays / halfLifeDays)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
