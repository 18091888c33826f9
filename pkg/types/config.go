package types

import "time"

// SynthesisConfig is the per-anima, 1:1 set of weights and thresholds that
// gate memory synthesis (§4.6). Defaults are materialized on first access
// by the entity store rather than left null.
type SynthesisConfig struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	TimeWeight  float64 `json:"time_weight"`
	EventWeight float64 `json:"event_weight"`
	TokenWeight float64 `json:"token_weight"`
	Threshold   float64 `json:"threshold"`

	LLMTemperature float64 `json:"llm_temperature"`
	LLMMaxTokens   int     `json:"llm_max_tokens"`

	SchedulerIntervalHours float64 `json:"scheduler_interval_hours"`

	LastSynthesisCheckAt time.Time `json:"last_synthesis_check_at"`

	// CostTracking is optional accounting metadata carried over from
	// original_source; never load-bearing for the threshold gate itself.
	CostTracking map[string]interface{} `json:"cost_tracking,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSynthesisConfig returns the materialized defaults applied the
// first time a caller reads an anima's config and none exists yet.
func DefaultSynthesisConfig(animaID string) SynthesisConfig {
	return SynthesisConfig{
		AnimaID:                animaID,
		TimeWeight:             1.0,
		EventWeight:            0.5,
		TokenWeight:            0.0003,
		Threshold:              10.0,
		LLMTemperature:         0.3,
		LLMMaxTokens:           1024,
		SchedulerIntervalHours: 6,
	}
}

// Clamp bounds every weight/threshold field to the ranges the spec
// requires (§4.6, §9): weights and threshold are non-negative, temperature
// is in [0,2], max tokens is positive, and scheduler interval is at least
// 15 minutes.
func (c *SynthesisConfig) Clamp() {
	c.TimeWeight = clampMin(c.TimeWeight, 0)
	c.EventWeight = clampMin(c.EventWeight, 0)
	c.TokenWeight = clampMin(c.TokenWeight, 0)
	c.Threshold = clampMin(c.Threshold, 0)
	c.LLMTemperature = clampRange(c.LLMTemperature, 0, 2)
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = 1024
	}
	if c.SchedulerIntervalHours < 0.25 {
		c.SchedulerIntervalHours = 0.25
	}
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// DreamConfig holds the thresholds and weights that gate the dream engine's
// two phases (§4.7). Unlike SynthesisConfig it is not a per-anima row: it
// mirrors original_source's DreamerConfig, which the scheduler materializes
// from defaults and freezes into DreamSession.ConfigSnapshot at the start of
// each cycle so a concurrent edit never changes an in-flight run.
type DreamConfig struct {
	DecayHalfLifeDays float64 `json:"decay_half_life_days"`
	DecayThreshold    float64 `json:"decay_threshold"`
	ArchiveThreshold  float64 `json:"archive_threshold"`

	ImportanceFloor float64 `json:"importance_floor"`

	ConfidenceReviewThreshold float64 `json:"confidence_review_threshold"`
	MinSummaryLength          int     `json:"min_summary_length"`

	EmbeddingSimilarityThreshold float64 `json:"embedding_similarity_threshold"`
	JaccardFallbackThreshold     float64 `json:"jaccard_fallback_threshold"`

	LLMTemperature    float64 `json:"llm_temperature"`
	CurationBatchSize int     `json:"curation_batch_size"`

	RegenerateEmbeddings bool   `json:"regenerate_embeddings"`
	EmbeddingModel       string `json:"embedding_model"`
}

// DefaultDreamConfig returns the spec's §4.7 defaults.
func DefaultDreamConfig() DreamConfig {
	return DreamConfig{
		DecayHalfLifeDays:            30.0,
		DecayThreshold:               0.7,
		ArchiveThreshold:             0.9,
		ImportanceFloor:              0.3,
		ConfidenceReviewThreshold:    0.4,
		MinSummaryLength:             20,
		EmbeddingSimilarityThreshold: 0.3,
		JaccardFallbackThreshold:     0.6,
		LLMTemperature:               0.3,
		CurationBatchSize:            10,
		RegenerateEmbeddings:         true,
		EmbeddingModel:               "text-embedding-3-small",
	}
}

// Clamp bounds every threshold/weight to its valid range (§9): the 0-1
// scores stay in [0,1], half-life and batch size stay positive, temperature
// stays in [0,2].
func (c *DreamConfig) Clamp() {
	c.DecayThreshold = clampRange(c.DecayThreshold, 0, 1)
	c.ArchiveThreshold = clampRange(c.ArchiveThreshold, 0, 1)
	c.ImportanceFloor = clampRange(c.ImportanceFloor, 0, 1)
	c.ConfidenceReviewThreshold = clampRange(c.ConfidenceReviewThreshold, 0, 1)
	c.EmbeddingSimilarityThreshold = clampRange(c.EmbeddingSimilarityThreshold, 0, 2)
	c.JaccardFallbackThreshold = clampRange(c.JaccardFallbackThreshold, 0, 1)
	c.LLMTemperature = clampRange(c.LLMTemperature, 0, 2)
	if c.DecayHalfLifeDays <= 0 {
		c.DecayHalfLifeDays = 30
	}
	if c.CurationBatchSize <= 0 {
		c.CurationBatchSize = 10
	}
}

// IOConfig is the per-anima, 1:1 deep-merged read/write settings document
// governing event capture and pack-compilation defaults.
type IOConfig struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	ReadSettings  map[string]interface{} `json:"read_settings,omitempty"`
	WriteSettings map[string]interface{} `json:"write_settings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepMerge overlays src onto dst, recursing into nested maps and
// overwriting scalar/slice leaves. It never mutates src. Used both to
// apply SaveIOConfig updates and to layer read_settings over a pack
// preset's baseline (SPEC_FULL.md §4.5a).
func DeepMerge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		if dvRaw, ok := out[k]; ok {
			if dvMap, ok1 := dvRaw.(map[string]interface{}); ok1 {
				if svMap, ok2 := sv.(map[string]interface{}); ok2 {
					out[k] = DeepMerge(dvMap, svMap)
					continue
				}
			}
		}
		out[k] = sv
	}
	return out
}

// Identity is the per-anima, 1:1 free-form self-model consumed as prose by
// the pack compiler's identity layer (§4.11).
type Identity struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Name               string `json:"name"`
	PersonalityType    string `json:"personality_type,omitempty"`
	CommunicationStyle string `json:"communication_style,omitempty"`

	// SelfReflection holds the nested tree: being, purpose, principles,
	// philosophy, relational, arc. Each key is optional; sections missing
	// their required keys are silently omitted by the prose formatter.
	SelfReflection map[string]interface{} `json:"self_reflection,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
