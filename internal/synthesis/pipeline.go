package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

// LLM is the narrow collaborator both synthesis pipelines call through.
// Call issues one prompt/response round trip; implementations must retry
// transient faults internally (§6 External collaborators).
type LLM interface {
	Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Hook fires the auto-knowledge step after a memory is persisted. It is
// satisfied by internal/hooks.AutoKnowledge; nil is accepted by
// NewMemorySynthesizer for callers that run the pipeline without it (e.g.
// the knowledge-synthesis tests themselves).
type Hook interface {
	Trigger(memoryID string)
}

// RunResult is what one memory-synthesis pipeline run reports back to its
// caller (the scheduler orchestrator or a manual trigger).
type RunResult struct {
	Proceeded  bool
	SkipReason string
	Accum      AccumulationScore
	MemoryID   string
}

// synthesisResponse is the single JSON object the LLM synthesis node
// expects back (§4.6).
type synthesisResponse struct {
	Summary    string   `json:"summary"`
	Content    string   `json:"content"`
	Importance *float64 `json:"importance"`
	Confidence *float64 `json:"confidence"`
}

// MemorySynthesizer runs the five-node memory-synthesis state machine:
// threshold_check -> event_collection -> llm_synthesis -> persist ->
// auto_knowledge_hook.
type MemorySynthesizer struct {
	store Store
	llm   LLM
	hook  Hook
}

// NewMemorySynthesizer builds a MemorySynthesizer. hook may be nil, in
// which case the auto_knowledge_hook node is a no-op.
func NewMemorySynthesizer(s Store, llm LLM, hook Hook) *MemorySynthesizer {
	return &MemorySynthesizer{store: s, llm: llm, hook: hook}
}

// Run executes one pass of the pipeline for a single anima. now is passed
// in rather than computed internally so tests can control the threshold
// gate's "now" deterministically.
func (m *MemorySynthesizer) Run(ctx context.Context, animaID string, now time.Time) (RunResult, error) {
	anima, err := m.store.GetAnima(ctx, animaID, false)
	if err != nil {
		return RunResult{}, fmt.Errorf("synthesis: load anima: %w", err)
	}

	cfg, err := m.store.GetSynthesisConfig(ctx, animaID)
	if err != nil {
		return RunResult{}, fmt.Errorf("synthesis: load synthesis config: %w", err)
	}

	threshold, err := evaluateThreshold(ctx, m.store, anima, cfg, now)
	if err != nil {
		return RunResult{}, fmt.Errorf("synthesis: threshold_check: %w", err)
	}
	if !threshold.Proceed {
		return RunResult{Proceeded: false, SkipReason: threshold.SkipReason, Accum: threshold.Accum}, nil
	}

	// event_collection: threshold.Events is already the chronologically
	// ordered (ascending occurred_at) set EventsSince returned.
	events := threshold.Events

	resp, err := m.synthesize(ctx, cfg, events)
	if err != nil {
		return RunResult{}, err
	}

	memID, err := m.persist(ctx, anima.ID, resp, events)
	if err != nil {
		return RunResult{}, fmt.Errorf("synthesis: persist: %w", err)
	}

	if m.hook != nil {
		go func(id string) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("synthesis: auto_knowledge_hook panic for memory %s: %v", id, r)
				}
			}()
			m.hook.Trigger(id)
		}(memID)
	}

	return RunResult{
		Proceeded: true,
		Accum:     threshold.Accum,
		MemoryID:  memID,
	}, nil
}

// PeekThreshold reports whether animaID's accumulation score currently meets
// its synthesis threshold, without running event collection, LLM synthesis,
// or persistence. The scheduler's realtime check-and-enqueue path (§4.8)
// calls this once per event creation; it is the threshold_check node in
// isolation, reusing evaluateThreshold so the two never disagree.
func (m *MemorySynthesizer) PeekThreshold(ctx context.Context, animaID string, now time.Time) (bool, AccumulationScore, error) {
	anima, err := m.store.GetAnima(ctx, animaID, false)
	if err != nil {
		return false, AccumulationScore{}, fmt.Errorf("synthesis: load anima: %w", err)
	}
	cfg, err := m.store.GetSynthesisConfig(ctx, animaID)
	if err != nil {
		return false, AccumulationScore{}, fmt.Errorf("synthesis: load synthesis config: %w", err)
	}
	result, err := evaluateThreshold(ctx, m.store, anima, cfg, now)
	if err != nil {
		return false, AccumulationScore{}, fmt.Errorf("synthesis: threshold_check: %w", err)
	}
	return result.Proceed, result.Accum, nil
}

// synthesize runs the llm_synthesis node: build a prompt from the
// collected events, call the LLM, and parse its single-object response.
func (m *MemorySynthesizer) synthesize(ctx context.Context, cfg *types.SynthesisConfig, events []types.Event) (*synthesisResponse, error) {
	prompt := synthesisPrompt(events)

	raw, err := m.llm.Call(ctx, prompt, cfg.LLMTemperature, cfg.LLMMaxTokens)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "synthesis: llm_synthesis call failed: "+err.Error())
	}

	var resp synthesisResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
		return nil, apperr.Wrap(apperr.Transient, "synthesis: llm_synthesis response not valid JSON: "+err.Error())
	}
	if resp.Summary == "" || resp.Content == "" {
		return nil, apperr.Wrap(apperr.Validation, "synthesis: llm_synthesis response missing summary/content")
	}
	return &resp, nil
}

// persist creates the synthesized Memory and its provenance MemoryEvent
// links. Both writes happen through the same Store and are expected to run
// inside one atomic tenant session at the storage layer (§4.6, §7).
func (m *MemorySynthesizer) persist(ctx context.Context, animaID string, resp *synthesisResponse, events []types.Event) (string, error) {
	timeStart, timeEnd := events[0].OccurredAt, events[0].OccurredAt
	for _, e := range events[1:] {
		if e.OccurredAt.Before(timeStart) {
			timeStart = e.OccurredAt
		}
		if e.OccurredAt.After(timeEnd) {
			timeEnd = e.OccurredAt
		}
	}

	mem := &types.Memory{
		ID:         uuid.New().String(),
		AnimaID:    animaID,
		State:      types.MemoryActive,
		Summary:    resp.Summary,
		Content:    resp.Content,
		Importance: resp.Importance,
		Confidence: resp.Confidence,
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
	}
	if err := m.store.CreateMemory(ctx, mem); err != nil {
		return "", err
	}

	links := make([]types.MemoryEvent, len(events))
	for i, e := range events {
		links[i] = types.MemoryEvent{ID: uuid.New().String(), MemoryID: mem.ID, EventID: e.ID}
	}
	if err := m.store.BulkCreateMemoryEvents(ctx, links); err != nil {
		return "", err
	}

	return mem.ID, nil
}

// synthesisPrompt renders the chronological event list into the prompt the
// LLM synthesis node sends. Kept deliberately plain: the LLM is asked for a
// single JSON object, not prose.
func synthesisPrompt(events []types.Event) string {
	var b strings.Builder
	b.WriteString("Synthesize the following chronological events into one memory. ")
	b.WriteString(`Respond with a single JSON object: {"summary": string, "content": string, "importance": number 0-1, "confidence": number 0-1}.` + "\n\n")
	for _, e := range events {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.OccurredAt.UTC().Format(time.RFC3339), e.Type, e.Content)
	}
	return b.String()
}
