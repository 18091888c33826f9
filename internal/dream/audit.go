package dream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

// operations is the Go counterpart of original_source's DreamerOperations:
// every mutation a dream cycle applies to a memory goes through here so the
// DreamAction audit row and the parent session's counters always move
// together (§4.7's action audit invariant, also enforced by
// types.DreamAction.Validate and types.DreamSession.ApplyActionCounters).
type operations struct {
	store Store
}

func newOperations(s Store) *operations { return &operations{store: s} }

// snapshotMemory captures the subset of a memory's fields a dream action
// might change, for the action's before/after audit state.
func snapshotMemory(m types.Memory) map[string]interface{} {
	return map[string]interface{}{
		"id":         m.ID,
		"summary":    m.Summary,
		"content":    m.Content,
		"importance": m.Importance,
		"confidence": m.Confidence,
		"decay_score": m.DecayScore,
		"recency_score": m.RecencyScore,
		"state":      string(m.State),
		"metadata":   m.Metadata,
		"time_start": m.TimeStart,
		"time_end":   m.TimeEnd,
		"is_deleted": m.IsDeleted,
	}
}

func marshalSnapshot(memories ...map[string]interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(map[string]interface{}{"memories": memories})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// recordAction persists one DreamAction and folds its effect into the
// parent session's counters, then persists the updated session. Mirrors
// _record_action: the action row and the session's running totals are the
// same write, never one without the other.
func (o *operations) recordAction(ctx context.Context, sess *types.DreamSession, actionType types.DreamActionType, phase types.DreamPhase, sourceIDs, resultIDs []string, before, after json.RawMessage, reasoning *string) error {
	action := &types.DreamAction{
		ID:              uuid.New().String(),
		SessionID:       sess.ID,
		ActionType:      actionType,
		Phase:           phase,
		SourceMemoryIDs: sourceIDs,
		ResultMemoryIDs: resultIDs,
		Before:          before,
		After:           after,
		Reasoning:       reasoning,
	}
	if err := o.store.CreateDreamAction(ctx, action); err != nil {
		return fmt.Errorf("dream: record action: %w", err)
	}

	sess.ApplyActionCounters(actionType, len(sourceIDs), len(resultIDs))
	if err := o.store.UpdateDreamSession(ctx, sess); err != nil {
		return fmt.Errorf("dream: update session counters: %w", err)
	}
	return nil
}

// mergeMemories merges 2+ non-deleted memories into one new ACTIVE memory,
// soft-deleting the sources. MemoryEvent provenance links are left
// untouched on the (now soft-deleted) sources, matching original_source's
// "MemoryEvent links preserved" comment.
func (o *operations) mergeMemories(ctx context.Context, sess *types.DreamSession, sourceIDs []string, mergedSummary string, mergedImportance, mergedConfidence float64, reasoning string) (*types.Memory, error) {
	var sources []types.Memory
	for _, id := range sourceIDs {
		m, err := o.store.GetMemory(ctx, id, false)
		if err != nil {
			continue
		}
		if m.IsDeleted {
			continue
		}
		sources = append(sources, *m)
	}
	if len(sources) < 2 {
		return nil, apperr.Wrap(apperr.Validation, "dream: merge requires at least 2 non-deleted memories")
	}
	animaID := sources[0].AnimaID
	for _, s := range sources[1:] {
		if s.AnimaID != animaID {
			return nil, apperr.Wrap(apperr.Validation, "dream: cannot merge memories from different animas")
		}
	}

	beforeSnaps := make([]map[string]interface{}, len(sources))
	contentParts := make([]string, 0, len(sources))
	timeStart := sources[0].TimeStart
	timeEnd := sources[0].TimeEnd
	for i, s := range sources {
		beforeSnaps[i] = snapshotMemory(s)
		if s.Content != "" {
			contentParts = append(contentParts, s.Content)
		}
		if s.TimeStart.Before(timeStart) {
			timeStart = s.TimeStart
		}
		end := s.TimeEnd
		if end.IsZero() {
			end = s.TimeStart
		}
		if end.After(timeEnd) {
			timeEnd = end
		}
	}
	before, err := marshalSnapshot(beforeSnaps...)
	if err != nil {
		return nil, fmt.Errorf("dream: marshal merge before-state: %w", err)
	}

	merged := &types.Memory{
		ID:         uuid.New().String(),
		AnimaID:    animaID,
		Summary:    mergedSummary,
		Content:    strings.Join(contentParts, "\n\n---\n\n"),
		Importance: &mergedImportance,
		Confidence: &mergedConfidence,
		State:      types.MemoryActive,
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
		Metadata:   map[string]interface{}{"merged_from": sourceIDs},
	}
	if err := o.store.CreateMemory(ctx, merged); err != nil {
		return nil, fmt.Errorf("dream: create merged memory: %w", err)
	}

	for _, s := range sources {
		if err := o.store.SoftDeleteMemory(ctx, s.ID); err != nil {
			return nil, fmt.Errorf("dream: soft-delete merge source %s: %w", s.ID, err)
		}
	}

	after, err := marshalSnapshot(snapshotMemory(*merged))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal merge after-state: %w", err)
	}

	if err := o.recordAction(ctx, sess, types.ActionMerge, types.PhaseDeepSleep, sourceIDs, []string{merged.ID}, before, after, &reasoning); err != nil {
		return nil, err
	}
	return merged, nil
}

// splitMemory splits one memory into 2+ distinct memories, soft-deleting
// the source. New memories deliberately carry no content — original_source
// treats a split as purely a conceptual separation of the summary.
func (o *operations) splitMemory(ctx context.Context, sess *types.DreamSession, sourceID string, splitSummaries []string, reasoning string) ([]types.Memory, error) {
	source, err := o.store.GetMemory(ctx, sourceID, false)
	if err != nil {
		return nil, fmt.Errorf("dream: load split source: %w", err)
	}
	if source.IsDeleted {
		return nil, apperr.Wrap(apperr.Validation, "dream: split source is already deleted")
	}
	if len(splitSummaries) < 2 {
		return nil, apperr.Wrap(apperr.Validation, "dream: split requires at least 2 summaries")
	}

	before, err := marshalSnapshot(snapshotMemory(*source))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal split before-state: %w", err)
	}

	results := make([]types.Memory, len(splitSummaries))
	resultIDs := make([]string, len(splitSummaries))
	for i, summary := range splitSummaries {
		m := types.Memory{
			ID:         uuid.New().String(),
			AnimaID:    source.AnimaID,
			Summary:    summary,
			Importance: source.Importance,
			Confidence: source.Confidence,
			State:      types.MemoryActive,
			TimeStart:  source.TimeStart,
			TimeEnd:    source.TimeEnd,
			Metadata:   map[string]interface{}{"split_from": source.ID},
		}
		if err := o.store.CreateMemory(ctx, &m); err != nil {
			return nil, fmt.Errorf("dream: create split memory: %w", err)
		}
		results[i] = m
		resultIDs[i] = m.ID
	}

	if err := o.store.SoftDeleteMemory(ctx, source.ID); err != nil {
		return nil, fmt.Errorf("dream: soft-delete split source: %w", err)
	}

	afterSnaps := make([]map[string]interface{}, len(results))
	for i, m := range results {
		afterSnaps[i] = snapshotMemory(m)
	}
	after, err := marshalSnapshot(afterSnaps...)
	if err != nil {
		return nil, fmt.Errorf("dream: marshal split after-state: %w", err)
	}

	if err := o.recordAction(ctx, sess, types.ActionSplit, types.PhaseDeepSleep, []string{sourceID}, resultIDs, before, after, &reasoning); err != nil {
		return nil, err
	}
	return results, nil
}

// memoryUpdate is the narrow set of fields updateMemory is allowed to
// change, mirroring original_source's allowed_fields set.
type memoryUpdate struct {
	Summary    *string
	Importance *float64
	Confidence *float64
	DecayScore *float64
}

// updateMemory applies a partial field update to a memory, recording the
// action under phase (LIGHT_SLEEP for algorithmic decay updates,
// DEEP_SLEEP for LLM review decisions). reasoning is nil for algorithmic
// updates.
func (o *operations) updateMemory(ctx context.Context, sess *types.DreamSession, memoryID string, upd memoryUpdate, phase types.DreamPhase, reasoning *string) (*types.Memory, error) {
	m, err := o.store.GetMemory(ctx, memoryID, false)
	if err != nil {
		return nil, fmt.Errorf("dream: load memory to update: %w", err)
	}
	if m.IsDeleted {
		return nil, apperr.Wrap(apperr.Validation, "dream: memory is deleted")
	}

	before, err := marshalSnapshot(snapshotMemory(*m))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal update before-state: %w", err)
	}

	if upd.Summary != nil {
		m.Summary = *upd.Summary
	}
	if upd.Importance != nil {
		m.Importance = upd.Importance
	}
	if upd.Confidence != nil {
		m.Confidence = upd.Confidence
	}
	if upd.DecayScore != nil {
		m.DecayScore = upd.DecayScore
	}

	if err := o.store.UpdateMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("dream: update memory: %w", err)
	}

	after, err := marshalSnapshot(snapshotMemory(*m))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal update after-state: %w", err)
	}

	if err := o.recordAction(ctx, sess, types.ActionUpdate, phase, []string{memoryID}, []string{memoryID}, before, after, reasoning); err != nil {
		return nil, err
	}
	return m, nil
}

// archiveMemory transitions a memory to DECAYING or ARCHIVED.
func (o *operations) archiveMemory(ctx context.Context, sess *types.DreamSession, memoryID string, newState types.MemoryState, phase types.DreamPhase, reasoning *string) (*types.Memory, error) {
	if newState != types.MemoryDecaying && newState != types.MemoryArchived {
		return nil, apperr.Wrap(apperr.Validation, "dream: invalid archive state "+string(newState))
	}
	m, err := o.store.GetMemory(ctx, memoryID, false)
	if err != nil {
		return nil, fmt.Errorf("dream: load memory to archive: %w", err)
	}
	if m.IsDeleted {
		return nil, apperr.Wrap(apperr.Validation, "dream: memory is deleted")
	}

	before, err := marshalSnapshot(snapshotMemory(*m))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal archive before-state: %w", err)
	}

	m.State = newState
	if err := o.store.UpdateMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("dream: archive memory: %w", err)
	}

	after, err := marshalSnapshot(snapshotMemory(*m))
	if err != nil {
		return nil, fmt.Errorf("dream: marshal archive after-state: %w", err)
	}

	if err := o.recordAction(ctx, sess, types.ActionArchive, phase, []string{memoryID}, []string{memoryID}, before, after, reasoning); err != nil {
		return nil, err
	}
	return m, nil
}

// deleteMemory soft-deletes a memory as curation noise. No-op (but not an
// error) if already deleted, matching original_source.
func (o *operations) deleteMemory(ctx context.Context, sess *types.DreamSession, memoryID string, phase types.DreamPhase, reasoning string) error {
	m, err := o.store.GetMemory(ctx, memoryID, false)
	if err != nil {
		return fmt.Errorf("dream: load memory to delete: %w", err)
	}
	if m.IsDeleted {
		return nil
	}

	before, err := marshalSnapshot(snapshotMemory(*m))
	if err != nil {
		return fmt.Errorf("dream: marshal delete before-state: %w", err)
	}

	if err := o.store.SoftDeleteMemory(ctx, memoryID); err != nil {
		return fmt.Errorf("dream: soft-delete memory: %w", err)
	}

	return o.recordAction(ctx, sess, types.ActionDelete, phase, []string{memoryID}, nil, before, nil, &reasoning)
}

// createSession opens a new RUNNING DreamSession, freezing cfg as its
// config_snapshot.
func (o *operations) createSession(ctx context.Context, animaID string, trigger types.DreamTrigger, triggeringUser string, cfg types.DreamConfig) (*types.DreamSession, error) {
	snapshot, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("dream: marshal config snapshot: %w", err)
	}
	sess := &types.DreamSession{
		ID:             uuid.New().String(),
		AnimaID:        animaID,
		Trigger:        trigger,
		TriggeringUser: triggeringUser,
		Status:         types.DreamRunning,
		StartedAt:      time.Now().UTC(),
		ConfigSnapshot: snapshot,
	}
	if err := o.store.CreateDreamSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("dream: create session: %w", err)
	}
	return sess, nil
}

func (o *operations) completeSession(ctx context.Context, sess *types.DreamSession, summary string) error {
	sess.Status = types.DreamCompleted
	now := time.Now().UTC()
	sess.CompletedAt = &now
	sess.Summary = summary
	return o.store.UpdateDreamSession(ctx, sess)
}

func (o *operations) failSession(ctx context.Context, sess *types.DreamSession, errMsg string) error {
	actions, err := o.store.ListDreamActions(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("dream: count actions for failed session: %w", err)
	}
	sess.Status = types.DreamFailed
	now := time.Now().UTC()
	sess.CompletedAt = &now
	sess.ErrorMessage = fmt.Sprintf("failed after %d actions: %s", len(actions), errMsg)
	return o.store.UpdateDreamSession(ctx, sess)
}
