package types

import (
	"encoding/json"
	"time"
)

// DreamSession is one end-to-end dream curation cycle over one anima's
// memories. At most one session per anima may be RUNNING at a time (§4.7).
type DreamSession struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Trigger         DreamTrigger `json:"trigger"`
	TriggeringUser  string       `json:"triggering_user,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Status       DreamStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`

	MemoriesReviewed int `json:"memories_reviewed"`
	MemoriesModified int `json:"memories_modified"`
	MemoriesCreated  int `json:"memories_created"`
	MemoriesArchived int `json:"memories_archived"`
	MemoriesDeleted  int `json:"memories_deleted"`

	Summary string `json:"summary,omitempty"`

	// ConfigSnapshot freezes the DreamConfig in effect when this session
	// started, so a concurrent config edit never changes an in-flight run.
	ConfigSnapshot json.RawMessage `json:"config_snapshot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyActionCounters updates the session's per-action-type counters
// according to the rule in §4.7's "Action audit invariant":
//
//	MERGE   -> created += 1,            modified += len(sources)
//	SPLIT   -> created += len(results), modified += 1
//	UPDATE  -> modified += 1
//	ARCHIVE -> archived += 1
//	DELETE  -> deleted += 1
func (s *DreamSession) ApplyActionCounters(actionType DreamActionType, sourceCount, resultCount int) {
	switch actionType {
	case ActionMerge:
		s.MemoriesCreated++
		s.MemoriesModified += sourceCount
	case ActionSplit:
		s.MemoriesCreated += resultCount
		s.MemoriesModified++
	case ActionUpdate:
		s.MemoriesModified++
	case ActionArchive:
		s.MemoriesArchived++
	case ActionDelete:
		s.MemoriesDeleted++
	}
}

// Summarize builds the human-readable summary string from the session's
// non-zero counters, in the order created/modified/archived/deleted.
func (s *DreamSession) Summarize() string {
	return summarizeDreamCounters(s.MemoriesCreated, s.MemoriesModified, s.MemoriesArchived, s.MemoriesDeleted, s.MemoriesReviewed)
}

// DreamAction is an immutable, append-only audit row recording exactly one
// mutation a dream session applied to one or more memories.
type DreamAction struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	ActionType DreamActionType `json:"action_type"`
	Phase      DreamPhase      `json:"phase"`

	SourceMemoryIDs []string `json:"source_memory_ids"`
	ResultMemoryIDs []string `json:"result_memory_ids,omitempty"`

	Before json.RawMessage `json:"before_state"`
	After  json.RawMessage `json:"after_state,omitempty"`

	// Reasoning is the LLM's stated rationale; nil for algorithmic
	// (light-sleep) actions.
	Reasoning *string `json:"reasoning,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the per-action invariants from §8 invariant 5:
// every action names at least one source; DELETE has no results; MERGE
// requires >=2 sources and exactly 1 result; SPLIT requires exactly 1
// source and >=2 results.
func (a *DreamAction) Validate() error {
	if len(a.SourceMemoryIDs) < 1 {
		return errInvalidAction("source_memory_ids must be non-empty")
	}
	switch a.ActionType {
	case ActionDelete:
		if len(a.ResultMemoryIDs) != 0 {
			return errInvalidAction("DELETE action must not have result_memory_ids")
		}
	case ActionMerge:
		if len(a.SourceMemoryIDs) < 2 || len(a.ResultMemoryIDs) != 1 {
			return errInvalidAction("MERGE requires >=2 sources and exactly 1 result")
		}
	case ActionSplit:
		if len(a.SourceMemoryIDs) != 1 || len(a.ResultMemoryIDs) < 2 {
			return errInvalidAction("SPLIT requires exactly 1 source and >=2 results")
		}
	}
	return nil
}
