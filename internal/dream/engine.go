// Package dream implements the curation engine (§4.7): a two-phase cycle
// that keeps one anima's memory store coherent over time. Light Sleep is
// algorithmic (decay, state transitions, candidate detection); Deep Sleep
// spends LLM calls turning those candidates into merges, splits, and
// refinements. Every mutation is audited via a DreamAction row and folded
// into the parent session's counters (internal/dream's audit.go).
package dream

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

// Engine orchestrates dream cycles for a store of animas. The in-process
// per-anima concurrency guard lives one layer up, in the scheduler
// orchestrator that dispatches ExecuteForAnima; Engine itself only enforces
// the DB-level belt-and-suspenders check (HasRunningSession), matching
// original_source's dual guard split across DreamerScheduler._running and
// DreamerOperations.has_running_session.
type Engine struct {
	store    Store
	llm      LLM
	embedder Embedder
	config   types.DreamConfig

	// progress broadcasts phase transitions to operator consoles; nil if
	// WithProgress was never called, in which case publishing is a no-op.
	progress *ProgressHub
}

// NewEngine builds an Engine. config is cloned into every session's
// ConfigSnapshot at creation time, so later mutation of the DreamConfig
// value passed here does not affect in-flight sessions.
func NewEngine(s Store, llm LLM, embedder Embedder, config types.DreamConfig) *Engine {
	return &Engine{store: s, llm: llm, embedder: embedder, config: config}
}

// WithProgress attaches a live progress broadcaster; callers run hub.Run in
// its own goroutine and mount hub.ServeHTTP for operator consoles.
func (e *Engine) WithProgress(hub *ProgressHub) *Engine {
	e.progress = hub
	return e
}

func (e *Engine) publish(sessionID, animaID string, phase DreamPhaseLabel, message string) {
	if e.progress == nil {
		return
	}
	e.progress.Publish(ProgressEvent{SessionID: sessionID, AnimaID: animaID, Phase: phase, Message: message})
}

// RunDream executes one full dream cycle for animaID: pre-flight
// already-running check, context gather, Light Sleep, Deep Sleep, summary,
// and completion. A failure after the session was created marks it FAILED
// (via a fresh update, not a rollback) rather than losing the record.
func (e *Engine) RunDream(ctx context.Context, animaID string, trigger types.DreamTrigger, triggeringUser string) (*types.DreamSession, error) {
	running, err := e.store.HasRunningSession(ctx, animaID)
	if err != nil {
		return nil, fmt.Errorf("dream: check running session: %w", err)
	}
	if running {
		return nil, apperr.Wrap(apperr.Duplicate, "dream: anima already has a running dream session")
	}

	ops := newOperations(e.store)
	sess, err := ops.createSession(ctx, animaID, trigger, triggeringUser, e.config)
	if err != nil {
		return nil, err
	}

	if err := e.runCycle(ctx, ops, sess); err != nil {
		if failErr := ops.failSession(ctx, sess, err.Error()); failErr != nil {
			return nil, fmt.Errorf("dream: cycle failed (%v) and could not mark session failed: %w", err, failErr)
		}
		return sess, nil
	}
	return sess, nil
}

// runCycle performs gather -> light sleep -> deep sleep -> complete,
// mutating sess in place via ops. Returns the first fatal error; Deep
// Sleep's per-item failures are non-fatal and only appear in the summary.
func (e *Engine) runCycle(ctx context.Context, ops *operations, sess *types.DreamSession) error {
	e.publish(sess.ID, sess.AnimaID, ProgressGathering, "gathering dream context")
	dctx, err := gatherContext(ctx, e.store, sess.AnimaID)
	if err != nil {
		e.publish(sess.ID, sess.AnimaID, ProgressFailed, err.Error())
		return err
	}

	if len(dctx.Memories) == 0 {
		e.publish(sess.ID, sess.AnimaID, ProgressComplete, "no memories to process")
		return ops.completeSession(ctx, sess, "No memories to process.")
	}

	sess.MemoriesReviewed = len(dctx.Memories)
	if err := e.store.UpdateDreamSession(ctx, sess); err != nil {
		return fmt.Errorf("dream: record memories_reviewed: %w", err)
	}

	e.publish(sess.ID, sess.AnimaID, ProgressLightSleep, fmt.Sprintf("reviewing %d memories", len(dctx.Memories)))
	light, err := runLightSleep(ctx, ops, sess, dctx, e.config)
	if err != nil {
		e.publish(sess.ID, sess.AnimaID, ProgressFailed, err.Error())
		return err
	}

	e.publish(sess.ID, sess.AnimaID, ProgressDeepSleep, fmt.Sprintf("%d merge candidates, %d flagged for review", len(light.mergeCandidates), len(light.reviewCandidates)))
	deep := runDeepSleep(ctx, ops, e.llm, e.embedder, sess, dctx, light, e.config)

	summary := sess.Summarize()
	if len(deep.errors) > 0 {
		summary = fmt.Sprintf("%s %d non-fatal error(s) during deep sleep.", summary, len(deep.errors))
	}
	e.publish(sess.ID, sess.AnimaID, ProgressComplete, summary)
	return ops.completeSession(ctx, sess, summary)
}

// CancelSession moves a RUNNING session to FAILED with a user-cancellation
// message. No-op error if the session is not currently RUNNING.
func (e *Engine) CancelSession(ctx context.Context, sessionID string) error {
	sess, err := e.store.GetDreamSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("dream: load session to cancel: %w", err)
	}
	if sess.Status != types.DreamRunning {
		return apperr.Wrap(apperr.Validation, "dream: session is not running")
	}
	ops := newOperations(e.store)
	return ops.failSession(ctx, sess, "Cancelled by user")
}

// StaleSweep fails every RUNNING session older than olderThan, the periodic
// recovery pass for orchestrator crashes or hangs (§4.7, 60-minute
// threshold in original_source's dreamer_scheduler).
func (e *Engine) StaleSweep(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := e.store.StaleRunningSessions(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("dream: list stale sessions: %w", err)
	}
	ops := newOperations(e.store)
	for _, id := range ids {
		sess, err := e.store.GetDreamSession(ctx, id)
		if err != nil {
			continue
		}
		if sess.Status != types.DreamRunning {
			continue
		}
		if err := ops.failSession(ctx, sess, "Stale session auto-failed after exceeding the running-session threshold"); err != nil {
			return len(ids), fmt.Errorf("dream: fail stale session %s: %w", id, err)
		}
	}
	return len(ids), nil
}
