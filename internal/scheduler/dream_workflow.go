package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/dream"
	"github.com/scrypster/ltam/pkg/types"
)

// DreamWorkflow adapts a dream.Engine to Workflow, translating trigger
// sources into the DreamTrigger enum and the engine's apperr.Duplicate
// already-running signal into a Skipped result.
type DreamWorkflow struct {
	engine        *dream.Engine
	intervalHours float64
}

// NewDreamWorkflow builds the workflow. intervalHours matches
// original_source's DREAM_JOB_INTERVAL_HOURS (12).
func NewDreamWorkflow(e *dream.Engine, intervalHours float64) *DreamWorkflow {
	if intervalHours <= 0 {
		intervalHours = 12
	}
	return &DreamWorkflow{engine: e, intervalHours: intervalHours}
}

func (w *DreamWorkflow) Name() string { return "dreamer" }

func (w *DreamWorkflow) IntervalHours() float64 { return w.intervalHours }

func (w *DreamWorkflow) ExecuteForAnima(ctx context.Context, animaID, triggerSource string) Result {
	trigger := types.TriggerScheduled
	if triggerSource == "manual" {
		trigger = types.TriggerManual
	}

	sess, err := w.engine.RunDream(ctx, animaID, trigger, "")
	if err != nil {
		if errors.Is(err, apperr.Duplicate) {
			return Result{AnimaID: animaID, Success: true, Skipped: true, Reason: "session_already_running"}
		}
		return Result{AnimaID: animaID, Success: false, Error: err.Error()}
	}
	if sess.Status == types.DreamFailed {
		return Result{AnimaID: animaID, Success: false, Error: sess.ErrorMessage}
	}
	return Result{AnimaID: animaID, Success: true, ItemID: sess.ID}
}

// StaleSweep satisfies the orchestrator's staleSweeper hook, recovering
// dream sessions left RUNNING past the staleness threshold.
func (w *DreamWorkflow) StaleSweep(ctx context.Context, olderThan time.Time) (int, error) {
	return w.engine.StaleSweep(ctx, olderThan)
}
