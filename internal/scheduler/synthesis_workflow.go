package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/ltam/internal/synthesis"
)

// realtimeDebounce is the coalescing window §4.8 gives a burst of events
// before the realtime synthesis job actually runs.
const realtimeDebounce = 5 * time.Second

// MemorySynthesisWorkflow adapts a synthesis.MemorySynthesizer to Workflow
// and exposes the threshold peek the orchestrator's realtime
// check-and-enqueue path needs.
type MemorySynthesisWorkflow struct {
	synth         *synthesis.MemorySynthesizer
	intervalHours float64
}

// NewMemorySynthesisWorkflow builds the workflow. intervalHours is the
// scheduled (hourly-class) run cadence; §3's SynthesisConfig carries a
// per-anima override, but the workflow's own periodic sweep runs at one
// fixed cadence across every anima, matching SYNTHESIS_JOB_INTERVAL_HOURS.
func NewMemorySynthesisWorkflow(s *synthesis.MemorySynthesizer, intervalHours float64) *MemorySynthesisWorkflow {
	if intervalHours <= 0 {
		intervalHours = 6
	}
	return &MemorySynthesisWorkflow{synth: s, intervalHours: intervalHours}
}

func (w *MemorySynthesisWorkflow) Name() string { return "memory_synthesis" }

func (w *MemorySynthesisWorkflow) IntervalHours() float64 { return w.intervalHours }

func (w *MemorySynthesisWorkflow) ExecuteForAnima(ctx context.Context, animaID, triggerSource string) Result {
	res, err := w.synth.Run(ctx, animaID, time.Now())
	if err != nil {
		return Result{AnimaID: animaID, Success: false, Error: err.Error()}
	}
	if !res.Proceeded {
		return Result{AnimaID: animaID, Success: true, Skipped: true, Reason: res.SkipReason}
	}
	if res.MemoryID == "" {
		return Result{AnimaID: animaID, Success: false, Reason: "synthesis triggered but no memory created"}
	}
	return Result{AnimaID: animaID, Success: true, ItemID: res.MemoryID}
}

// CheckAndEnqueueIfNeeded is the fast path §4.8 calls after every event
// creation: score the anima's accumulation, and if at or above threshold,
// debounce a realtime run of the memory-synthesis workflow. Returns true if
// a run was (re)scheduled.
func (o *Orchestrator) CheckAndEnqueueIfNeeded(ctx context.Context, animaID string) (bool, error) {
	rs, err := o.lookup("memory_synthesis")
	if err != nil {
		return false, err
	}
	peeker, ok := rs.wf.(*MemorySynthesisWorkflow)
	if !ok {
		return false, fmt.Errorf("scheduler: memory_synthesis workflow not registered as *MemorySynthesisWorkflow")
	}

	proceed, _, err := peeker.synth.PeekThreshold(ctx, animaID, time.Now())
	if err != nil {
		return false, fmt.Errorf("scheduler: check threshold for anima %s: %w", animaID, err)
	}
	if !proceed {
		return false, nil
	}

	jobID := "memory_synthesis_realtime_" + animaID
	o.debounce.schedule(jobID, realtimeDebounce, func() {
		if _, err := o.ExecuteForAnima(context.Background(), "memory_synthesis", animaID, "realtime"); err != nil {
			log.Printf("scheduler: realtime memory_synthesis run failed for anima %s: %v", animaID, err)
		}
	})
	return true, nil
}
