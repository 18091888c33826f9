package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scrypster/ltam/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_ExecuteForAnima_UnknownWorkflow(t *testing.T) {
	o := NewOrchestrator(&fakeAnimaLister{})
	_, err := o.ExecuteForAnima(context.Background(), "nope", "anima-1", "manual")
	assert.Error(t, err)
}

func TestOrchestrator_ExecuteForAnima_ConcurrencyGuardSkipsSecondCall(t *testing.T) {
	release := make(chan struct{})
	wf := newFakeWorkflow("wf", 6, func(ctx context.Context, animaID, trigger string) Result {
		<-release
		return Result{AnimaID: animaID, Success: true, ItemID: "item-1"}
	})
	o := NewOrchestrator(&fakeAnimaLister{})
	o.Register(wf)

	var firstResult Result
	done := make(chan struct{})
	go func() {
		firstResult, _ = o.ExecuteForAnima(context.Background(), "wf", "anima-1", "manual")
		close(done)
	}()

	// Wait until the first call is actually inside the workflow (recorded on calls).
	<-wf.calls

	second, err := o.ExecuteForAnima(context.Background(), "wf", "anima-1", "manual")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, "already_running", second.Reason)

	close(release)
	<-done
	assert.True(t, firstResult.Success)
	assert.Equal(t, "item-1", firstResult.ItemID)
}

func TestOrchestrator_ExecuteForAllAnimas_AggregatesStats(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	wf := newFakeWorkflow("wf", 6, func(ctx context.Context, animaID, trigger string) Result {
		mu.Lock()
		seen[animaID] = true
		mu.Unlock()
		if animaID == "anima-bad" {
			return Result{AnimaID: animaID, Success: false, Error: "boom"}
		}
		return Result{AnimaID: animaID, Success: true, ItemID: "item-" + animaID}
	})
	lister := &fakeAnimaLister{animas: []types.Anima{
		{ID: "anima-1"}, {ID: "anima-2"}, {ID: "anima-bad"},
	}}
	o := NewOrchestrator(lister)
	o.Register(wf)

	stats, err := o.ExecuteForAllAnimas(context.Background(), "wf", "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 0, stats.SuccessfulRuns, "one anima failed so the round is not fully successful")
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 3, stats.AnimasProcessed)
	assert.Equal(t, 2, stats.ItemsCreated)
	assert.True(t, seen["anima-1"] && seen["anima-2"] && seen["anima-bad"])
}

func TestOrchestrator_TriggerManual_DispatchesBySingleVsAll(t *testing.T) {
	wf := newFakeWorkflow("wf", 6, func(ctx context.Context, animaID, trigger string) Result {
		assert.Equal(t, "manual", trigger)
		return Result{AnimaID: animaID, Success: true}
	})
	lister := &fakeAnimaLister{animas: []types.Anima{{ID: "anima-1"}}}
	o := NewOrchestrator(lister)
	o.Register(wf)

	single, err := o.TriggerManual(context.Background(), "wf", "anima-1")
	require.NoError(t, err)
	res, ok := single.(Result)
	require.True(t, ok)
	assert.True(t, res.Success)
	<-wf.calls

	all, err := o.TriggerManual(context.Background(), "wf", "")
	require.NoError(t, err)
	_, ok = all.(Stats)
	assert.True(t, ok)
	<-wf.calls
}

func TestOrchestrator_Status_ReportsIntervalAndStats(t *testing.T) {
	wf := newFakeWorkflow("wf", 3, func(ctx context.Context, animaID, trigger string) Result {
		return Result{AnimaID: animaID, Success: true, ItemID: "x"}
	})
	lister := &fakeAnimaLister{animas: []types.Anima{{ID: "anima-1"}}}
	o := NewOrchestrator(lister)
	o.Register(wf)

	_, err := o.ExecuteForAllAnimas(context.Background(), "wf", "scheduled")
	require.NoError(t, err)

	status, err := o.Status("wf")
	require.NoError(t, err)
	assert.Equal(t, "wf", status.Workflow)
	assert.Equal(t, 3.0, status.IntervalHours)
	assert.Equal(t, 1, status.Stats.TotalRuns)
	assert.False(t, status.LastRun.IsZero())
}

func TestOrchestrator_StartStop_Idempotent(t *testing.T) {
	var runs int32Counter
	wf := newFakeWorkflow("wf", 0.0003, func(ctx context.Context, animaID, trigger string) Result {
		runs.inc()
		return Result{AnimaID: animaID, Success: true}
	})
	lister := &fakeAnimaLister{animas: []types.Anima{{ID: "anima-1"}}}
	o := NewOrchestrator(lister)
	o.Register(wf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Start(ctx)
	o.Start(ctx) // idempotent: must not spawn a second ticker loop

	select {
	case <-wf.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("expected at least one scheduled tick to fire")
	}

	o.Stop()
	o.Stop() // idempotent
}

// int32Counter is a tiny race-free counter for the start/stop test.
type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}
