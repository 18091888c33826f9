package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/scrypster/ltam/internal/synthesis"
	"github.com/scrypster/ltam/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAnima(s *fakeSynthesisStore, id string, createdAt time.Time) {
	s.animas[id] = &types.Anima{ID: id, CreatedAt: createdAt}
}

func seedEvents(s *fakeSynthesisStore, animaID string, n int, start time.Time) {
	for i := 0; i < n; i++ {
		s.events = append(s.events, types.Event{
			ID:         fmt.Sprintf("ev-%s-%d", animaID, i),
			AnimaID:    animaID,
			Content:    "something happened",
			OccurredAt: start.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestMemorySynthesisWorkflow_ExecuteForAnima_PersistsAndReportsItemID(t *testing.T) {
	base := time.Now().Add(-2 * time.Hour)
	store := newFakeSynthesisStore()
	seedAnima(store, "anima-1", base)
	seedEvents(store, "anima-1", 50, base)

	llm := &fakeLLM{response: `{"summary":"s","content":"c"}`}
	synth := synthesis.NewMemorySynthesizer(store, llm, nil)
	wf := NewMemorySynthesisWorkflow(synth, 6)

	res := wf.ExecuteForAnima(context.Background(), "anima-1", "scheduled")
	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.ItemID)
}

func TestMemorySynthesisWorkflow_ExecuteForAnima_ReportsSkipReason(t *testing.T) {
	base := time.Now().Add(-time.Minute)
	store := newFakeSynthesisStore()
	seedAnima(store, "anima-1", base)
	// No events: threshold_check reports no_events.

	synth := synthesis.NewMemorySynthesizer(store, &fakeLLM{}, nil)
	wf := NewMemorySynthesisWorkflow(synth, 6)

	res := wf.ExecuteForAnima(context.Background(), "anima-1", "scheduled")
	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Equal(t, synthesis.SkipNoEvents, res.Reason)
}

func TestMemorySynthesisWorkflow_ExecuteForAnima_ReportsFailureOnLLMError(t *testing.T) {
	base := time.Now().Add(-2 * time.Hour)
	store := newFakeSynthesisStore()
	seedAnima(store, "anima-1", base)
	seedEvents(store, "anima-1", 50, base)

	synth := synthesis.NewMemorySynthesizer(store, &fakeLLM{err: assertErr{"llm down"}}, nil)
	wf := NewMemorySynthesisWorkflow(synth, 6)

	res := wf.ExecuteForAnima(context.Background(), "anima-1", "scheduled")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestOrchestrator_CheckAndEnqueueIfNeeded_SchedulesRealtimeRun(t *testing.T) {
	base := time.Now().Add(-2 * time.Hour)
	store := newFakeSynthesisStore()
	seedAnima(store, "anima-1", base)
	seedEvents(store, "anima-1", 50, base)

	llm := &fakeLLM{response: `{"summary":"s","content":"c"}`}
	synth := synthesis.NewMemorySynthesizer(store, llm, nil)
	wf := NewMemorySynthesisWorkflow(synth, 6)

	o := NewOrchestrator(&fakeAnimaLister{})
	o.Register(wf)

	enqueued, err := o.CheckAndEnqueueIfNeeded(context.Background(), "anima-1")
	require.NoError(t, err)
	assert.True(t, enqueued)

	require.Eventually(t, func() bool {
		for _, m := range store.memories {
			if m.AnimaID == "anima-1" {
				return true
			}
		}
		return false
	}, realtimeDebounce+2*time.Second, 10*time.Millisecond, "timed out waiting for debounced realtime run")
}

func TestOrchestrator_CheckAndEnqueueIfNeeded_SkipsBelowThreshold(t *testing.T) {
	base := time.Now().Add(-time.Minute)
	store := newFakeSynthesisStore()
	seedAnima(store, "anima-1", base)
	seedEvents(store, "anima-1", 1, base)

	synth := synthesis.NewMemorySynthesizer(store, &fakeLLM{}, nil)
	wf := NewMemorySynthesisWorkflow(synth, 6)

	o := NewOrchestrator(&fakeAnimaLister{})
	o.Register(wf)

	enqueued, err := o.CheckAndEnqueueIfNeeded(context.Background(), "anima-1")
	require.NoError(t, err)
	assert.False(t, enqueued)

	o.debounce.mu.Lock()
	_, pending := o.debounce.timers["memory_synthesis_realtime_anima-1"]
	o.debounce.mu.Unlock()
	assert.False(t, pending, "must not schedule a run when below threshold")
}

// assertErr is a minimal error used where the test only cares that Call fails.
type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
