package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_Schedule_FiresAfterDelay(t *testing.T) {
	d := newDebouncer()
	fired := make(chan struct{})
	d.schedule("job-1", 30*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced call")
	}
}

func TestDebouncer_Schedule_ReplacesPendingUnderSameID(t *testing.T) {
	d := newDebouncer()
	calls := make(chan int, 2)
	d.schedule("job-1", 30*time.Millisecond, func() { calls <- 1 })
	d.schedule("job-1", 30*time.Millisecond, func() { calls <- 2 })

	select {
	case v := <-calls:
		assert.Equal(t, 2, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced call")
	}

	select {
	case <-calls:
		t.Fatal("first scheduled call must have been replaced, not also fired")
	case <-time.After(100 * time.Millisecond):
		// expected: nothing else fires
	}
}

func TestDebouncer_StopAll_CancelsPending(t *testing.T) {
	d := newDebouncer()
	calls := make(chan struct{}, 1)
	d.schedule("job-1", 30*time.Millisecond, func() { calls <- struct{}{} })
	d.stopAll()

	select {
	case <-calls:
		t.Fatal("stopAll must cancel pending timers")
	case <-time.After(100 * time.Millisecond):
		// expected
	}
}
