package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutoKnowledge_Trigger_RunsDetachedAndReportsMemoryID(t *testing.T) {
	calls := make(chan string, 1)
	h := NewAutoKnowledge(func(ctx context.Context, memoryID string) error {
		calls <- memoryID
		return nil
	}, nil)

	h.Trigger("mem-1")

	select {
	case id := <-calls:
		assert.Equal(t, "mem-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detached run")
	}
}

func TestAutoKnowledge_Trigger_SwallowsRunnerError(t *testing.T) {
	calls := make(chan string, 1)
	h := NewAutoKnowledge(func(ctx context.Context, memoryID string) error {
		calls <- memoryID
		return errors.New("boom")
	}, nil)

	// Must not panic the test goroutine even though runner errors.
	h.Trigger("mem-1")

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detached run")
	}
}

func TestAutoKnowledge_Trigger_NoopWhenDisabled(t *testing.T) {
	calls := make(chan string, 1)
	h := NewAutoKnowledge(func(ctx context.Context, memoryID string) error {
		calls <- memoryID
		return nil
	}, func() bool { return false })

	h.Trigger("mem-1")

	select {
	case <-calls:
		t.Fatal("runner must not be invoked when disabled")
	case <-time.After(200 * time.Millisecond):
		// expected: nothing fired
	}
}
