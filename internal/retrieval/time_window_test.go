package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/ltam/pkg/types"
)

func TestTimeWindow_FiltersByStateAndWindow(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeMemoryStore{memories: []types.Memory{
		{ID: "in-window-active", AnimaID: "a1", State: types.MemoryActive, TimeStart: now.Add(-time.Hour), TimeEnd: now},
		{ID: "in-window-archived", AnimaID: "a1", State: types.MemoryArchived, TimeStart: now.Add(-time.Hour), TimeEnd: now},
		{ID: "too-old", AnimaID: "a1", State: types.MemoryActive, TimeStart: now.Add(-48 * time.Hour), TimeEnd: now.Add(-47 * time.Hour)},
		{ID: "other-anima", AnimaID: "a2", State: types.MemoryActive, TimeStart: now.Add(-time.Hour), TimeEnd: now},
	}}

	got, err := TimeWindow(context.Background(), fake, TimeWindowOptions{
		AnimaID: "a1",
		States:  []types.MemoryState{types.MemoryActive},
		MinTime: now.Add(-2 * time.Hour),
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "in-window-active" {
		t.Errorf("expected only in-window-active, got %+v", got)
	}
}

func TestTimeWindow_TruncatesToLimit(t *testing.T) {
	now := time.Now().UTC()
	var memories []types.Memory
	for i := 0; i < 5; i++ {
		memories = append(memories, types.Memory{
			ID: "m", AnimaID: "a1", State: types.MemoryActive,
			TimeStart: now, TimeEnd: now,
		})
	}
	fake := &fakeMemoryStore{memories: memories}

	got, err := TimeWindow(context.Background(), fake, TimeWindowOptions{AnimaID: "a1", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected limit to truncate to 2, got %d", len(got))
	}
}
