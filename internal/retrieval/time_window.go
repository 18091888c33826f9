package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// TimeWindowOptions narrows the §4.4 time-window query.
type TimeWindowOptions struct {
	AnimaID       string
	States        []types.MemoryState
	MinTime       time.Time
	MaxTime       time.Time
	MinImportance *float64
	MinConfidence *float64
	Limit         int
}

// TimeWindow returns memories for an anima filtered by state set and
// [MinTime, MaxTime), optionally floored on importance/confidence,
// ordered by created_at descending and truncated to Limit.
func TimeWindow(ctx context.Context, s store.MemoryStore, opts TimeWindowOptions) ([]types.Memory, error) {
	states := make([]string, len(opts.States))
	for i, st := range opts.States {
		states[i] = string(st)
	}

	filter := store.MemoryFilter{
		AnimaID:       opts.AnimaID,
		States:        states,
		MinTime:       opts.MinTime,
		MaxTime:       opts.MaxTime,
		MinImportance: opts.MinImportance,
		MinConfidence: opts.MinConfidence,
		ListOptions: store.ListOptions{
			Limit:     opts.Limit,
			SortOrder: "desc",
		},
	}

	page, err := s.ListMemories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval: time window query: %w", err)
	}
	return page.Items, nil
}
