package retrieval

import (
	"context"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// fakeMemoryStore implements store.MemoryStore in-process over a plain
// slice, filtering ListMemories the same way the real backends do.
type fakeMemoryStore struct {
	memories []types.Memory
}

func (f *fakeMemoryStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	f.memories = append(f.memories, *m)
	return nil
}

func (f *fakeMemoryStore) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	for _, m := range f.memories {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMemoryStore) ListMemories(ctx context.Context, filter store.MemoryFilter) (*store.PaginatedResult[types.Memory], error) {
	filter.Normalize()
	var items []types.Memory
	for _, m := range f.memories {
		if filter.AnimaID != "" && m.AnimaID != filter.AnimaID {
			continue
		}
		if len(filter.States) > 0 && !containsState(filter.States, m.State) {
			continue
		}
		if !filter.MinTime.IsZero() && m.TimeEnd.Before(filter.MinTime) {
			continue
		}
		if !filter.MaxTime.IsZero() && m.TimeStart.After(filter.MaxTime) {
			continue
		}
		items = append(items, m)
	}
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return &store.PaginatedResult[types.Memory]{Items: items, Total: len(items)}, nil
}

func (f *fakeMemoryStore) UpdateMemory(ctx context.Context, m *types.Memory) error       { return nil }
func (f *fakeMemoryStore) SoftDeleteMemory(ctx context.Context, id string) error         { return nil }
func (f *fakeMemoryStore) RestoreMemory(ctx context.Context, id string) error            { return nil }
func (f *fakeMemoryStore) TouchAccess(ctx context.Context, id string, t time.Time) error { return nil }

func containsState(states []string, s types.MemoryState) bool {
	for _, st := range states {
		if st == string(s) {
			return true
		}
	}
	return false
}

// fakeKnowledgeStore is the knowledge-side equivalent of fakeMemoryStore.
type fakeKnowledgeStore struct {
	items []types.Knowledge
}

func (f *fakeKnowledgeStore) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	f.items = append(f.items, *k)
	return nil
}
func (f *fakeKnowledgeStore) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	return nil, nil
}
func (f *fakeKnowledgeStore) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	filter.Normalize()
	var items []types.Knowledge
	for _, k := range f.items {
		if filter.AnimaID != "" && k.AnimaID != filter.AnimaID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, k.Type) {
			continue
		}
		items = append(items, k)
	}
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return &store.PaginatedResult[types.Knowledge]{Items: items, Total: len(items)}, nil
}
func (f *fakeKnowledgeStore) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error { return nil }
func (f *fakeKnowledgeStore) SoftDeleteKnowledge(ctx context.Context, id string) error      { return nil }
func (f *fakeKnowledgeStore) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	return nil, nil
}

func containsType(types_ []string, t types.KnowledgeType) bool {
	for _, v := range types_ {
		if v == string(t) {
			return true
		}
	}
	return false
}

// fakeTemporalStore implements retrieval.TemporalStore for Temporal's tests.
type fakeTemporalStore struct {
	fakeMemoryStore
	events      []types.Event
	memoryLinks map[string][]types.MemoryEvent // event ID -> links
}

func (f *fakeTemporalStore) CreateEvent(ctx context.Context, e *types.Event) error { return nil }
func (f *fakeTemporalStore) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	return nil, nil
}
func (f *fakeTemporalStore) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
	filter.Normalize()
	var matches []types.Event
	for _, e := range f.events {
		if filter.AnimaID != "" && e.AnimaID != filter.AnimaID {
			continue
		}
		if filter.Type != "" && string(e.Type) != filter.Type {
			continue
		}
		matches = append(matches, e)
	}
	// newest first, matching the real backends' "occurred_at desc" order.
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].OccurredAt.After(matches[i].OccurredAt) {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return &store.PaginatedResult[types.Event]{Items: matches, Total: len(matches)}, nil
}
func (f *fakeTemporalStore) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	return nil, nil
}
func (f *fakeTemporalStore) SoftDeleteEvent(ctx context.Context, id string) error { return nil }

func (f *fakeTemporalStore) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error {
	return nil
}
func (f *fakeTemporalStore) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	return nil
}
func (f *fakeTemporalStore) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	return nil, nil
}
func (f *fakeTemporalStore) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	return f.memoryLinks[eventID], nil
}
