package packcompiler

import (
	"context"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// fakeStore implements packcompiler.Store entirely in memory, just enough
// of each method for the compiler's read paths plus CreatePack for the
// persistence tests.
type fakeStore struct {
	anima     *types.Anima
	identity  *types.Identity
	ioConfig  *types.IOConfig
	memories  []types.Memory
	knowledge []types.Knowledge
	events    []types.Event
	links     map[string][]types.MemoryEvent

	packs []types.MemoryPack
}

func (f *fakeStore) CreateAnima(ctx context.Context, a *types.Anima) error { return nil }
func (f *fakeStore) GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error) {
	if f.anima == nil || f.anima.ID != id {
		return nil, apperr.NotFound
	}
	return f.anima, nil
}
func (f *fakeStore) ListAnimasByUser(ctx context.Context, userID string, opts store.ListOptions) (*store.PaginatedResult[types.Anima], error) {
	return &store.PaginatedResult[types.Anima]{}, nil
}
func (f *fakeStore) UpdateAnima(ctx context.Context, a *types.Anima) error { return nil }
func (f *fakeStore) CascadeSoftDeleteAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	return types.CascadeCounts{}, nil
}
func (f *fakeStore) CascadeRestoreAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	return types.CascadeCounts{}, nil
}

func (f *fakeStore) GetSynthesisConfig(ctx context.Context, animaID string) (*types.SynthesisConfig, error) {
	cfg := types.DefaultSynthesisConfig(animaID)
	return &cfg, nil
}
func (f *fakeStore) UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error {
	return nil
}
func (f *fakeStore) GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error) {
	if f.ioConfig != nil {
		return f.ioConfig, nil
	}
	return &types.IOConfig{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error { return nil }
func (f *fakeStore) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	if f.identity != nil {
		return f.identity, nil
	}
	return &types.Identity{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIdentity(ctx context.Context, id *types.Identity) error { return nil }

func (f *fakeStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	f.memories = append(f.memories, *m)
	return nil
}
func (f *fakeStore) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	for _, m := range f.memories {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, apperr.NotFound
}
func (f *fakeStore) ListMemories(ctx context.Context, filter store.MemoryFilter) (*store.PaginatedResult[types.Memory], error) {
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
func (f *fakeStore) UpdateMemory(ctx context.Context, m *types.Memory) error       { return nil }
func (f *fakeStore) SoftDeleteMemory(ctx context.Context, id string) error        { return nil }
func (f *fakeStore) RestoreMemory(ctx context.Context, id string) error           { return nil }
func (f *fakeStore) TouchAccess(ctx context.Context, id string, t time.Time) error { return nil }

func containsState(states []string, s types.MemoryState) bool {
	for _, st := range states {
		if st == string(s) {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	f.knowledge = append(f.knowledge, *k)
	return nil
}
func (f *fakeStore) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	return nil, apperr.NotFound
}
func (f *fakeStore) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	filter.Normalize()
	var items []types.Knowledge
	for _, k := range f.knowledge {
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
func (f *fakeStore) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error { return nil }
func (f *fakeStore) SoftDeleteKnowledge(ctx context.Context, id string) error      { return nil }
func (f *fakeStore) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
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

func (f *fakeStore) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error { return nil }
func (f *fakeStore) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	return nil
}
func (f *fakeStore) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	return nil, nil
}
func (f *fakeStore) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	if f.links == nil {
		return nil, nil
	}
	return f.links[eventID], nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, e *types.Event) error { return nil }
func (f *fakeStore) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	return nil, apperr.NotFound
}
func (f *fakeStore) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
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
func (f *fakeStore) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	return nil, nil
}
func (f *fakeStore) SoftDeleteEvent(ctx context.Context, id string) error { return nil }

func (f *fakeStore) CreatePack(ctx context.Context, p *types.MemoryPack) error {
	f.packs = append(f.packs, *p)
	return nil
}
func (f *fakeStore) ListPacksByAnima(ctx context.Context, animaID string, opts store.ListOptions) ([]types.MemoryPack, error) {
	return f.packs, nil
}
func (f *fakeStore) DeletePacksNotIn(ctx context.Context, animaID string, keepIDs []string) (int, error) {
	return 0, nil
}

// fakeEmbedder returns a fixed vector for any non-empty text, nil for
// empty, matching the real collaborator's index-alignment contract.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if text == "" {
		return nil, nil
	}
	return f.vector, nil
}
