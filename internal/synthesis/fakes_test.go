package synthesis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// fakeStore implements synthesis.Store entirely in memory.
type fakeStore struct {
	anima     *types.Anima
	cfg       *types.SynthesisConfig
	memories  []types.Memory
	events    []types.Event
	knowledge []types.Knowledge
	links     []types.MemoryEvent
	audit     []types.KnowledgeAuditLog
	seq       int
}

func (f *fakeStore) nextSeq() int {
	f.seq++
	return f.seq
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
	if f.cfg != nil {
		return f.cfg, nil
	}
	cfg := types.DefaultSynthesisConfig(animaID)
	return &cfg, nil
}
func (f *fakeStore) UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error {
	f.cfg = cfg
	return nil
}
func (f *fakeStore) GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error) {
	return &types.IOConfig{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error { return nil }
func (f *fakeStore) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	return &types.Identity{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIdentity(ctx context.Context, id *types.Identity) error { return nil }

func (f *fakeStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	if m.ID == "" {
		m.ID = fmt.Sprintf("mem-%d", f.nextSeq())
	}
	m.CreatedAt = time.Now().UTC()
	f.memories = append(f.memories, *m)
	return nil
}
func (f *fakeStore) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	for i := range f.memories {
		if f.memories[i].ID == id && (includeDeleted || !f.memories[i].IsDeleted) {
			m := f.memories[i]
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
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool {
		if filter.SortOrder == "asc" {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return &store.PaginatedResult[types.Memory]{Items: items, Total: len(items)}, nil
}
func (f *fakeStore) UpdateMemory(ctx context.Context, m *types.Memory) error       { return nil }
func (f *fakeStore) SoftDeleteMemory(ctx context.Context, id string) error        { return nil }
func (f *fakeStore) RestoreMemory(ctx context.Context, id string) error           { return nil }
func (f *fakeStore) TouchAccess(ctx context.Context, id string, t time.Time) error { return nil }

func (f *fakeStore) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	if k.ID == "" {
		k.ID = fmt.Sprintf("know-%d", f.nextSeq())
	}
	f.knowledge = append(f.knowledge, *k)
	return nil
}
func (f *fakeStore) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	for _, k := range f.knowledge {
		if k.ID == id {
			return &k, nil
		}
	}
	return nil, apperr.NotFound
}
func (f *fakeStore) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	return &store.PaginatedResult[types.Knowledge]{}, nil
}
func (f *fakeStore) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error { return nil }
func (f *fakeStore) SoftDeleteKnowledge(ctx context.Context, id string) error {
	for i := range f.knowledge {
		if f.knowledge[i].ID == id {
			f.knowledge[i].IsDeleted = true
			return nil
		}
	}
	return apperr.NotFound
}
func (f *fakeStore) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	var out []types.Knowledge
	for _, k := range f.knowledge {
		if k.SourceMemoryID == memoryID && !k.IsDeleted {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error {
	f.links = append(f.links, *link)
	return nil
}
func (f *fakeStore) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	f.links = append(f.links, links...)
	return nil
}
func (f *fakeStore) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	var out []types.MemoryEvent
	for _, l := range f.links {
		if l.MemoryID == memoryID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (f *fakeStore) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	var out []types.MemoryEvent
	for _, l := range f.links {
		if l.EventID == eventID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, e *types.Event) error {
	f.events = append(f.events, *e)
	return nil
}
func (f *fakeStore) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, apperr.NotFound
}
func (f *fakeStore) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
	return &store.PaginatedResult[types.Event]{}, nil
}
func (f *fakeStore) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	var out []types.Event
	for _, e := range f.events {
		if e.AnimaID != animaID || e.IsDeleted {
			continue
		}
		if e.OccurredAt.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
func (f *fakeStore) SoftDeleteEvent(ctx context.Context, id string) error { return nil }

func (f *fakeStore) CreateKnowledgeAudit(ctx context.Context, row *types.KnowledgeAuditLog) error {
	f.audit = append(f.audit, *row)
	return nil
}
func (f *fakeStore) ListKnowledgeAudit(ctx context.Context, knowledgeID string) ([]types.KnowledgeAuditLog, error) {
	var out []types.KnowledgeAuditLog
	for _, a := range f.audit {
		if a.KnowledgeID == knowledgeID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeLLM returns a canned response, optionally erroring, for both
// synthesis pipelines.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeHook records Trigger calls over a channel so tests can synchronize
// with the fire-and-forget goroutine in MemorySynthesizer.Run.
type fakeHook struct {
	triggered chan string
}

func (f *fakeHook) Trigger(memoryID string) {
	if f.triggered != nil {
		f.triggered <- memoryID
	}
}
