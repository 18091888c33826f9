package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// fakeAnimaLister satisfies AnimaLister from a fixed slice.
type fakeAnimaLister struct {
	animas []types.Anima
}

func (f *fakeAnimaLister) ListAllAnimas(ctx context.Context) ([]types.Anima, error) {
	return f.animas, nil
}

// fakeWorkflow is a Workflow whose per-anima behavior is controlled by the
// test via a closure, with calls recorded on a channel for assertions.
type fakeWorkflow struct {
	name    string
	hours   float64
	execute func(ctx context.Context, animaID, triggerSource string) Result
	calls   chan string
}

func newFakeWorkflow(name string, hours float64, execute func(ctx context.Context, animaID, triggerSource string) Result) *fakeWorkflow {
	return &fakeWorkflow{name: name, hours: hours, execute: execute, calls: make(chan string, 64)}
}

func (f *fakeWorkflow) Name() string           { return f.name }
func (f *fakeWorkflow) IntervalHours() float64 { return f.hours }
func (f *fakeWorkflow) ExecuteForAnima(ctx context.Context, animaID, triggerSource string) Result {
	f.calls <- animaID
	return f.execute(ctx, animaID, triggerSource)
}

// fakeSynthesisStore implements synthesis.Store entirely in memory, mirroring
// internal/synthesis's own test fake, scoped to what the synthesis workflow
// adapter's tests exercise.
type fakeSynthesisStore struct {
	animas   map[string]*types.Anima
	cfgs     map[string]*types.SynthesisConfig
	events   []types.Event
	memories []types.Memory
	links    []types.MemoryEvent
	seq      int
}

func newFakeSynthesisStore() *fakeSynthesisStore {
	return &fakeSynthesisStore{animas: map[string]*types.Anima{}, cfgs: map[string]*types.SynthesisConfig{}}
}

func (f *fakeSynthesisStore) nextSeq() int { f.seq++; return f.seq }

func (f *fakeSynthesisStore) CreateAnima(ctx context.Context, a *types.Anima) error { return nil }
func (f *fakeSynthesisStore) GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error) {
	a, ok := f.animas[id]
	if !ok {
		return nil, apperr.NotFound
	}
	return a, nil
}
func (f *fakeSynthesisStore) ListAnimasByUser(ctx context.Context, userID string, opts store.ListOptions) (*store.PaginatedResult[types.Anima], error) {
	return &store.PaginatedResult[types.Anima]{}, nil
}
func (f *fakeSynthesisStore) ListAllAnimas(ctx context.Context) ([]types.Anima, error) {
	var out []types.Anima
	for _, a := range f.animas {
		out = append(out, *a)
	}
	return out, nil
}
func (f *fakeSynthesisStore) UpdateAnima(ctx context.Context, a *types.Anima) error { return nil }
func (f *fakeSynthesisStore) CascadeSoftDeleteAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	return types.CascadeCounts{}, nil
}
func (f *fakeSynthesisStore) CascadeRestoreAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	return types.CascadeCounts{}, nil
}

func (f *fakeSynthesisStore) GetSynthesisConfig(ctx context.Context, animaID string) (*types.SynthesisConfig, error) {
	if cfg, ok := f.cfgs[animaID]; ok {
		return cfg, nil
	}
	cfg := types.DefaultSynthesisConfig(animaID)
	return &cfg, nil
}
func (f *fakeSynthesisStore) UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error {
	f.cfgs[cfg.AnimaID] = cfg
	return nil
}
func (f *fakeSynthesisStore) GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error) {
	return &types.IOConfig{AnimaID: animaID}, nil
}
func (f *fakeSynthesisStore) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error {
	return nil
}
func (f *fakeSynthesisStore) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	return &types.Identity{AnimaID: animaID}, nil
}
func (f *fakeSynthesisStore) UpsertIdentity(ctx context.Context, id *types.Identity) error {
	return nil
}

func (f *fakeSynthesisStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	if m.ID == "" {
		m.ID = fmt.Sprintf("mem-%d", f.nextSeq())
	}
	m.CreatedAt = time.Now().UTC()
	f.memories = append(f.memories, *m)
	return nil
}
func (f *fakeSynthesisStore) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	for _, m := range f.memories {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, apperr.NotFound
}
func (f *fakeSynthesisStore) ListMemories(ctx context.Context, filter store.MemoryFilter) (*store.PaginatedResult[types.Memory], error) {
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
func (f *fakeSynthesisStore) UpdateMemory(ctx context.Context, m *types.Memory) error { return nil }
func (f *fakeSynthesisStore) SoftDeleteMemory(ctx context.Context, id string) error   { return nil }
func (f *fakeSynthesisStore) RestoreMemory(ctx context.Context, id string) error      { return nil }
func (f *fakeSynthesisStore) TouchAccess(ctx context.Context, id string, t time.Time) error {
	return nil
}

func (f *fakeSynthesisStore) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	return nil
}
func (f *fakeSynthesisStore) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	return nil, apperr.NotFound
}
func (f *fakeSynthesisStore) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	return &store.PaginatedResult[types.Knowledge]{}, nil
}
func (f *fakeSynthesisStore) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error {
	return nil
}
func (f *fakeSynthesisStore) SoftDeleteKnowledge(ctx context.Context, id string) error { return nil }
func (f *fakeSynthesisStore) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	return nil, nil
}

func (f *fakeSynthesisStore) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error {
	f.links = append(f.links, *link)
	return nil
}
func (f *fakeSynthesisStore) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	f.links = append(f.links, links...)
	return nil
}
func (f *fakeSynthesisStore) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	return nil, nil
}
func (f *fakeSynthesisStore) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	return nil, nil
}

func (f *fakeSynthesisStore) CreateEvent(ctx context.Context, e *types.Event) error {
	f.events = append(f.events, *e)
	return nil
}
func (f *fakeSynthesisStore) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	return nil, apperr.NotFound
}
func (f *fakeSynthesisStore) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
	return &store.PaginatedResult[types.Event]{}, nil
}
func (f *fakeSynthesisStore) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	var out []types.Event
	for _, e := range f.events {
		if e.AnimaID == animaID && e.OccurredAt.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
func (f *fakeSynthesisStore) SoftDeleteEvent(ctx context.Context, id string) error { return nil }

func (f *fakeSynthesisStore) CreateKnowledgeAudit(ctx context.Context, row *types.KnowledgeAuditLog) error {
	return nil
}
func (f *fakeSynthesisStore) ListKnowledgeAudit(ctx context.Context, knowledgeID string) ([]types.KnowledgeAuditLog, error) {
	return nil, nil
}

// fakeLLM returns a canned synthesis response.
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
