package dream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

func jsonToMap(raw string) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fakeStore implements dream.Store entirely in memory.
type fakeStore struct {
	anima    *types.Anima
	identity *types.Identity

	memories  []types.Memory
	knowledge []types.Knowledge
	links     []types.MemoryEvent

	sessions []types.DreamSession
	actions  []types.DreamAction

	seq int
}

func (f *fakeStore) nextSeq() int {
	f.seq++
	return f.seq
}

func (f *fakeStore) CreateAnima(ctx context.Context, a *types.Anima) error { return nil }
func (f *fakeStore) GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error) {
	if f.anima != nil && f.anima.ID == id {
		return f.anima, nil
	}
	return &types.Anima{ID: id}, nil
}
func (f *fakeStore) ListAnimasByUser(ctx context.Context, userID string, opts store.ListOptions) (*store.PaginatedResult[types.Anima], error) {
	return &store.PaginatedResult[types.Anima]{}, nil
}
func (f *fakeStore) ListAllAnimas(ctx context.Context) ([]types.Anima, error) { return nil, nil }
func (f *fakeStore) UpdateAnima(ctx context.Context, a *types.Anima) error    { return nil }
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
	return &types.IOConfig{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error { return nil }
func (f *fakeStore) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	if f.identity != nil {
		return f.identity, nil
	}
	return &types.Identity{AnimaID: animaID}, nil
}
func (f *fakeStore) UpsertIdentity(ctx context.Context, id *types.Identity) error {
	f.identity = id
	return nil
}

func (f *fakeStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	if m.ID == "" {
		m.ID = fmt.Sprintf("mem-%d", f.nextSeq())
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
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
		if m.IsDeleted {
			continue
		}
		if len(filter.States) > 0 {
			ok := false
			for _, s := range filter.States {
				if string(m.State) == s {
					ok = true
				}
			}
			if !ok {
				continue
			}
		}
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool {
		if filter.SortOrder == "asc" {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return &store.PaginatedResult[types.Memory]{Items: items, Total: len(items), HasMore: false}, nil
}
func (f *fakeStore) UpdateMemory(ctx context.Context, m *types.Memory) error {
	for i := range f.memories {
		if f.memories[i].ID == m.ID {
			m.UpdatedAt = time.Now().UTC()
			f.memories[i] = *m
			return nil
		}
	}
	return apperr.NotFound
}
func (f *fakeStore) SoftDeleteMemory(ctx context.Context, id string) error {
	for i := range f.memories {
		if f.memories[i].ID == id {
			f.memories[i].IsDeleted = true
			return nil
		}
	}
	return apperr.NotFound
}
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
	var items []types.Knowledge
	for _, k := range f.knowledge {
		if filter.AnimaID != "" && k.AnimaID != filter.AnimaID {
			continue
		}
		items = append(items, k)
	}
	return &store.PaginatedResult[types.Knowledge]{Items: items, Total: len(items)}, nil
}
func (f *fakeStore) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error { return nil }
func (f *fakeStore) SoftDeleteKnowledge(ctx context.Context, id string) error      { return nil }
func (f *fakeStore) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	return nil, nil
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
	return nil, nil
}
func (f *fakeStore) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	return nil, nil
}

func (f *fakeStore) CreateDreamSession(ctx context.Context, s *types.DreamSession) error {
	f.sessions = append(f.sessions, *s)
	return nil
}
func (f *fakeStore) GetDreamSession(ctx context.Context, id string) (*types.DreamSession, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, apperr.NotFound
}
func (f *fakeStore) UpdateDreamSession(ctx context.Context, s *types.DreamSession) error {
	for i := range f.sessions {
		if f.sessions[i].ID == s.ID {
			f.sessions[i] = *s
			return nil
		}
	}
	return apperr.NotFound
}
func (f *fakeStore) ListDreamSessions(ctx context.Context, animaID string, status string) ([]types.DreamSession, error) {
	var out []types.DreamSession
	for _, s := range f.sessions {
		if s.AnimaID == animaID && (status == "" || string(s.Status) == status) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStore) HasRunningSession(ctx context.Context, animaID string) (bool, error) {
	for _, s := range f.sessions {
		if s.AnimaID == animaID && s.Status == types.DreamRunning {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeStore) StaleRunningSessions(ctx context.Context, olderThan time.Time) ([]string, error) {
	var out []string
	for _, s := range f.sessions {
		if s.Status == types.DreamRunning && s.StartedAt.Before(olderThan) {
			out = append(out, s.ID)
		}
	}
	return out, nil
}
func (f *fakeStore) LastCompletedDream(ctx context.Context, animaID string) (*types.DreamSession, error) {
	var latest *types.DreamSession
	for i := range f.sessions {
		s := f.sessions[i]
		if s.AnimaID != animaID || s.Status != types.DreamCompleted || s.CompletedAt == nil {
			continue
		}
		if latest == nil || s.CompletedAt.After(*latest.CompletedAt) {
			latest = &s
		}
	}
	return latest, nil
}

func (f *fakeStore) CreateDreamAction(ctx context.Context, a *types.DreamAction) error {
	a.CreatedAt = time.Now().UTC()
	f.actions = append(f.actions, *a)
	return nil
}
func (f *fakeStore) ListDreamActions(ctx context.Context, sessionID string) ([]types.DreamAction, error) {
	var out []types.DreamAction
	for _, a := range f.actions {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeLLM returns scripted responses in call order, or a canned single
// response for every call when responses is unset.
type fakeLLM struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	i := f.calls
	f.calls++
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return "{}", nil
}

func (f *fakeLLM) ParseJSONResponse(raw string) (map[string]interface{}, error) {
	return jsonToMap(raw)
}

// fakeEmbedder returns a fixed-length deterministic vector derived from the
// text's length, just enough to exercise regenerateEmbedding's write path.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}
