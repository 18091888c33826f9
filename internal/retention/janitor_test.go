package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// fakeStore implements retention.Store in memory.
type fakeStore struct {
	packs       []types.MemoryPack
	deletedKeep []string
}

func (f *fakeStore) ListPacksByAnima(ctx context.Context, animaID string, opts store.ListOptions) ([]types.MemoryPack, error) {
	var out []types.MemoryPack
	for _, p := range f.packs {
		if p.AnimaID == animaID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) DeletePacksNotIn(ctx context.Context, animaID string, keepIDs []string) (int, error) {
	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}
	f.deletedKeep = keepIDs

	var remaining []types.MemoryPack
	deleted := 0
	for _, p := range f.packs {
		if p.AnimaID == animaID && !keep[p.ID] {
			deleted++
			continue
		}
		remaining = append(remaining, p)
	}
	f.packs = remaining
	return deleted, nil
}

func packAt(id, anima string, compiledAt time.Time) types.MemoryPack {
	return types.MemoryPack{ID: id, AnimaID: anima, CompiledAt: compiledAt}
}

func TestEnforceRetention_NoopWhenUnderLimit(t *testing.T) {
	now := time.Now()
	s := &fakeStore{packs: []types.MemoryPack{
		packAt("p1", "a1", now),
		packAt("p2", "a1", now.Add(-time.Hour)),
	}}
	j := NewJanitor(s)

	deleted, err := j.EnforceRetention(context.Background(), "a1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Len(t, s.packs, 2)
}

func TestEnforceRetention_KeepsNewestAndDeletesRest(t *testing.T) {
	now := time.Now()
	s := &fakeStore{packs: []types.MemoryPack{
		packAt("oldest", "a1", now.Add(-3*time.Hour)),
		packAt("middle", "a1", now.Add(-2*time.Hour)),
		packAt("newest", "a1", now.Add(-1*time.Hour)),
	}}
	j := NewJanitor(s)

	deleted, err := j.EnforceRetention(context.Background(), "a1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	require.Len(t, s.packs, 2)

	ids := map[string]bool{}
	for _, p := range s.packs {
		ids[p.ID] = true
	}
	assert.True(t, ids["newest"])
	assert.True(t, ids["middle"])
	assert.False(t, ids["oldest"])
}

func TestEnforceRetention_DefaultsMaxPacksWhenZero(t *testing.T) {
	now := time.Now()
	var packs []types.MemoryPack
	for i := 0; i < 150; i++ {
		packs = append(packs, packAt(fmt.Sprintf("p%d", i), "a1", now.Add(-time.Duration(i)*time.Minute)))
	}
	s := &fakeStore{packs: packs}
	j := NewJanitor(s)

	deleted, err := j.EnforceRetention(context.Background(), "a1", 0)
	require.NoError(t, err)
	assert.Equal(t, 50, deleted)
	assert.Len(t, s.packs, DefaultMaxPacks)
}

func TestEnforceRetention_OnlyAffectsGivenAnima(t *testing.T) {
	now := time.Now()
	s := &fakeStore{packs: []types.MemoryPack{
		packAt("a1-old", "a1", now.Add(-2*time.Hour)),
		packAt("a1-new", "a1", now.Add(-1*time.Hour)),
		packAt("a2-old", "a2", now.Add(-2*time.Hour)),
	}}
	j := NewJanitor(s)

	deleted, err := j.EnforceRetention(context.Background(), "a1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	var a2Count int
	for _, p := range s.packs {
		if p.AnimaID == "a2" {
			a2Count++
		}
	}
	assert.Equal(t, 1, a2Count)
}
