// Package retention implements the pack-retention janitor (§4.9): keeping
// only the newest max_packs MemoryPacks per anima. Shaped after
// internal/backup's retention.go — list candidates sorted newest-first,
// select what stays, delete the rest — simplified to the spec's single
// count-based rule instead of backup's multi-tier age buckets.
package retention

import (
	"context"
	"sort"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// DefaultMaxPacks is the janitor's default retention count (§4.9).
const DefaultMaxPacks = 100

// Store is the narrow slice of internal/store.PackStore the janitor needs.
type Store interface {
	ListPacksByAnima(ctx context.Context, animaID string, opts store.ListOptions) ([]types.MemoryPack, error)
	DeletePacksNotIn(ctx context.Context, animaID string, keepIDs []string) (int, error)
}

// Janitor enforces pack retention. It satisfies packcompiler.Retainer.
type Janitor struct {
	store Store
}

// NewJanitor builds a Janitor over the given store.
func NewJanitor(s Store) *Janitor {
	return &Janitor{store: s}
}

// EnforceRetention keeps the maxPacks newest packs (by compiled_at) for
// animaID and deletes the rest, returning the count deleted (§4.9).
func (j *Janitor) EnforceRetention(ctx context.Context, animaID string, maxPacks int) (int, error) {
	if maxPacks <= 0 {
		maxPacks = DefaultMaxPacks
	}

	// ListOptions.Normalize caps Limit at 200; since this janitor runs after
	// every persisted compile, the live pack count for an anima should
	// never meaningfully exceed maxPacks+1 between runs.
	packs, err := j.store.ListPacksByAnima(ctx, animaID, store.ListOptions{Page: 1, Limit: 200, SortOrder: "desc"})
	if err != nil {
		return 0, err
	}
	if len(packs) <= maxPacks {
		return 0, nil
	}

	sort.Slice(packs, func(i, k int) bool { return packs[i].CompiledAt.After(packs[k].CompiledAt) })

	keepIDs := make([]string, 0, maxPacks)
	for i := 0; i < maxPacks; i++ {
		keepIDs = append(keepIDs, packs[i].ID)
	}

	return j.store.DeletePacksNotIn(ctx, animaID, keepIDs)
}
