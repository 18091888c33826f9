package dream

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// Context bundles everything one dream cycle needs: the anima's active
// memories, the subset created since the last completed dream (priority
// review material for Deep Sleep), its identity (the curation lens), and
// its existing knowledge (so Deep Sleep can avoid redundant memories).
type Context struct {
	AnimaID string
	Anima   types.Anima

	// Memories holds every ACTIVE, non-deleted memory, newest first.
	Memories []types.Memory

	// RecentMemories is the subset created after LastDreamAt, or every
	// memory when no prior dream has completed.
	RecentMemories []types.Memory

	Identity  *types.Identity
	Knowledge []types.Knowledge

	LastDreamAt *time.Time
}

// maxGatherPages bounds the pagination sweep gatherContext runs to collect
// "every active memory" through the paginated ListMemories query; 50 pages
// at the store's 200-row cap covers up to 10,000 memories, comfortably
// beyond what one dream cycle should ever process in a single pass.
const maxGatherPages = 50

// gatherContext reproduces original_source's gather_dream_context: load the
// anima, find the last completed dream (for the "recent" cutoff), and pull
// every active memory plus identity and knowledge for the curation lens.
func gatherContext(ctx context.Context, s Store, animaID string) (*Context, error) {
	anima, err := s.GetAnima(ctx, animaID, false)
	if err != nil {
		return nil, fmt.Errorf("dream: load anima: %w", err)
	}

	lastDream, err := s.LastCompletedDream(ctx, animaID)
	if err != nil {
		return nil, fmt.Errorf("dream: load last completed dream: %w", err)
	}
	var lastAt *time.Time
	if lastDream != nil && lastDream.CompletedAt != nil {
		lastAt = lastDream.CompletedAt
	}

	memories, err := listAllActiveMemories(ctx, s, animaID)
	if err != nil {
		return nil, fmt.Errorf("dream: list active memories: %w", err)
	}

	var recent []types.Memory
	if lastAt != nil {
		for _, m := range memories {
			if m.CreatedAt.After(*lastAt) {
				recent = append(recent, m)
			}
		}
	} else {
		recent = append(recent, memories...)
	}

	identity, err := s.GetIdentity(ctx, animaID)
	if err != nil {
		return nil, fmt.Errorf("dream: load identity: %w", err)
	}

	knowledgePage, err := s.ListKnowledge(ctx, store.KnowledgeFilter{AnimaID: animaID, ListOptions: store.ListOptions{Limit: 200}})
	if err != nil {
		return nil, fmt.Errorf("dream: list knowledge: %w", err)
	}

	return &Context{
		AnimaID:        animaID,
		Anima:          *anima,
		Memories:       memories,
		RecentMemories: recent,
		Identity:       identity,
		Knowledge:      knowledgePage.Items,
		LastDreamAt:    lastAt,
	}, nil
}

// listAllActiveMemories pages through ListMemories until HasMore is false,
// collecting every ACTIVE, non-deleted memory for animaID. The store's
// ListMemories is paginated (§4.2); the dream engine needs the unbounded
// set the way original_source's gather phase fetches it.
func listAllActiveMemories(ctx context.Context, s Store, animaID string) ([]types.Memory, error) {
	var out []types.Memory
	page := 1
	for i := 0; i < maxGatherPages; i++ {
		result, err := s.ListMemories(ctx, store.MemoryFilter{
			AnimaID:     animaID,
			States:      []string{string(types.MemoryActive)},
			ListOptions: store.ListOptions{Page: page, Limit: 200, SortOrder: "desc"},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, result.Items...)
		if !result.HasMore {
			break
		}
		page++
	}
	return out, nil
}
