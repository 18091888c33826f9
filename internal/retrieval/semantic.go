package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// defaultCandidateLimit bounds how many rows a semantic search pulls from
// the store before scoring, when the caller doesn't specify one.
const defaultCandidateLimit = 200

// maxTopK is the §4.4 hard cap on returned semantic-search results.
const maxTopK = 100

// ScoredMemory pairs a memory with its cosine similarity to a query
// embedding, 1 - distance.
type ScoredMemory struct {
	Memory     types.Memory
	Similarity float64
}

// MemorySearchOptions configures SemanticSearchMemories.
type MemorySearchOptions struct {
	AnimaID        string
	States         []types.MemoryState
	MinTime        time.Time
	MaxTime        time.Time
	QueryEmbedding []float32
	Threshold      float64
	TopK           int
	CandidateLimit int
}

// SemanticSearchMemories restricts candidates by state/time, scores each by
// cosine similarity to QueryEmbedding, admits similarity > Threshold, and
// returns the top TopK ordered by descending similarity (ascending
// distance).
func SemanticSearchMemories(ctx context.Context, s store.MemoryStore, opts MemorySearchOptions) ([]ScoredMemory, error) {
	if len(opts.QueryEmbedding) == 0 {
		return nil, nil
	}
	candidateLimit := opts.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	topK := opts.TopK
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}

	states := make([]string, len(opts.States))
	for i, st := range opts.States {
		states[i] = string(st)
	}

	page, err := s.ListMemories(ctx, store.MemoryFilter{
		AnimaID: opts.AnimaID,
		States:  states,
		MinTime: opts.MinTime,
		MaxTime: opts.MaxTime,
		ListOptions: store.ListOptions{
			Limit:     candidateLimit,
			SortOrder: "desc",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: semantic search memories: %w", err)
	}

	scored := make([]ScoredMemory, 0, len(page.Items))
	for _, m := range page.Items {
		if len(m.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(opts.QueryEmbedding, m.Embedding)
		if sim <= opts.Threshold {
			continue
		}
		scored = append(scored, ScoredMemory{Memory: m, Similarity: sim})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ScoredKnowledge pairs a knowledge item with its cosine similarity to a
// query embedding.
type ScoredKnowledge struct {
	Knowledge  types.Knowledge
	Similarity float64
}

// KnowledgeSearchOptions configures SemanticSearchKnowledge.
type KnowledgeSearchOptions struct {
	AnimaID        string
	Types          []types.KnowledgeType
	QueryEmbedding []float32
	Threshold      float64
	TopK           int
	CandidateLimit int
}

// SemanticSearchKnowledge mirrors SemanticSearchMemories for the knowledge
// store, optionally restricted to Types (OR semantics).
func SemanticSearchKnowledge(ctx context.Context, s store.KnowledgeStore, opts KnowledgeSearchOptions) ([]ScoredKnowledge, error) {
	if len(opts.QueryEmbedding) == 0 {
		return nil, nil
	}
	candidateLimit := opts.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	topK := opts.TopK
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}

	types_ := make([]string, len(opts.Types))
	for i, t := range opts.Types {
		types_[i] = string(t)
	}

	page, err := s.ListKnowledge(ctx, store.KnowledgeFilter{
		AnimaID: opts.AnimaID,
		Types:   types_,
		ListOptions: store.ListOptions{
			Limit:     candidateLimit,
			SortOrder: "desc",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: semantic search knowledge: %w", err)
	}

	scored := make([]ScoredKnowledge, 0, len(page.Items))
	for _, k := range page.Items {
		if len(k.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(opts.QueryEmbedding, k.Embedding)
		if sim <= opts.Threshold {
			continue
		}
		scored = append(scored, ScoredKnowledge{Knowledge: k, Similarity: sim})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
