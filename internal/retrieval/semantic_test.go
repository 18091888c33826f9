package retrieval

import (
	"context"
	"testing"

	"github.com/scrypster/ltam/pkg/types"
)

func TestSemanticSearchMemories_FiltersByThresholdAndOrders(t *testing.T) {
	fake := &fakeMemoryStore{memories: []types.Memory{
		{ID: "close", AnimaID: "a1", State: types.MemoryActive, Embedding: []float32{1, 0, 0}},
		{ID: "far", AnimaID: "a1", State: types.MemoryActive, Embedding: []float32{0, 1, 0}},
		{ID: "no-embedding", AnimaID: "a1", State: types.MemoryActive},
	}}

	got, err := SemanticSearchMemories(context.Background(), fake, MemorySearchOptions{
		AnimaID:        "a1",
		QueryEmbedding: []float32{1, 0, 0},
		Threshold:      0.5,
		TopK:           10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Memory.ID != "close" {
		t.Fatalf("expected only 'close' to pass threshold, got %+v", got)
	}
	if got[0].Similarity < 0.99 {
		t.Errorf("identical-direction embedding should score near 1, got %f", got[0].Similarity)
	}
}

func TestSemanticSearchMemories_NoQueryEmbeddingReturnsNil(t *testing.T) {
	fake := &fakeMemoryStore{}
	got, err := SemanticSearchMemories(context.Background(), fake, MemorySearchOptions{AnimaID: "a1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result without a query embedding, got %+v", got)
	}
}

func TestSemanticSearchMemories_CapsTopK(t *testing.T) {
	var memories []types.Memory
	for i := 0; i < 150; i++ {
		memories = append(memories, types.Memory{
			ID: "m", AnimaID: "a1", State: types.MemoryActive, Embedding: []float32{1, 0, 0},
		})
	}
	fake := &fakeMemoryStore{memories: memories}

	got, err := SemanticSearchMemories(context.Background(), fake, MemorySearchOptions{
		AnimaID:        "a1",
		QueryEmbedding: []float32{1, 0, 0},
		CandidateLimit: 200,
		TopK:           500, // above maxTopK, should clamp to 100
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != maxTopK {
		t.Errorf("expected results capped at %d, got %d", maxTopK, len(got))
	}
}

func TestSemanticSearchKnowledge_FiltersByType(t *testing.T) {
	fake := &fakeKnowledgeStore{items: []types.Knowledge{
		{ID: "fact", AnimaID: "a1", Type: types.KnowledgeFact, Embedding: []float32{1, 0}},
		{ID: "concept", AnimaID: "a1", Type: types.KnowledgeConcept, Embedding: []float32{1, 0}},
	}}

	got, err := SemanticSearchKnowledge(context.Background(), fake, KnowledgeSearchOptions{
		AnimaID:        "a1",
		Types:          []types.KnowledgeType{types.KnowledgeFact},
		QueryEmbedding: []float32{1, 0},
		Threshold:      0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Knowledge.ID != "fact" {
		t.Errorf("expected only the FACT item, got %+v", got)
	}
}
