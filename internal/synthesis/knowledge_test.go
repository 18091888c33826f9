package synthesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/pkg/types"
)

func TestKnowledgeSynthesizer_Synthesize_InvalidMemorySkips(t *testing.T) {
	s := &fakeStore{}
	k := NewKnowledgeSynthesizer(s, &fakeLLM{}, "")

	result, err := k.Synthesize(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, SkipInvalidMemory, result.SkipReason)
}

func TestKnowledgeSynthesizer_Synthesize_NoExtractionsWhenArrayEmpty(t *testing.T) {
	s := &fakeStore{memories: []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}}}
	k := NewKnowledgeSynthesizer(s, &fakeLLM{response: `[]`}, "")

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, SkipNoExtractions, result.SkipReason)
}

func TestKnowledgeSynthesizer_Synthesize_DropsIndividuallyInvalidItems(t *testing.T) {
	s := &fakeStore{memories: []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}}}
	llm := &fakeLLM{response: `[
		{"knowledge_type": "FACT", "content": "the user prefers dark roast coffee over light roast", "summary": "coffee preference", "topic": "preferences"},
		{"knowledge_type": "NOT_A_TYPE", "content": "this has a bad type but is long enough to pass length checks"},
		{"knowledge_type": "FACT", "content": "short"}
	]`}
	k := NewKnowledgeSynthesizer(s, llm, "")

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, 1, result.CreatedCount)
	require.Len(t, s.knowledge, 1)
	assert.Equal(t, "preferences", s.knowledge[0].Topic)
	assert.Equal(t, "m1", s.knowledge[0].SourceMemoryID)
	require.Len(t, s.audit, 1)
	assert.Equal(t, types.AuditCreate, s.audit[0].Action)
}

func TestKnowledgeSynthesizer_Synthesize_TopicDefaultsWhenMissing(t *testing.T) {
	s := &fakeStore{memories: []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}}}
	llm := &fakeLLM{response: `[{"knowledge_type": "CONCEPT", "content": "recursion is a function calling itself repeatedly"}]`}
	k := NewKnowledgeSynthesizer(s, llm, "")

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, defaultKnowledgeTopic, s.knowledge[0].Topic)
}

func TestKnowledgeSynthesizer_Synthesize_ReplacePolicyDeletesExistingFirst(t *testing.T) {
	s := &fakeStore{
		memories:  []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}},
		knowledge: []types.Knowledge{{ID: "old-1", AnimaID: "anima-1", SourceMemoryID: "m1", Type: types.KnowledgeFact, Content: "stale fact"}},
	}
	llm := &fakeLLM{response: `[{"knowledge_type": "FACT", "content": "a fresh fact that supersedes the stale one above"}]`}
	k := NewKnowledgeSynthesizer(s, llm, DedupReplace)

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 1, result.CreatedCount)

	existing, _ := s.ListKnowledgeBySourceMemory(context.Background(), "m1")
	require.Len(t, existing, 1)
	assert.Contains(t, existing[0].Content, "fresh fact")

	var deleteAudits, createAudits int
	for _, a := range s.audit {
		switch a.Action {
		case types.AuditDelete:
			deleteAudits++
		case types.AuditCreate:
			createAudits++
		}
	}
	assert.Equal(t, 1, deleteAudits)
	assert.Equal(t, 1, createAudits)
}

func TestKnowledgeSynthesizer_Synthesize_SkipPolicyAbortsWhenExisting(t *testing.T) {
	s := &fakeStore{
		memories:  []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}},
		knowledge: []types.Knowledge{{ID: "old-1", AnimaID: "anima-1", SourceMemoryID: "m1", Type: types.KnowledgeFact, Content: "stale fact"}},
	}
	llm := &fakeLLM{response: `[{"knowledge_type": "FACT", "content": "a fresh fact that would otherwise be inserted"}]`}
	k := NewKnowledgeSynthesizer(s, llm, DedupSkip)

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SkipReason)
	assert.Equal(t, 0, result.CreatedCount)
	require.Len(t, s.knowledge, 1)
}

func TestKnowledgeSynthesizer_Synthesize_AppendPolicyNeverDeletes(t *testing.T) {
	s := &fakeStore{
		memories:  []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}},
		knowledge: []types.Knowledge{{ID: "old-1", AnimaID: "anima-1", SourceMemoryID: "m1", Type: types.KnowledgeFact, Content: "still relevant fact"}},
	}
	llm := &fakeLLM{response: `[{"knowledge_type": "FACT", "content": "an additional fact alongside the first one"}]`}
	k := NewKnowledgeSynthesizer(s, llm, DedupAppend)

	result, err := k.Synthesize(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, 1, result.CreatedCount)

	existing, _ := s.ListKnowledgeBySourceMemory(context.Background(), "m1")
	assert.Len(t, existing, 2)
}

func TestKnowledgeSynthesizer_Trigger_AdaptsToHookInterface(t *testing.T) {
	s := &fakeStore{memories: []types.Memory{{ID: "m1", AnimaID: "anima-1", Summary: "s", Content: "c"}}}
	llm := &fakeLLM{response: `[{"knowledge_type": "FACT", "content": "a fact long enough to pass validation checks"}]`}
	k := NewKnowledgeSynthesizer(s, llm, "")

	var hook Hook = k
	hook.Trigger("m1")

	assert.Len(t, s.knowledge, 1)
}
