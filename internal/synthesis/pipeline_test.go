package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/ltam/pkg/types"
)

func TestMemorySynthesizer_Run_SkipsWhenNoEvents(t *testing.T) {
	now := time.Now().UTC()
	anima := &types.Anima{ID: "anima-1", CreatedAt: now.Add(-24 * time.Hour)}
	s := &fakeStore{anima: anima}

	m := NewMemorySynthesizer(s, &fakeLLM{}, nil)
	result, err := m.Run(context.Background(), "anima-1", now)
	require.NoError(t, err)

	assert.False(t, result.Proceeded)
	assert.Equal(t, SkipNoEvents, result.SkipReason)
	assert.Empty(t, s.memories)
}

func TestMemorySynthesizer_Run_PersistsMemoryAndLinksThenFiresHook(t *testing.T) {
	now := time.Now().UTC()
	anima := &types.Anima{ID: "anima-1", CreatedAt: now.Add(-24 * time.Hour)}
	cfg := types.DefaultSynthesisConfig("anima-1")
	cfg.Threshold = 0

	s := &fakeStore{
		anima: anima,
		cfg:   &cfg,
		events: []types.Event{
			{ID: "e1", AnimaID: "anima-1", OccurredAt: now.Add(-2 * time.Hour), Type: types.EventMessageIn, Content: "hello"},
			{ID: "e2", AnimaID: "anima-1", OccurredAt: now.Add(-1 * time.Hour), Type: types.EventMessageOut, Content: "hi there"},
		},
	}

	llm := &fakeLLM{response: `{"summary": "greeting exchange", "content": "the user said hello and got a reply", "importance": 0.4, "confidence": 0.6}`}
	hook := &fakeHook{triggered: make(chan string, 1)}

	m := NewMemorySynthesizer(s, llm, hook)
	result, err := m.Run(context.Background(), "anima-1", now)
	require.NoError(t, err)

	assert.True(t, result.Proceeded)
	require.NotEmpty(t, result.MemoryID)

	require.Len(t, s.memories, 1)
	mem := s.memories[0]
	assert.Equal(t, types.MemoryActive, mem.State)
	assert.Equal(t, "greeting exchange", mem.Summary)
	assert.Equal(t, now.Add(-2*time.Hour), mem.TimeStart)
	assert.Equal(t, now.Add(-1*time.Hour), mem.TimeEnd)

	require.Len(t, s.links, 2)

	select {
	case id := <-hook.triggered:
		assert.Equal(t, result.MemoryID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auto_knowledge_hook to fire")
	}
}

func TestMemorySynthesizer_Run_LLMParseFailureIsTransient(t *testing.T) {
	now := time.Now().UTC()
	anima := &types.Anima{ID: "anima-1", CreatedAt: now.Add(-24 * time.Hour)}
	cfg := types.DefaultSynthesisConfig("anima-1")
	cfg.Threshold = 0

	s := &fakeStore{
		anima: anima,
		cfg:   &cfg,
		events: []types.Event{
			{ID: "e1", AnimaID: "anima-1", OccurredAt: now.Add(-1 * time.Hour), Type: types.EventMessageIn, Content: "hello"},
		},
	}

	m := NewMemorySynthesizer(s, &fakeLLM{response: "not json"}, nil)
	_, err := m.Run(context.Background(), "anima-1", now)
	assert.Error(t, err)
}
