package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	model    string

	lastPrompt      string
	lastTemperature float64
	lastMaxTokens   int
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	f.lastPrompt = prompt
	f.lastTemperature = temperature
	f.lastMaxTokens = maxTokens
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) GetModel() string { return f.model }

type fakeEmbeddingGenerator struct {
	vec []float32
	err error
}

func (f *fakeEmbeddingGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbeddingGenerator) GetModel() string { return "fake-embed" }

func TestClient_CallPassesThroughToGenerator(t *testing.T) {
	gen := &fakeGenerator{response: "hello"}
	c := NewClient(gen, nil, 0)

	out, err := c.Call(context.Background(), "prompt", 0.4, 256)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "prompt", gen.lastPrompt)
	assert.Equal(t, 0.4, gen.lastTemperature)
	assert.Equal(t, 256, gen.lastMaxTokens)
}

func TestClient_CallPropagatesGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: assert.AnError}
	c := NewClient(gen, nil, 0)

	_, err := c.Call(context.Background(), "prompt", 0, 0)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClient_EmbedTextErrorsWithoutEmbedder(t *testing.T) {
	c := NewClient(&fakeGenerator{model: "claude"}, nil, 0)

	_, err := c.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support embeddings")
}

func TestClient_EmbedTextUsesEmbedder(t *testing.T) {
	embedder := &fakeEmbeddingGenerator{vec: []float32{1, 2, 3}}
	c := NewClient(&fakeGenerator{}, embedder, 0)

	vec, err := c.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestClient_ParseJSONResponse_PlainObject(t *testing.T) {
	c := NewClient(&fakeGenerator{}, nil, 0)
	out, err := c.ParseJSONResponse(`{"should_merge": true, "confidence": 0.9}`)
	require.NoError(t, err)
	assert.Equal(t, true, out["should_merge"])
	assert.Equal(t, 0.9, out["confidence"])
}

func TestClient_ParseJSONResponse_StripsMarkdownFenceAndProse(t *testing.T) {
	c := NewClient(&fakeGenerator{}, nil, 0)
	raw := "Sure, here is the result:\n```json\n{\"action\": \"KEEP\"}\n```\nLet me know if you need anything else."
	out, err := c.ParseJSONResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "KEEP", out["action"])
}

func TestClient_ParseJSONResponse_BraceInsideStringDoesNotTruncate(t *testing.T) {
	c := NewClient(&fakeGenerator{}, nil, 0)
	out, err := c.ParseJSONResponse(`{"reasoning": "uses a { in prose", "action": "DELETE"}`)
	require.NoError(t, err)
	assert.Equal(t, "DELETE", out["action"])
}

func TestClient_ParseJSONResponse_MalformedErrors(t *testing.T) {
	c := NewClient(&fakeGenerator{}, nil, 0)
	_, err := c.ParseJSONResponse(`not json at all`)
	assert.Error(t, err)
}

func TestClient_RateLimiterBlocksSecondCallUntilContextDone(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	c := NewClient(gen, nil, 1) // 1 req/sec, burst 1

	ctx := context.Background()
	_, err := c.Call(ctx, "first", 0, 0)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Call(cancelled, "second", 0, 0)
	assert.Error(t, err)
}
