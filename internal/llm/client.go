package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// Client adapts a provider's TextGenerator/EmbeddingGenerator pair to the
// narrow Call/ParseJSONResponse/EmbedText collaborator shapes
// internal/packcompiler.Adjudicator, internal/synthesis.LLM, and
// internal/dream.LLM/Embedder each declare locally. A single Client value
// satisfies all of them, the same way the teacher lets one concrete client
// back several call sites without those packages importing each other.
type Client struct {
	gen      TextGenerator
	embedder EmbeddingGenerator
	limiter  *rate.Limiter
}

// NewClient wraps gen/embedder with self-imposed call pacing. embedder may
// be nil for text-only providers (Anthropic); EmbedText then always errors.
// ratePerSecond <= 0 disables pacing (limiter is nil, calls pass straight
// through) — useful for tests and for providers that already rate-limit
// themselves (local Ollama).
func NewClient(gen TextGenerator, embedder EmbeddingGenerator, ratePerSecond float64) *Client {
	c := &Client{gen: gen, embedder: embedder}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Call issues one prompt/response round trip through the wrapped
// TextGenerator, paced by the configured rate limiter.
func (c *Client) Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limiter: %w", err)
	}
	return c.gen.Complete(ctx, prompt, temperature, maxTokens)
}

// EmbedText generates a vector embedding, paced by the same limiter as Call.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("llm: provider %q does not support embeddings", c.gen.GetModel())
	}
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter: %w", err)
	}
	return c.embedder.Embed(ctx, text)
}

// ParseJSONResponse extracts and unmarshals the first complete JSON object
// in raw, tolerating the markdown fences and leading/trailing prose models
// routinely wrap strict-JSON instructions in despite being told not to.
func (c *Client) ParseJSONResponse(raw string) (map[string]interface{}, error) {
	clean := extractJSON(raw)
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("llm: parse JSON response: %w", err)
	}
	return out, nil
}

// extractJSON returns the first balanced {...} object in text, stripping
// common ```json fences first. Brace matching ignores braces inside quoted
// strings so a summary field containing "{" doesn't truncate the match.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}
