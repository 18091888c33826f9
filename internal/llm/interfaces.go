package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// All prompts use single-string completion style (not chat). temperature
// and maxTokens are per-call so one provider client serves both the
// synthesis pipeline's fixed low-temperature extraction calls and the dream
// engine's per-config-snapshot temperature (§4.6, §4.7).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Returns a float32 slice, the element type Memory and Knowledge embeddings
// are stored as.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
