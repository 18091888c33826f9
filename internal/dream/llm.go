package dream

import "context"

// LLM is the narrow collaborator the Deep Sleep phase calls through: one
// prompt/response round trip plus the shared JSON-object parse helper, the
// same shape internal/packcompiler.Adjudicator uses. Deep Sleep's config
// snapshot carries its own provider/model/temperature (§4.7) independent of
// synthesis's LLM settings, so the dream engine holds its own LLM value
// rather than reusing internal/synthesis.LLM.
type LLM interface {
	Call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	ParseJSONResponse(raw string) (map[string]interface{}, error)
}

// Embedder regenerates a memory's vector embedding after its summary
// changes (merge, split, or a review UPDATE that rewrites the summary).
// Satisfied by the same concrete client as internal/packcompiler.Embedder.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
