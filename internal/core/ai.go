package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	// GenerateJSON asks the model for a JSON-only response. Callers are
	// responsible for unmarshalling; the provider only constrains the
	// output format.
	GenerateJSON(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
