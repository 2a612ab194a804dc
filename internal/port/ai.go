package port

import "context"

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	// ModelName returns the identifier of the embedding model.
	ModelName() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces a short natural-language description from a prompt.
type Summarizer interface {
	// ModelName returns the identifier of the completion model.
	ModelName() string

	// Summarize sends prompt to the model and returns its trimmed answer.
	Summarize(ctx context.Context, prompt string) (string, error)
}
