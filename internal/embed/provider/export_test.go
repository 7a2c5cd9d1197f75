package provider

import (
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
)

type EmbeddingCreator = embeddingCreator

// NewOpenAIWithClient builds an OpenAI embedder over a fake client.
func NewOpenAIWithClient(c EmbeddingCreator) *OpenAI {
	return &OpenAI{client: c, logger: slog.Default()}
}

// NewCompatibleWithEmbedder builds a Compatible embedder over a fake.
func NewCompatibleWithEmbedder(e embeddings.Embedder, model string) *Compatible {
	return newCompatible(e, model)
}
