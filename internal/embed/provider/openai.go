// Package provider implements embed.Embedder over hosted and self-hosted
// embedding APIs.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-vidindex/internal/apierr"
)

// embeddingCreator is the go-openai call used by OpenAI.
// *openai.Client implements it.
type embeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

var _ embeddingCreator = (*openai.Client)(nil)

// OpenAI embeds texts with the OpenAI embeddings endpoint.
type OpenAI struct {
	client embeddingCreator
	logger *slog.Logger
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL string
	logger  *slog.Logger
}

// WithBaseURL points the client at another OpenAI-shaped endpoint.
func WithBaseURL(u string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = u }
}

// WithOpenAILogger sets the logger.
func WithOpenAILogger(l *slog.Logger) OpenAIOption {
	return func(c *openAIConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOpenAI returns an OpenAI embedder authenticated with apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openAIConfig{logger: slog.Default().With("component", "openai-embedder")}
	for _, opt := range opts {
		opt(&cfg)
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.logger,
	}
}

// Embed implements embed.Embedder. Vectors are returned in input order
// whatever order the API lists them in.
func (p *OpenAI) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	p.logger.Debug("creating embeddings", "model", model, "texts", len(texts))

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, apierr.FromOpenAI(err)
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openai.Embedding) int { return a.Index - b.Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if d.Index != i {
			return nil, fmt.Errorf("embedding response index %d at position %d", d.Index, i)
		}
		out[i] = d.Embedding
	}
	p.logger.Debug("embeddings created", "vectors", len(out), "prompt_tokens", resp.Usage.PromptTokens)
	return out, nil
}
