package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/alnah/go-vidindex/internal/apierr"
)

// localToken is sent to self-hosted services that ignore authentication.
const localToken = "none"

// statusPattern extracts the HTTP status from langchaingo client errors.
var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// Compatible embeds texts through any OpenAI-compatible host (Ollama,
// vLLM, LocalAI) using langchaingo. The model is fixed at construction.
type Compatible struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewCompatible connects to host serving model. An empty token uses a
// placeholder for hosts without authentication.
func NewCompatible(host, model, token string) (*Compatible, error) {
	if host == "" || model == "" {
		return nil, fmt.Errorf("embedding host and model are required: %w", apierr.ErrBadRequest)
	}
	if token == "" {
		token = localToken
	}
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return newCompatible(e, model), nil
}

func newCompatible(e embeddings.Embedder, model string) *Compatible {
	return &Compatible{
		embedder: e,
		model:    model,
		logger:   slog.Default().With("component", "compatible-embedder"),
	}
}

// Embed implements embed.Embedder.
func (p *Compatible) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if model != p.model {
		return nil, fmt.Errorf("host serves model %q, not %q: %w", p.model, model, apierr.ErrBadRequest)
	}
	p.logger.Debug("generating embeddings", "model", model, "texts", len(texts))

	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Error("failed to generate embeddings", "texts", len(texts), "error", err)
		return nil, classify(err)
	}
	return vecs, nil
}

// classify maps a langchaingo error onto apierr sentinels.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request timed out: %w", apierr.ErrTimeout)
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		if classified := apierr.FromStatus(status, err.Error()); classified != nil {
			return classified
		}
	}
	return err
}
