package embed

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/alnah/go-vidindex/internal/chunk"
)

// Defaults for Options.
const (
	DefaultModel      = "text-embedding-3-small"
	DefaultBatchSize  = 100
	DefaultBatchDelay = time.Second

	// charsPerToken is the fixed approximation used for token accounting.
	charsPerToken = 4
)

// ModelConfig describes one embedding model: its identifier, the vector
// dimension it returns, and its price.
type ModelConfig struct {
	ID string `yaml:"id" json:"id"`
	// Dimensions is the expected vector length. Zero disables the check.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// CostPer1KTokens is the USD rate per 1000 tokens.
	CostPer1KTokens float64 `yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens"`
}

// knownModels holds published dimensions and prices for OpenAI models.
var knownModels = map[string]ModelConfig{
	"text-embedding-3-small": {ID: "text-embedding-3-small", Dimensions: 1536, CostPer1KTokens: 0.00002},
	"text-embedding-3-large": {ID: "text-embedding-3-large", Dimensions: 3072, CostPer1KTokens: 0.00013},
	"text-embedding-ada-002": {ID: "text-embedding-ada-002", Dimensions: 1536, CostPer1KTokens: 0.0001},
}

// LookupModel returns the configuration for a known model id. Unknown ids
// get a config with no dimension check and a zero rate.
func LookupModel(id string) (ModelConfig, bool) {
	m, ok := knownModels[id]
	if !ok {
		return ModelConfig{ID: id}, false
	}
	return m, true
}

// Options configures one Generate call.
type Options struct {
	Model      ModelConfig
	BatchSize  int
	BatchDelay time.Duration
	// StartBatch skips batches before it, to resume after a BatchError.
	StartBatch int
}

// DefaultOptions returns options for text-embedding-3-small with batches of
// 100 and a one second delay between batches.
func DefaultOptions() Options {
	m, _ := LookupModel(DefaultModel)
	return Options{
		Model:      m,
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
	}
}

// Validate reports unusable options.
func (o Options) Validate() error {
	switch {
	case o.Model.ID == "":
		return fmt.Errorf("%w: model id is empty", ErrInvalidOptions)
	case o.Model.Dimensions < 0:
		return fmt.Errorf("%w: dimensions %d < 0", ErrInvalidOptions, o.Model.Dimensions)
	case o.Model.CostPer1KTokens < 0:
		return fmt.Errorf("%w: cost rate %g < 0", ErrInvalidOptions, o.Model.CostPer1KTokens)
	case o.BatchSize < 1:
		return fmt.Errorf("%w: batch size %d < 1", ErrInvalidOptions, o.BatchSize)
	case o.BatchDelay < 0:
		return fmt.Errorf("%w: batch delay %s < 0", ErrInvalidOptions, o.BatchDelay)
	case o.StartBatch < 0:
		return fmt.Errorf("%w: start batch %d < 0", ErrInvalidOptions, o.StartBatch)
	}
	return nil
}

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Cost converts a token count to USD at the model's rate.
func (m ModelConfig) Cost(tokens int) float64 {
	return float64(tokens) / 1000 * m.CostPer1KTokens
}

// EstimateCost prices embedding every chunk with model, without any network
// call. It returns 0 for no chunks.
func EstimateCost(chunks []chunk.TextChunk, model ModelConfig) float64 {
	tokens := 0
	for _, c := range chunks {
		tokens += EstimateTokens(c.Text)
	}
	return model.Cost(tokens)
}
