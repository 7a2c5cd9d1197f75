package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/transcribe"
)

// ErrInvalidTunables indicates a tunables file with unusable values.
var ErrInvalidTunables = errors.New("invalid tunables")

// Tunables are the processing constants a YAML file may override.
type Tunables struct {
	Chunk     chunk.Options   `yaml:"chunk"`
	Split     SplitTunables   `yaml:"split"`
	Embedding EmbedTunables   `yaml:"embedding"`
	Timeouts  TimeoutTunables `yaml:"timeouts"`
	// MaxConcurrentRuns bounds how many videos are processed at once.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	// TranscribeParallel bounds concurrent transcription requests per video.
	TranscribeParallel int `yaml:"transcribe_parallel"`
}

// SplitTunables configures audio splitting.
type SplitTunables struct {
	MaxSizeMB float64 `yaml:"max_size_mb"`
}

// EmbedTunables configures embedding batches.
type EmbedTunables struct {
	Model      embed.ModelConfig `yaml:"model"`
	BatchSize  int               `yaml:"batch_size"`
	BatchDelay time.Duration     `yaml:"batch_delay"`
}

// TimeoutTunables bounds each pipeline stage.
type TimeoutTunables struct {
	Extract    time.Duration `yaml:"extract"`
	Split      time.Duration `yaml:"split"`
	Transcribe time.Duration `yaml:"transcribe"`
	Embed      time.Duration `yaml:"embed"`
}

// DefaultTunables returns the built-in constants.
func DefaultTunables() Tunables {
	eo := embed.DefaultOptions()
	return Tunables{
		Chunk: chunk.DefaultOptions(),
		Split: SplitTunables{MaxSizeMB: audio.DefaultMaxSizeMB},
		Embedding: EmbedTunables{
			Model:      eo.Model,
			BatchSize:  eo.BatchSize,
			BatchDelay: eo.BatchDelay,
		},
		Timeouts: TimeoutTunables{
			Extract:    audio.DefaultExtractTimeout,
			Split:      audio.DefaultSplitTimeout,
			Transcribe: 30 * time.Minute,
			Embed:      30 * time.Minute,
		},
		MaxConcurrentRuns:  2,
		TranscribeParallel: transcribe.MaxRecommendedParallel / 2,
	}
}

// EmbedOptions converts the embedding section to embed.Options.
func (t Tunables) EmbedOptions() embed.Options {
	return embed.Options{
		Model:      t.Embedding.Model,
		BatchSize:  t.Embedding.BatchSize,
		BatchDelay: t.Embedding.BatchDelay,
	}
}

// WithModel returns t using the named embedding model. Known models bring
// their dimensions and price; the model of a tunables file is kept when it
// has the same id.
func (t Tunables) WithModel(id string) Tunables {
	if id == "" || id == t.Embedding.Model.ID {
		return t
	}
	t.Embedding.Model, _ = embed.LookupModel(id)
	return t
}

// Validate reports the first unusable value.
func (t Tunables) Validate() error {
	if err := t.Chunk.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTunables, err)
	}
	if err := t.EmbedOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTunables, err)
	}
	switch {
	case t.Split.MaxSizeMB <= 0:
		return fmt.Errorf("%w: split.max_size_mb must be positive, got %g", ErrInvalidTunables, t.Split.MaxSizeMB)
	case t.MaxConcurrentRuns < 1:
		return fmt.Errorf("%w: max_concurrent_runs must be at least 1, got %d", ErrInvalidTunables, t.MaxConcurrentRuns)
	case t.TranscribeParallel < 1:
		return fmt.Errorf("%w: transcribe_parallel must be at least 1, got %d", ErrInvalidTunables, t.TranscribeParallel)
	case t.Timeouts.Extract <= 0, t.Timeouts.Split <= 0, t.Timeouts.Transcribe <= 0, t.Timeouts.Embed <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidTunables)
	}
	return nil
}

// LoadTunables reads a YAML file over the defaults. Fields absent from the
// file keep their default; unknown fields are rejected. An empty path
// returns the defaults.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(ExpandPath(path)) // #nosec G304 -- path is provided by the user on the command line
	if err != nil {
		return Tunables{}, fmt.Errorf("read tunables: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tunables{}, fmt.Errorf("%w: %s: %w", ErrInvalidTunables, path, err)
	}
	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}
