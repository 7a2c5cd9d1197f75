package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/format"
)

// embeddingsFile is the output of the embed command.
type embeddingsFile struct {
	Source     string `json:"source,omitempty"`
	Model      string `json:"model"`
	StartBatch int    `json:"start_batch,omitempty"`
	embed.BatchResult
	// Failed is set when the run stopped at a batch error.
	Failed *failedBatch `json:"failed,omitempty"`
}

type failedBatch struct {
	Batch        int    `json:"batch"`
	ChunkIndices []int  `json:"chunk_indices"`
	Error        string `json:"error"`
}

// embedOptions holds the flags of the embed command.
type embedOptions struct {
	output     string
	tunables   string
	model      string
	provider   string
	startBatch int
}

// EmbedCmd creates the embed command.
func EmbedCmd(env *Env) *cobra.Command {
	var opts embedOptions

	cmd := &cobra.Command{
		Use:   "embed <chunks.json>",
		Short: "Generate embeddings for a chunk file",
		Long: `Generate one embedding per chunk of a file written by the chunk command.

Chunks are sent in batches. Vectors already in the configured cache are
reused. When a batch fails, the completed batches are still written and
the batch number to resume from is printed.`,
		Example: `  vidindex embed talk.chunks.json
  vidindex embed talk.chunks.json --model text-embedding-3-large
  vidindex embed talk.chunks.json --start-batch 3 -o talk.rest.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, env, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default: <chunks>.embeddings.json)")
	f.StringVar(&opts.tunables, "tunables", "", "YAML file overriding processing defaults")
	f.StringVar(&opts.model, "model", "", "Embedding model (default from config)")
	f.StringVar(&opts.provider, "provider", "", "Embedding provider: openai, compatible (default from config)")
	f.IntVar(&opts.startBatch, "start-batch", 0, "Skip batches before this one")

	return cmd
}

func runEmbed(cmd *cobra.Command, env *Env, path string, opts embedOptions) error {
	ctx := cmd.Context()

	if err := requireFile(path); err != nil {
		return err
	}
	if opts.startBatch < 0 {
		return fmt.Errorf("%w: --start-batch must not be negative, got %d", embed.ErrInvalidOptions, opts.startBatch)
	}
	doc, err := chunk.LoadDocument(path)
	if err != nil {
		return fmt.Errorf("%w: %w", chunk.ErrChunkValidationFailed, err)
	}
	s, err := loadSettings(env, opts.tunables, opts.model)
	if err != nil {
		return err
	}
	out := config.ResolveOutputPath(opts.output, s.cfg.OutputDir, deriveOutputPath(trimChunksSuffix(path), ".embeddings.json"))

	b, release, err := newBatcher(ctx, env, s, opts.provider)
	if err != nil {
		return err
	}
	defer release()

	eo := s.tun.EmbedOptions()
	eo.StartBatch = opts.startBatch
	fmt.Fprintf(env.Stderr, "Embedding %d chunks with %s...\n", len(doc.Chunks), eo.Model.ID)

	res, genErr := b.Generate(ctx, doc.Chunks, eo)
	file := embeddingsFile{
		Source:      doc.Source,
		Model:       eo.Model.ID,
		StartBatch:  opts.startBatch,
		BatchResult: res,
	}
	var be *embed.BatchError
	if errors.As(genErr, &be) {
		file.Failed = &failedBatch{Batch: be.Batch, ChunkIndices: be.ChunkIndices, Error: be.Err.Error()}
	}
	if genErr != nil && len(res.Results) == 0 {
		return genErr
	}

	if err := writeJSONFile(out, file); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "%d embeddings, %d tokens (%d cached), %d calls, %s billed\n",
		len(res.Results), res.TotalTokens, res.CacheHits, res.Calls, format.USD(res.BilledCost))
	fmt.Fprintln(env.Stdout, out)

	if be != nil {
		fmt.Fprintf(env.Stderr, "Resume with: vidindex embed %s --start-batch %d -o <new file>\n", path, be.Batch)
	}
	return genErr
}

// trimChunksSuffix maps talk.chunks.json to talk.json so the default
// output is talk.embeddings.json.
func trimChunksSuffix(path string) string {
	if base, ok := strings.CutSuffix(path, ".chunks.json"); ok && base != "" {
		return base + ".json"
	}
	return path
}
