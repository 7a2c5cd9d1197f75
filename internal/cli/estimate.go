package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/format"
)

// EstimateCmd creates the estimate command.
func EstimateCmd(env *Env) *cobra.Command {
	var (
		tunables string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "estimate <chunks.json>",
		Short: "Estimate embedding tokens and cost without calling the API",
		Long: `Estimate the tokens and cost of embedding a chunk file. Tokens are
approximated as one per four characters; no request is sent.`,
		Example: `  vidindex estimate talk.chunks.json
  vidindex estimate talk.chunks.json --model text-embedding-3-large`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(env, args[0], tunables, model)
		},
	}

	cmd.Flags().StringVar(&tunables, "tunables", "", "YAML file overriding processing defaults")
	cmd.Flags().StringVar(&model, "model", "", "Embedding model (default from config)")

	return cmd
}

func runEstimate(env *Env, path, tunablesPath, model string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	doc, err := chunk.LoadDocument(path)
	if err != nil {
		return fmt.Errorf("%w: %w", chunk.ErrChunkValidationFailed, err)
	}
	s, err := loadSettings(env, tunablesPath, model)
	if err != nil {
		return err
	}

	m := s.tun.Embedding.Model
	tokens := 0
	for _, c := range doc.Chunks {
		tokens += embed.EstimateTokens(c.Text)
	}
	batches := 0
	if n := len(doc.Chunks); n > 0 {
		batches = (n + s.tun.Embedding.BatchSize - 1) / s.tun.Embedding.BatchSize
	}

	fmt.Fprintf(env.Stdout, "Model:   %s\n", m.ID)
	fmt.Fprintf(env.Stdout, "Chunks:  %d\n", len(doc.Chunks))
	fmt.Fprintf(env.Stdout, "Batches: %d\n", batches)
	fmt.Fprintf(env.Stdout, "Tokens:  %d\n", tokens)
	fmt.Fprintf(env.Stdout, "Cost:    %s\n", format.USD(embed.EstimateCost(doc.Chunks, m)))
	if m.CostPer1KTokens == 0 {
		fmt.Fprintf(env.Stderr, "Warning: no price known for model %s; set embedding.model.cost_per_1k_tokens in a tunables file\n", m.ID)
	}
	return nil
}
