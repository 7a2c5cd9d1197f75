package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// ChunkCmd creates the chunk command.
func ChunkCmd(env *Env) *cobra.Command {
	var (
		output   string
		tunables string
		language string
	)

	cmd := &cobra.Command{
		Use:   "chunk <transcript.json>",
		Short: "Cut a transcript into timestamped text chunks",
		Long: `Cut a timestamped transcript into overlapping text chunks sized for
embedding. Each chunk keeps the start and end offsets of its words, so a
search hit can point back into the video.

The result is written as <transcript>.chunks.json unless -o is given.`,
		Example: `  vidindex chunk talk.json
  vidindex chunk talk.json -o chunks/talk.json --tunables tunables.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(env, args[0], output, tunables, language)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <transcript>.chunks.json)")
	cmd.Flags().StringVar(&tunables, "tunables", "", "YAML file overriding processing defaults")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Transcript language when the file has none (detected if omitted)")

	return cmd
}

func runChunk(env *Env, path, output, tunablesPath, language string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	language, err := transcript.Normalize(language)
	if err != nil {
		return err
	}
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return err
	}
	tun, err := config.LoadTunables(tunablesPath)
	if err != nil {
		return err
	}

	t, err := transcript.Load(path)
	if err != nil {
		return fmt.Errorf("%w: %w", transcript.ErrMalformed, err)
	}
	if t.Language == "" {
		t.Language = language
	}
	t = transcript.WithLanguage(t)

	c, err := chunk.New(tun.Chunk, chunk.WithLogger(env.Logger))
	if err != nil {
		return err
	}
	chunks := c.Chunk(t)
	if err := chunk.Validate(chunks, tun.Chunk); err != nil {
		return err
	}

	out := config.ResolveOutputPath(output, cfg.OutputDir, deriveOutputPath(path, ".chunks.json"))
	doc := chunk.Document{Source: path, Language: t.Language, Options: tun.Chunk, Chunks: chunks}
	if err := writeFileAtomic(out, func(w io.Writer) error { return chunk.WriteDocument(w, doc) }); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "%d chunks from %d words (%s)\n", len(chunks), t.WordCount(), t.Language)
	fmt.Fprintln(env.Stdout, out)
	return nil
}
