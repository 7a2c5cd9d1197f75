package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/format"
)

// SplitCmd creates the split command.
func SplitCmd(env *Env) *cobra.Command {
	var (
		maxSizeMB float64
		tunables  string
	)

	cmd := &cobra.Command{
		Use:   "split <audio>",
		Short: "Split audio into transcription-sized chunks",
		Long: `Split an audio file into equal-duration chunks that each fit under the
transcription upload limit. Chunks are written to a temporary directory
and listed on stdout; they are not removed.

A file already under the limit is returned as a single chunk.`,
		Example: `  vidindex split talk.wav
  vidindex split talk.wav --max-size 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, env, args[0], maxSizeMB, tunables)
		},
	}

	cmd.Flags().Float64Var(&maxSizeMB, "max-size", 0, "Maximum chunk size in MB (default from tunables)")
	cmd.Flags().StringVar(&tunables, "tunables", "", "YAML file overriding processing defaults")

	return cmd
}

func runSplit(cmd *cobra.Command, env *Env, path string, maxSizeMB float64, tunablesPath string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	if maxSizeMB < 0 {
		return fmt.Errorf("%w: --max-size must be positive, got %g", config.ErrInvalidValue, maxSizeMB)
	}
	tun, err := config.LoadTunables(tunablesPath)
	if err != nil {
		return err
	}
	if maxSizeMB == 0 {
		maxSizeMB = tun.Split.MaxSizeMB
	}

	tc, err := resolveToolchain(cmd.Context(), env)
	if err != nil {
		return err
	}
	chunks, err := env.AudioFactory.NewSplitter(tc, tun.Timeouts.Split).Split(cmd.Context(), path, maxSizeMB)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Split into %d chunk(s)\n", len(chunks))
	for _, c := range chunks {
		fmt.Fprintf(env.Stdout, "%d\t%s\t%s\t%s\t%s\n", c.Index,
			format.Seconds(c.Start), format.Seconds(c.End()), format.Size(c.Size), c.Path)
	}
	return nil
}
