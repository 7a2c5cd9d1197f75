package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/pipeline"
)

// ExtractCmd creates the extract command.
func ExtractCmd(env *Env) *cobra.Command {
	var (
		codec    string
		tunables string
	)

	cmd := &cobra.Command{
		Use:   "extract <video>",
		Short: "Extract the audio track of a video",
		Long: `Extract the audio track of a video as 16 kHz mono, written next to
the video with the codec extension.`,
		Example: `  vidindex extract talk.mp4
  vidindex extract talk.mp4 --codec mp3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, env, args[0], codec, tunables)
		},
	}

	cmd.Flags().StringVar(&codec, "codec", string(audio.CodecWAV), "Output codec: wav, mp3")
	cmd.Flags().StringVar(&tunables, "tunables", "", "YAML file overriding processing defaults")

	return cmd
}

func runExtract(cmd *cobra.Command, env *Env, video, codecName, tunablesPath string) error {
	if err := requireFile(video); err != nil {
		return err
	}
	codec, err := audio.ParseCodec(codecName)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidValue, err)
	}
	tun, err := config.LoadTunables(tunablesPath)
	if err != nil {
		return err
	}

	ex, err := newExtractor(cmd, env, tun)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Extracting audio from %s...\n", video)
	out, err := ex.Extract(cmd.Context(), video, audio.ExtractOptions{Codec: codec})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, out)
	return nil
}

func newExtractor(cmd *cobra.Command, env *Env, tun config.Tunables) (pipeline.AudioExtractor, error) {
	tc, err := resolveToolchain(cmd.Context(), env)
	if err != nil {
		return nil, err
	}
	return env.AudioFactory.NewExtractor(tc, tun.Timeouts.Extract), nil
}
