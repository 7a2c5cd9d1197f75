package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/format"
	"github.com/alnah/go-vidindex/internal/store"
)

// StatusCmd creates the status command.
func StatusCmd(env *Env) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "status <video>...",
		Short: "Show the stored processing state of videos",
		Example: `  vidindex status talk.mp4
  vidindex status lectures/*.mp4 --model text-embedding-3-large`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, env, args, model)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Embedding model to count vectors for (default from config)")

	return cmd
}

func runStatus(cmd *cobra.Command, env *Env, videos []string, model string) error {
	ctx := cmd.Context()

	s, err := loadSettings(env, "", model)
	if err != nil {
		return err
	}
	st, err := env.StoreFactory.Open(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	modelID := s.tun.Embedding.Model.ID
	for _, v := range videos {
		abs, err := filepath.Abs(v)
		if err != nil {
			return err
		}
		video, err := st.Video(ctx, store.VideoID(abs))
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s: %s", filepath.Base(abs), video.State)
		if video.Stage != "" {
			line += " at " + video.Stage
		}
		if video.Message != "" {
			line += ": " + video.Message
		}
		fmt.Fprintln(env.Stdout, line)

		chunks, err := st.LoadChunks(ctx, video.ID, modelID)
		if err != nil {
			return err
		}
		embedded := 0
		for _, c := range chunks {
			if c.Vector != nil {
				embedded++
			}
		}
		fmt.Fprintf(env.Stdout, "  id %s, %s, language %s, updated %s\n",
			video.ID, format.Seconds(video.Duration), orDash(video.Language), video.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(env.Stdout, "  %d chunks, %d embedded with %s\n", len(chunks), embedded, modelID)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
