package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/format"
	"github.com/alnah/go-vidindex/internal/pipeline"
	"github.com/alnah/go-vidindex/internal/telemetry"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// processOptions holds the flags of the process command.
type processOptions struct {
	transcriptPath string
	language       string
	prompt         string
	codec          string
	keepAudio      bool
	tunables       string
	model          string
	provider       string
	noEmbed        bool
	noStore        bool
	saveChunks     bool
}

// ProcessCmd creates the process command.
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <video>...",
		Short: "Transcribe, chunk and embed videos",
		Long: `Run the full pipeline on one or more videos: extract audio, split it
into transcription-sized chunks, transcribe, cut the transcript into
timestamped text chunks, embed them, and store the result.

Videos are processed concurrently up to max_concurrent_runs from the
tunables file. Press Ctrl+C once to stop after cleanup, twice to abort.`,
		Example: `  vidindex process talk.mp4
  vidindex process lectures/*.mp4 --tunables tunables.yaml
  vidindex process talk.mp4 --transcript talk.json --save-chunks
  vidindex process talk.mp4 -l fr --provider compatible`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, env, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transcriptPath, "transcript", "", "Use an existing transcript JSON instead of transcribing (single video)")
	f.StringVarP(&opts.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g., en, fr, pt-BR)")
	f.StringVar(&opts.prompt, "prompt", "", "Vocabulary hint passed to the transcriber")
	f.StringVar(&opts.codec, "codec", string(audio.CodecWAV), "Extracted audio codec: wav, mp3")
	f.BoolVar(&opts.keepAudio, "keep-audio", false, "Keep the extracted audio next to the video")
	f.StringVar(&opts.tunables, "tunables", "", "YAML file overriding processing defaults")
	f.StringVar(&opts.model, "model", "", "Embedding model (default from config)")
	f.StringVar(&opts.provider, "provider", "", "Embedding provider: openai, compatible (default from config)")
	f.BoolVar(&opts.noEmbed, "no-embed", false, "Stop after chunking")
	f.BoolVar(&opts.noStore, "no-store", false, "Do not write results to the database")
	f.BoolVar(&opts.saveChunks, "save-chunks", false, "Write <video>.chunks.json to output-dir")

	return cmd
}

// runProcess executes the pipeline for every video.
// Validation order: files -> flags -> language -> codec -> settings -> transcript -> keys -> toolchain.
func runProcess(cmd *cobra.Command, env *Env, videos []string, opts processOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	for _, v := range videos {
		if err := requireFile(v); err != nil {
			return err
		}
	}
	if opts.transcriptPath != "" && len(videos) > 1 {
		return fmt.Errorf("%w: --transcript applies to a single video", ErrConflictingFlags)
	}
	language, err := transcript.Normalize(opts.language)
	if err != nil {
		return err
	}
	codec, err := audio.ParseCodec(opts.codec)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidValue, err)
	}

	s, err := loadSettings(env, opts.tunables, opts.model)
	if err != nil {
		return err
	}

	var given *transcript.Transcript
	if opts.transcriptPath != "" {
		t, err := transcript.Load(opts.transcriptPath)
		if err != nil {
			return fmt.Errorf("%w: %w", transcript.ErrMalformed, err)
		}
		given = &t
	}

	// === SETUP ===

	var deps pipeline.Deps
	if given == nil {
		apiKey := env.Getenv(EnvOpenAIAPIKey)
		if apiKey == "" {
			return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
		}
		tc, err := resolveToolchain(ctx, env)
		if err != nil {
			return err
		}
		deps.Extractor = env.AudioFactory.NewExtractor(tc, s.tun.Timeouts.Extract)
		deps.Splitter = env.AudioFactory.NewSplitter(tc, s.tun.Timeouts.Split)
		deps.Transcriber = env.TranscriberFactory.NewTranscriber(apiKey)
	}

	if !opts.noEmbed {
		b, release, err := newBatcher(ctx, env, s, opts.provider)
		if err != nil {
			return err
		}
		defer release()
		deps.Embedder = b
	}

	if !opts.noStore {
		st, err := env.StoreFactory.Open(s.cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				env.Logger.Warn("close database", "error", err)
			}
		}()
		deps.Store = st
	}

	recorder := telemetry.NewRecorder(env.Logger)
	o, err := pipeline.New(deps, s.tun,
		pipeline.WithLogger(env.Logger),
		pipeline.WithTelemetry(recorder),
		pipeline.WithProgress(env.Stderr))
	if err != nil {
		return err
	}

	// === RUN ===

	reqs := make([]pipeline.Request, len(videos))
	for i, v := range videos {
		reqs[i] = pipeline.Request{
			VideoPath:  v,
			Transcript: given,
			Language:   language,
			Prompt:     opts.prompt,
			Codec:      codec,
			KeepAudio:  opts.keepAudio,
		}
	}

	results, runErr := o.RunAll(ctx, reqs)
	for _, r := range results {
		printResult(env.Stdout, r)
		if opts.saveChunks && len(r.Chunks) > 0 {
			if err := saveChunks(env, s, r); err != nil {
				fmt.Fprintf(env.Stderr, "Warning: %v\n", err)
			}
		}
	}
	if len(results) > 1 {
		snap := recorder.Snapshot()
		fmt.Fprintf(env.Stdout, "Total: %d videos, %d failed, %d chunks, %d tokens, %d cache hits\n",
			snap.TotalRuns, snap.FailedRuns, snap.TotalChunks, snap.TotalTokens, snap.CacheHits)
	}
	return runErr
}

// printResult writes a one-line summary of a run.
func printResult(w io.Writer, r pipeline.Result) {
	name := filepath.Base(r.Source)
	if r.Status.State != pipeline.StateSucceeded {
		fmt.Fprintf(w, "%s: %s at %s: %s\n", name, r.Status.State, r.Status.Stage, r.Status.Message)
		return
	}
	e := r.Embeddings
	fmt.Fprintf(w, "%s: %d chunks, %s, %d tokens (%d cached), %s billed\n",
		name, len(r.Chunks), format.Seconds(r.Transcript.Duration),
		e.TotalTokens, e.CacheHits, format.USD(e.BilledCost))
	if r.AudioPath != "" {
		fmt.Fprintf(w, "  audio kept at %s\n", r.AudioPath)
	}
}

// saveChunks writes the chunk document of a run into output-dir.
func saveChunks(env *Env, s settings, r pipeline.Result) error {
	path := config.ResolveOutputPath("", s.cfg.OutputDir, deriveOutputPath(filepath.Base(r.Source), ".chunks.json"))
	doc := chunk.Document{
		Source:   r.Source,
		Language: r.Transcript.Language,
		Options:  s.tun.Chunk,
		Chunks:   r.Chunks,
	}
	if err := writeFileAtomic(path, func(w io.Writer) error { return chunk.WriteDocument(w, doc) }); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Chunks written to %s\n", path)
	return nil
}
