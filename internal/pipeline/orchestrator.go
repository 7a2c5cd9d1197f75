// Package pipeline sequences the processing stages of one video:
// extract, split, transcribe, chunk, validate, embed, persist.
//
// Every run ends in a terminal Status. Files created by a run are removed on
// every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/store"
	"github.com/alnah/go-vidindex/internal/telemetry"
	"github.com/alnah/go-vidindex/internal/transcribe"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// Stage names, in execution order.
const (
	StageExtract    = "extract"
	StageSplit      = "split"
	StageTranscribe = "transcribe"
	StageChunk      = "chunk"
	StageValidate   = "validate"
	StageEmbed      = "embed"
	StagePersist    = "persist"
)

// State is the lifecycle state of a run.
type State string

// Run states. Only Succeeded, Failed and Cancelled are terminal.
const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// statusTimeout bounds the final status write, which runs even after the
// run context is canceled.
const statusTimeout = 5 * time.Second

// Status is the outcome of a run. Stage is the stage that failed, or the
// last stage reached.
type Status struct {
	State   State
	Stage   string
	Message string
}

// AudioExtractor pulls the audio track out of a video.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string, opts audio.ExtractOptions) (string, error)
}

// AudioSplitter cuts audio into transcription-sized chunks.
type AudioSplitter interface {
	Split(ctx context.Context, audioPath string, maxSizeMB float64) ([]audio.Chunk, error)
}

// EmbeddingGenerator produces vectors for text chunks. *embed.Batcher
// implements it.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, chunks []chunk.TextChunk, opts embed.Options) (embed.BatchResult, error)
}

// Store persists run status and results. *store.SQLite implements it.
type Store interface {
	SetStatus(ctx context.Context, v store.Video) error
	SaveRun(ctx context.Context, r store.Run) error
}

// Deps are the collaborators of an Orchestrator. Embedder and Store may be
// nil, in which case the embed or persist stage is skipped.
type Deps struct {
	Extractor   AudioExtractor
	Splitter    AudioSplitter
	Transcriber transcribe.Transcriber
	Embedder    EmbeddingGenerator
	Store       Store
}

// Request describes one video to process.
type Request struct {
	VideoPath string
	// Transcript skips extract, split and transcribe when set.
	Transcript *transcript.Transcript
	// Language and Prompt are passed to the transcriber.
	Language string
	Prompt   string
	// Codec selects the extracted audio format.
	Codec audio.Codec
	// KeepAudio keeps the extracted audio file. Split chunks are always removed.
	KeepAudio bool
}

// Result is everything a run produced, including partial output on failure.
type Result struct {
	VideoID    string
	Source     string
	Status     Status
	AudioPath  string
	Transcript transcript.Transcript
	Chunks     []chunk.TextChunk
	Embeddings embed.BatchResult
}

// Orchestrator runs the pipeline for one or more videos.
type Orchestrator struct {
	deps     Deps
	tunables config.Tunables
	chunker  *chunk.Chunker
	logger   *slog.Logger
	metrics  *telemetry.Recorder
	progress io.Writer

	// Injectable dependencies (defaults to OS implementations).
	remove        func(string) error
	cleanupChunks func([]audio.Chunk, string) error
	abs           func(string) (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTelemetry records per-run metrics into r.
func WithTelemetry(r *telemetry.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithProgress writes one line per stage to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.progress = w
		}
	}
}

// New creates an Orchestrator. The chunker is built from the tunables, so
// invalid chunk options fail here rather than mid-run.
func New(deps Deps, tun config.Tunables, opts ...Option) (*Orchestrator, error) {
	if err := tun.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		deps:          deps,
		tunables:      tun,
		logger:        slog.Default().With("component", "pipeline"),
		progress:      io.Discard,
		remove:        os.Remove,
		cleanupChunks: audio.Cleanup,
		abs:           filepath.Abs,
	}
	for _, opt := range opts {
		opt(o)
	}

	c, err := chunk.New(tun.Chunk, chunk.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	o.chunker = c
	return o, nil
}

// ---------------------------------------------------------------------------
// Single run
// ---------------------------------------------------------------------------

// run carries the mutable state of one Run call.
type run struct {
	o       *Orchestrator
	req     Request
	res     *Result
	metrics *telemetry.RunMetrics
	log     *slog.Logger
	stage   string
}

// Run processes one video through every stage. The returned Result always
// carries a terminal Status; err is non-nil unless the run succeeded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	source, err := o.abs(req.VideoPath)
	if err != nil {
		source = req.VideoPath
	}
	res = Result{VideoID: store.VideoID(source), Source: source}

	r := &run{
		o:       o,
		req:     req,
		res:     &res,
		metrics: o.metrics.StartRun(res.VideoID, source),
		log:     o.logger.With("video_id", res.VideoID),
	}
	defer func() { r.metrics.Finish(err) }()

	o.setStatus(ctx, res, store.Video{State: string(StateRunning)})

	err = r.execute(ctx)
	res.Status = r.status(ctx, err)

	o.setStatus(ctx, res, store.Video{
		Language: res.Transcript.Language,
		Duration: res.Transcript.Duration,
		State:    string(res.Status.State),
		Stage:    res.Status.Stage,
		Message:  res.Status.Message,
	})
	if err != nil {
		r.log.Warn("run ended", "state", res.Status.State, "stage", res.Status.Stage, "error", err)
	}
	return res, err
}

func (r *run) execute(ctx context.Context) error {
	if r.req.Transcript != nil {
		r.res.Transcript = transcript.WithLanguage(*r.req.Transcript)
	} else if err := r.transcribeVideo(ctx); err != nil {
		return err
	}

	o := r.o
	err := r.step(ctx, StageChunk, 0, func(context.Context) error {
		r.res.Chunks = o.chunker.Chunk(r.res.Transcript)
		r.metrics.RecordChunks(len(r.res.Chunks))
		return nil
	})
	if err != nil {
		return err
	}

	err = r.step(ctx, StageValidate, 0, func(context.Context) error {
		return chunk.Validate(r.res.Chunks, o.tunables.Chunk)
	})
	if err != nil {
		return err
	}

	if o.deps.Embedder != nil {
		err = r.step(ctx, StageEmbed, o.tunables.Timeouts.Embed, func(ctx context.Context) error {
			br, err := o.deps.Embedder.Generate(ctx, r.res.Chunks, o.tunables.EmbedOptions())
			r.res.Embeddings = br
			r.metrics.RecordEmbeddings(br.Calls, br.CacheHits, br.TotalTokens, br.BilledCost)
			return err
		})
		if err != nil {
			return err
		}
	}

	if o.deps.Store == nil {
		return nil
	}
	return r.step(ctx, StagePersist, 0, func(ctx context.Context) error {
		return o.deps.Store.SaveRun(ctx, store.Run{
			VideoID:    r.res.VideoID,
			Source:     r.res.Source,
			Language:   r.res.Transcript.Language,
			Duration:   r.res.Transcript.Duration,
			State:      string(StateSucceeded),
			Model:      o.tunables.Embedding.Model.ID,
			Chunks:     r.res.Chunks,
			Embeddings: r.res.Embeddings.Results,
		})
	})
}

// transcribeVideo runs extract, split and transcribe. The extracted audio
// and split chunks are removed before it returns, unless KeepAudio.
func (r *run) transcribeVideo(ctx context.Context) error {
	o := r.o
	if o.deps.Extractor == nil || o.deps.Splitter == nil || o.deps.Transcriber == nil {
		return &StageError{Stage: StageExtract, Err: errors.New("audio stages are not configured")}
	}

	var audioPath string
	err := r.step(ctx, StageExtract, o.tunables.Timeouts.Extract, func(ctx context.Context) error {
		var err error
		audioPath, err = o.deps.Extractor.Extract(ctx, r.req.VideoPath, audio.ExtractOptions{Codec: r.req.Codec})
		return err
	})
	if err != nil {
		return err
	}
	if r.req.KeepAudio {
		r.res.AudioPath = audioPath
	} else {
		defer o.removeFile(r.log, audioPath)
	}

	var parts []audio.Chunk
	err = r.step(ctx, StageSplit, o.tunables.Timeouts.Split, func(ctx context.Context) error {
		var err error
		parts, err = o.deps.Splitter.Split(ctx, audioPath, o.tunables.Split.MaxSizeMB)
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := o.cleanupChunks(parts, audioPath); err != nil {
			r.log.Warn("cleanup split chunks", "error", err)
		}
	}()

	total := 0.0
	for _, p := range parts {
		total += p.Duration
	}
	r.metrics.RecordAudio(total, len(parts))

	return r.step(ctx, StageTranscribe, o.tunables.Timeouts.Transcribe, func(ctx context.Context) error {
		t, err := transcribe.TranscribeAll(ctx, parts, o.deps.Transcriber, transcribe.Options{
			Language: r.req.Language,
			Prompt:   r.req.Prompt,
		}, o.tunables.TranscribeParallel)
		if err != nil {
			return err
		}
		if err := transcript.Check(t); err != nil {
			return fmt.Errorf("%w: %w", transcribe.ErrTranscriptionFailed, err)
		}
		if t.Duration <= 0 {
			t.Duration = total
		}
		r.res.Transcript = transcript.WithLanguage(t)
		return nil
	})
}

// step runs fn as the named stage. The run context is checked first, and a
// positive timeout bounds fn.
func (r *run) step(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) error) error {
	r.stage = stage
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: context.Cause(ctx)}
	}
	fmt.Fprintf(r.o.progress, "[%s] %s...\n", filepath.Base(r.res.Source), stage)

	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)
	r.metrics.RecordStage(stage, time.Since(start))
	if err == nil {
		return nil
	}
	if timeout > 0 && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, timeout, err)
	}
	return &StageError{Stage: stage, Err: err}
}

func (r *run) status(ctx context.Context, err error) Status {
	if err == nil {
		return Status{State: StateSucceeded, Stage: r.stage}
	}
	st := Status{State: StateFailed, Stage: r.stage, Message: err.Error()}
	var se *StageError
	if errors.As(err, &se) {
		st.Stage = se.Stage
	}
	if ctx.Err() != nil {
		st.State = StateCancelled
	}
	return st
}

// setStatus records v for the run. Failures are logged, never returned, so
// they cannot replace the run's own outcome.
func (o *Orchestrator) setStatus(ctx context.Context, res Result, v store.Video) {
	if o.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()

	v.ID, v.Source = res.VideoID, res.Source
	if err := o.deps.Store.SetStatus(ctx, v); err != nil {
		o.logger.Warn("record status", "video_id", res.VideoID, "state", v.State, "error", err)
	}
}

func (o *Orchestrator) removeFile(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := o.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove extracted audio", "path", path, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Multiple runs
// ---------------------------------------------------------------------------

// RunAll processes reqs with at most MaxConcurrentRuns in flight. Results
// keep the order of reqs; the error joins every failed run.
func (o *Orchestrator) RunAll(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))
	errs := make([]error, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(min(o.tunables.MaxConcurrentRuns, len(reqs)))
	if err != nil {
		return nil, fmt.Errorf("create run pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = o.Run(ctx, req)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%s: submit: %w", req.VideoPath, submitErr)
			results[i] = Result{Source: req.VideoPath, Status: Status{State: StateFailed, Message: submitErr.Error()}}
		}
	}
	wg.Wait()

	var joined []error
	for i, err := range errs {
		if err != nil {
			joined = append(joined, fmt.Errorf("%s: %w", reqs[i].VideoPath, err))
		}
	}
	return results, errors.Join(joined...)
}
