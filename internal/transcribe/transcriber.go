package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-vidindex/internal/apierr"
	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// ModelWhisper is the only OpenAI model returning segment and word timings.
const ModelWhisper = openai.Whisper1

// MaxRecommendedParallel is the recommended upper limit for concurrent API requests.
// Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// Options configures transcription behavior.
type Options struct {
	// Prompt provides context to improve transcription accuracy.
	// Useful for domain-specific vocabulary, acronyms, or expected content.
	Prompt string

	// Language is an ISO 639-1 code, a locale, or a language name.
	// Empty means auto-detect.
	Language string

	// Model defaults to ModelWhisper.
	Model string
}

// Transcriber transcribes one audio chunk. Timestamps in the result are
// relative to the start of the chunk.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk, opts Options) (transcript.Transcript, error)
}

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio with OpenAI's verbose_json endpoint,
// retrying transient errors under a RetryPolicy.
type OpenAITranscriber struct {
	client audioTranscriber
	policy apierr.RetryPolicy
	logger *slog.Logger
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithRetryPolicy sets the backoff used for transient errors.
func WithRetryPolicy(p apierr.RetryPolicy) TranscriberOption {
	return func(t *OpenAITranscriber) { t.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewOpenAITranscriber creates a new OpenAITranscriber.
func NewOpenAITranscriber(client *openai.Client, opts ...TranscriberOption) *OpenAITranscriber {
	return newOpenAITranscriber(client, opts...)
}

func newOpenAITranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client: client,
		policy: apierr.DefaultRetryPolicy(),
		logger: slog.Default().With("component", "transcribe"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe sends one chunk and returns its timed transcript.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, chunk audio.Chunk, opts Options) (transcript.Transcript, error) {
	lang, err := transcript.Normalize(opts.Language)
	if err != nil {
		return transcript.Transcript{}, err
	}
	model := opts.Model
	if model == "" {
		model = ModelWhisper
	}

	req := openai.AudioRequest{
		Model:    model,
		FilePath: chunk.Path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Prompt:   opts.Prompt,
		Language: lang,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		},
	}

	attempt := 0
	resp, err := apierr.Do(ctx, t.policy, func(ctx context.Context) (openai.AudioResponse, error) {
		attempt++
		if attempt > 1 {
			t.logger.Debug("retrying transcription", "chunk", chunk.Index, "attempt", attempt)
		}
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return openai.AudioResponse{}, apierr.FromOpenAI(err)
		}
		return resp, nil
	}, apierr.IsRetryable)
	if err != nil {
		return transcript.Transcript{}, err
	}
	return fromResponse(resp, chunk.Duration), nil
}

// fromResponse converts a verbose_json response. A response without
// segments becomes one segment spanning the chunk.
func fromResponse(resp openai.AudioResponse, chunkDuration float64) transcript.Transcript {
	out := transcript.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
	}
	if out.Duration == 0 {
		out.Duration = chunkDuration
	}
	if code, err := transcript.Normalize(resp.Language); err == nil {
		out.Language = code
	}

	for i, s := range resp.Segments {
		out.Segments = append(out.Segments, transcript.Segment{
			ID:    i,
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if len(out.Segments) == 0 && out.Text != "" {
		out.Segments = []transcript.Segment{{Start: 0, End: out.Duration, Text: out.Text}}
	}

	if len(resp.Words) > 0 {
		words := make([]transcript.Word, len(resp.Words))
		for i, w := range resp.Words {
			words[i] = transcript.Word{Text: strings.TrimSpace(w.Word), Start: w.Start, End: w.End}
		}
		out.Segments = transcript.AttachWords(out.Segments, words)
	}
	return out
}

// TranscribeAll transcribes multiple audio chunks in parallel and merges
// them into one transcript in source time: each chunk's timestamps are
// shifted by its Start and segment IDs run densely across chunks.
// If any chunk fails, the entire operation is aborted and the error is returned.
// maxParallel limits the number of concurrent API requests (1-MaxRecommendedParallel recommended).
func TranscribeAll(
	ctx context.Context,
	chunks []audio.Chunk,
	t Transcriber,
	opts Options,
	maxParallel int,
) (transcript.Transcript, error) {
	if len(chunks) == 0 {
		return transcript.Transcript{}, nil
	}

	if maxParallel < 1 {
		maxParallel = 1
	}

	parts := make([]transcript.Transcript, len(chunks))
	offsets := make([]float64, len(chunks))
	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, maxParallel)

	g, ctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks {
		offsets[i] = chunk.Start
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			part, err := t.Transcribe(ctx, chunk, opts)
			if err != nil {
				return fmt.Errorf("%w: chunk %d (%s): %w",
					ErrTranscriptionFailed, chunk.Index, filepath.Base(chunk.Path), err)
			}
			parts[i] = part
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return transcript.Transcript{}, err
	}

	return transcript.Merge(parts, offsets)
}
