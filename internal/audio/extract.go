package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

// Codec selects the container/encoding of extracted audio.
type Codec string

// Supported codecs.
const (
	CodecWAV Codec = "wav"
	CodecMP3 Codec = "mp3"
)

// Extraction defaults: 16 kHz mono is what speech recognizers are trained on.
const (
	DefaultSampleRate     = 16000
	DefaultChannels       = 1
	DefaultExtractTimeout = 30 * time.Minute
)

// ExtractOptions controls the audio track produced from a video.
// Zero values select the defaults.
type ExtractOptions struct {
	Codec      Codec
	SampleRate int
	Channels   int
}

func (o ExtractOptions) withDefaults() ExtractOptions {
	if o.Codec == "" {
		o.Codec = CodecWAV
	}
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Channels <= 0 {
		o.Channels = DefaultChannels
	}
	return o
}

// encoderArgs returns the ffmpeg audio encoder flags for the codec.
func (c Codec) encoderArgs() ([]string, error) {
	switch c {
	case CodecWAV:
		return []string{"-c:a", "pcm_s16le"}, nil
	case CodecMP3:
		return []string{"-c:a", "libmp3lame", "-q:a", "4"}, nil
	}
	return nil, fmt.Errorf("unsupported codec %q (supported: wav, mp3)", c)
}

// ParseCodec validates a codec name from flags or config.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	if _, err := c.encoderArgs(); err != nil {
		return "", err
	}
	return c, nil
}

// OutputPath returns the sibling path the extractor writes for videoPath.
func OutputPath(videoPath string, codec Codec) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "." + string(codec)
}

// partialSeq keeps partial output names unique within the process.
var partialSeq atomic.Uint64

// partialPath returns a unique sibling of out that keeps its extension,
// so ffmpeg still infers the container from it.
func partialPath(out string) string {
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s.partial-%d-%d%s",
		strings.TrimSuffix(out, ext), os.Getpid(), partialSeq.Add(1), ext)
}

// Extractor pulls an audio track out of a video file with ffmpeg.
type Extractor struct {
	tc      ffmpeg.Toolchain
	timeout time.Duration
	logger  *slog.Logger

	// Injectable dependencies (defaults to OS implementations).
	run     commandRunner
	files   fileStatter
	remover fileRemover
	linker  fileLinker
	check   func() error
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorRunner sets the command runner (for testing).
func WithExtractorRunner(r commandRunner) ExtractorOption {
	return func(e *Extractor) { e.run = r }
}

// WithExtractorFiles sets the filesystem dependencies (for testing).
func WithExtractorFiles(s fileStatter, r fileRemover, l fileLinker) ExtractorOption {
	return func(e *Extractor) {
		e.files = s
		e.remover = r
		e.linker = l
	}
}

// WithToolchainCheck replaces the toolchain presence check (for testing).
func WithToolchainCheck(fn func() error) ExtractorOption {
	return func(e *Extractor) { e.check = fn }
}

// WithExtractTimeout bounds a single ffmpeg invocation.
func WithExtractTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExtractorLogger sets the structured logger.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an Extractor bound to a resolved toolchain.
func NewExtractor(tc ffmpeg.Toolchain, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		tc:      tc,
		timeout: DefaultExtractTimeout,
		logger:  slog.Default().With("component", "audio"),
		run:     ffmpeg.NewExecutor(),
		files:   osFileStatter{},
		remover: osFileRemover{},
		linker:  osFileLinker{},
		check:   tc.Check,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes the audio track of videoPath next to it, with the codec's
// extension, and returns the new path. The input is never modified and an
// existing file at the output path is never replaced: ffmpeg writes a unique
// partial sibling which is linked into place only when it is complete.
// On any failure only that partial file is removed.
func (e *Extractor) Extract(ctx context.Context, videoPath string, opts ExtractOptions) (string, error) {
	if err := e.check(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionUnavailable, err)
	}

	opts = opts.withDefaults()
	encoder, err := opts.Codec.encoderArgs()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	if _, err := e.files.Stat(videoPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %w: %s", ErrExtractionFailed, ErrFileNotFound, videoPath)
		}
		return "", fmt.Errorf("%w: stat %s: %w", ErrExtractionFailed, videoPath, err)
	}

	out := OutputPath(videoPath, opts.Codec)
	if sameFile(out, videoPath) {
		return "", fmt.Errorf("%w: output would overwrite input %s", ErrExtractionFailed, videoPath)
	}
	if _, err := e.files.Stat(out); err == nil {
		return "", fmt.Errorf("%w: %w: %s", ErrExtractionFailed, ErrOutputExists, out)
	}

	partial := partialPath(out)
	args := []string{
		"-n", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(opts.Channels),
		"-ar", strconv.Itoa(opts.SampleRate),
	}
	args = append(args, encoder...)
	args = append(args, partial)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.run.Run(runCtx, e.tc.FFmpeg, args)
	if err != nil {
		e.removePartial(partial)
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w: after %v", ffmpeg.ErrTimeout, e.timeout)
		}
		return "", fmt.Errorf("%w: %s: %w\nOutput: %s", ErrExtractionFailed, videoPath, err, strings.TrimSpace(res.Stderr))
	}

	info, err := e.files.Stat(partial)
	if err != nil || info.Size() == 0 {
		e.removePartial(partial)
		return "", fmt.Errorf("%w: ffmpeg produced no audio at %s", ErrExtractionFailed, partial)
	}

	// Link fails when out appeared meanwhile, which Rename would clobber.
	if err := e.linker.Link(partial, out); err != nil {
		e.removePartial(partial)
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %w: %s", ErrExtractionFailed, ErrOutputExists, out)
		}
		return "", fmt.Errorf("%w: move %s into place: %w", ErrExtractionFailed, out, err)
	}
	e.removePartial(partial)

	e.logger.Debug("audio extracted",
		"input", videoPath, "output", out, "bytes", info.Size(), "elapsed", time.Since(start))
	return out, nil
}

// removePartial deletes the partial output. Errors are logged, never
// returned, so they cannot mask the extraction failure.
func (e *Extractor) removePartial(path string) {
	if err := e.remover.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("remove partial audio", "path", path, "error", err)
	}
}
