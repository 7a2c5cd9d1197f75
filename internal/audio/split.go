package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

// Split defaults. 25 MB is the upload limit of the transcription API.
const (
	DefaultMaxSizeMB    = 25.0
	bytesPerMB          = 1024 * 1024
	DefaultSplitTimeout = 10 * time.Minute
)

// Splitter cuts audio into segments small enough for upload.
//
// Segments have equal duration, which assumes a roughly constant bitrate.
// Per-segment byte compliance is therefore not guaranteed; oversize
// segments are reported as warnings.
type Splitter struct {
	tc      ffmpeg.Toolchain
	timeout time.Duration
	logger  *slog.Logger
	probe   *Prober

	// Injectable dependencies (defaults to OS implementations).
	run     commandRunner
	tempDir tempDirCreator
	files   fileStatter
	remover fileRemover
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSplitterRunner sets the command runner used for ffmpeg and ffprobe.
func WithSplitterRunner(r commandRunner) SplitterOption {
	return func(s *Splitter) { s.run = r }
}

// WithSplitterTempDir sets the temp directory creator.
func WithSplitterTempDir(t tempDirCreator) SplitterOption {
	return func(s *Splitter) { s.tempDir = t }
}

// WithSplitterFiles sets the filesystem dependencies.
func WithSplitterFiles(st fileStatter, r fileRemover) SplitterOption {
	return func(s *Splitter) {
		s.files = st
		s.remover = r
	}
}

// WithSplitTimeout bounds each ffmpeg segment extraction.
func WithSplitTimeout(d time.Duration) SplitterOption {
	return func(s *Splitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSplitterLogger sets the structured logger.
func WithSplitterLogger(l *slog.Logger) SplitterOption {
	return func(s *Splitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSplitter creates a Splitter bound to a resolved toolchain.
func NewSplitter(tc ffmpeg.Toolchain, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		tc:      tc,
		timeout: DefaultSplitTimeout,
		logger:  slog.Default().With("component", "audio"),
		run:     ffmpeg.NewExecutor(),
		tempDir: osTempDirCreator{},
		files:   osFileStatter{},
		remover: osFileRemover{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.probe = NewProber(tc.FFprobe, WithProberRunner(s.run))
	return s
}

// Split returns ordered chunks covering audioPath with no gaps or overlaps.
// A file within maxSizeMB comes back as a single chunk pointing at the
// original. maxSizeMB <= 0 selects DefaultMaxSizeMB.
//
// Chunk files live in a fresh temp directory; release them with Cleanup.
// If any segment fails, everything created by this call is removed and the
// error wraps ErrSplitFailed.
func (s *Splitter) Split(ctx context.Context, audioPath string, maxSizeMB float64) ([]Chunk, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	limit := int64(maxSizeMB * bytesPerMB)

	info, err := s.files.Stat(audioPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", ErrSplitFailed, ErrFileNotFound, audioPath)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrSplitFailed, audioPath, err)
	}

	total, err := s.probe.Duration(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	if info.Size() <= limit {
		return []Chunk{{Path: audioPath, Index: 0, Start: 0, Duration: total, Size: info.Size()}}, nil
	}

	count := int(math.Ceil(float64(info.Size()) / float64(limit)))
	step := total / float64(count)

	dir, err := s.tempDir.MkdirTemp("", splitDirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp directory: %w", ErrSplitFailed, err)
	}

	s.logger.Debug("splitting audio",
		"path", audioPath, "bytes", info.Size(), "limit", limit, "chunks", count, "chunk_seconds", step)

	ext := filepath.Ext(audioPath)
	chunks := make([]Chunk, 0, count)
	for i := range count {
		if err := ctx.Err(); err != nil {
			s.abort(dir)
			return nil, fmt.Errorf("%w: %w", ErrSplitFailed, err)
		}

		start := float64(i) * step
		last := i == count-1
		nominal := step
		if last {
			nominal = total - start
		}

		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d%s", i, ext))
		c, err := s.extractSegment(ctx, audioPath, path, i, start, nominal, last)
		if err != nil {
			s.abort(dir)
			return nil, err
		}
		if c.Size > limit {
			s.logger.Warn("chunk exceeds size limit",
				"index", i, "bytes", c.Size, "limit", limit)
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// extractSegment stream-copies [start, start+dur) into path. The last
// segment has no -t so it always reaches the end of the source.
func (s *Splitter) extractSegment(ctx context.Context, src, path string, index int, start, dur float64, last bool) (Chunk, error) {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(start),
		"-i", src,
	}
	if !last {
		args = append(args, "-t", formatSeconds(dur))
	}
	args = append(args, "-vn", "-c", "copy", path)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.run.Run(runCtx, s.tc.FFmpeg, args)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w: after %v", ffmpeg.ErrTimeout, s.timeout)
		}
		return Chunk{}, fmt.Errorf("%w: chunk %d: %w\nOutput: %s", ErrSplitFailed, index, err, strings.TrimSpace(res.Stderr))
	}

	info, err := s.files.Stat(path)
	if err != nil || info.Size() == 0 {
		return Chunk{}, fmt.Errorf("%w: chunk %d not written to %s", ErrSplitFailed, index, path)
	}

	probed, err := s.probe.Duration(ctx, path)
	if err != nil {
		s.logger.Warn("chunk duration probe failed, using nominal duration",
			"index", index, "nominal", dur, "error", err)
		probed = dur
	}

	return Chunk{Path: path, Index: index, Start: start, Duration: probed, Size: info.Size()}, nil
}

// abort removes every file of a failed split. Cleanup errors are logged
// and never replace the split error.
func (s *Splitter) abort(dir string) {
	if err := s.remover.RemoveAll(dir); err != nil {
		s.logger.Warn("remove partial split", "dir", dir, "error", err)
	}
}

// formatSeconds renders an ffmpeg time argument with millisecond precision.
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
