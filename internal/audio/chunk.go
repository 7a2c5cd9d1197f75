package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-vidindex/internal/format"
)

// splitDirPrefix names the temp directories created by Splitter.
// Cleanup only removes whole directories carrying it.
const splitDirPrefix = "vidindex-split-"

// Chunk is one transcription-sized piece of an audio file.
// A single-chunk split wraps the source file itself.
type Chunk struct {
	Path     string
	Index    int     // zero-based, dense
	Start    float64 // seconds into the source audio
	Duration float64 // seconds
	Size     int64   // bytes
}

// End returns the chunk's end offset in the source audio.
func (c Chunk) End() float64 {
	return c.Start + c.Duration
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s (%s)",
		c.Index,
		format.Seconds(c.Start),
		format.Seconds(c.End()),
		format.Size(c.Size))
}

// Cleanup removes the files produced by a split. The source path is never
// touched, so the single-chunk result of a small file is safe to pass in.
func Cleanup(chunks []Chunk, source string) error {
	return cleanupChunks(osFileRemover{}, slog.Default().With("component", "audio"), chunks, source)
}

func cleanupChunks(files fileRemover, logger *slog.Logger, chunks []Chunk, source string) error {
	var errs []error
	dirs := make(map[string]struct{})
	for _, c := range chunks {
		if c.Path == "" || sameFile(c.Path, source) {
			continue
		}
		if err := files.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("remove chunk", "path", c.Path, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", c.Path, err))
		}
		dirs[filepath.Dir(c.Path)] = struct{}{}
	}
	for dir := range dirs {
		// Never delete arbitrary directories.
		if !strings.HasPrefix(filepath.Base(dir), splitDirPrefix) {
			continue
		}
		if err := files.RemoveAll(dir); err != nil {
			logger.Warn("remove split directory", "dir", dir, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

func sameFile(a, b string) bool {
	if b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
