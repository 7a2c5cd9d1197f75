package audio

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

// defaultProbeTimeout bounds a single ffprobe invocation.
const defaultProbeTimeout = 2 * time.Minute

// Prober reads media durations with ffprobe.
type Prober struct {
	ffprobe string
	run     commandRunner
	timeout time.Duration
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProberRunner sets the command runner (for testing).
func WithProberRunner(r commandRunner) ProberOption {
	return func(p *Prober) { p.run = r }
}

// NewProber creates a Prober calling the given ffprobe binary.
func NewProber(ffprobePath string, opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobe: ffprobePath,
		run:     ffmpeg.NewExecutor(),
		timeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Duration returns the container duration of path in seconds.
// A missing, unparsable, or non-positive value is ErrDurationProbeFailed.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	out, err := p.run.Run(ctx, p.ffprobe, args)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w (%s)", ErrDurationProbeFailed, path, err, strings.TrimSpace(out.Stderr))
	}
	d, err := parseDuration(out.Stdout)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrDurationProbeFailed, path, err)
	}
	return d, nil
}

// parseDuration reads ffprobe's bare duration line, e.g. "5423.120000".
func parseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if line, _, ok := strings.Cut(s, "\n"); ok {
		s = strings.TrimSpace(line)
	}
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
