// Package ffmpeg locates the ffmpeg/ffprobe toolchain and runs it.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables overriding toolchain lookup.
const (
	EnvFFmpegPath  = "FFMPEG_PATH"
	EnvFFprobePath = "FFPROBE_PATH"
)

// minFFmpegMajorVersion is the oldest release known to handle stream copy
// with -ss before -i accurately.
const minFFmpegMajorVersion = 4

// Toolchain holds the absolute paths of the binaries the pipeline shells out to.
type Toolchain struct {
	FFmpeg  string
	FFprobe string
}

// Check reports whether both binaries are configured and present on disk.
func (t Toolchain) Check() error {
	return t.check(osFileStatter{})
}

func (t Toolchain) check(fs fileStatter) error {
	for _, bin := range []struct{ name, path string }{
		{"ffmpeg", t.FFmpeg},
		{"ffprobe", t.FFprobe},
	} {
		if bin.path == "" {
			return fmt.Errorf("%w: %s path is empty", ErrNotFound, bin.name)
		}
		if _, err := fs.Stat(bin.path); err != nil {
			return fmt.Errorf("%w: %s at %q: %v", ErrNotFound, bin.name, bin.path, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolver - testable toolchain resolution with dependency injection
// ---------------------------------------------------------------------------

// Resolver finds ffmpeg and ffprobe.
type Resolver struct {
	env    envProvider
	files  fileStatter
	stderr io.Writer
	goos   string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithFileStatter sets the filesystem probe.
func WithFileStatter(f fileStatter) ResolverOption {
	return func(r *Resolver) { r.files = f }
}

// WithStderr sets the writer for install instructions.
func WithStderr(w io.Writer) ResolverOption {
	return func(r *Resolver) { r.stderr = w }
}

// WithPlatform sets the target OS (for testing binary naming).
func WithPlatform(goos string) ResolverOption {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:    osEnvProvider{},
		files:  osFileStatter{},
		stderr: os.Stderr,
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds both binaries using the following precedence for each:
//  1. FFMPEG_PATH / FFPROBE_PATH (error if set but missing)
//  2. ffprobe only: sibling of the resolved ffmpeg
//  3. System PATH
func (r *Resolver) Resolve() (Toolchain, error) {
	ffmpegPath, err := r.lookup(EnvFFmpegPath, "ffmpeg", "")
	if err != nil {
		return Toolchain{}, err
	}
	ffprobePath, err := r.lookup(EnvFFprobePath, "ffprobe", filepath.Dir(ffmpegPath))
	if err != nil {
		return Toolchain{}, err
	}
	return Toolchain{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

func (r *Resolver) lookup(envKey, name, siblingDir string) (string, error) {
	if envPath := r.env.Getenv(envKey); envPath != "" {
		if _, err := r.files.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found", ErrNotFound, envKey, envPath)
		}
		return envPath, nil
	}

	bin := name
	if r.goos == "windows" {
		bin += ".exe"
	}

	if siblingDir != "" && siblingDir != "." {
		candidate := filepath.Join(siblingDir, bin)
		if _, err := r.files.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := r.env.LookPath(bin); err == nil {
		return path, nil
	}

	fmt.Fprintln(r.stderr, r.manualInstallInstructions())
	return "", fmt.Errorf("%w: %s not in PATH (set %s)", ErrNotFound, name, envKey)
}

// manualInstallInstructions returns platform-specific instructions.
func (r *Resolver) manualInstallInstructions() string {
	switch r.goos {
	case "darwin":
		return `To install FFmpeg (includes ffprobe):
  brew install ffmpeg

Or set FFMPEG_PATH and FFPROBE_PATH to your binaries.`
	case "linux":
		return `To install FFmpeg (includes ffprobe):
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

Or set FFMPEG_PATH and FFPROBE_PATH to your binaries.`
	case "windows":
		return `To install FFmpeg (includes ffprobe):
  winget install ffmpeg

Or set FFMPEG_PATH and FFPROBE_PATH to your .exe files.`
	default:
		return `Download FFmpeg from https://ffmpeg.org/download.html
Or set FFMPEG_PATH and FFPROBE_PATH to your binaries.`
	}
}

// ---------------------------------------------------------------------------
// VersionChecker
// ---------------------------------------------------------------------------

// VersionChecker warns when ffmpeg is older than the supported minimum.
type VersionChecker struct {
	executor *Executor
	logger   *slog.Logger
}

// VersionCheckerOption configures a VersionChecker.
type VersionCheckerOption func(*VersionChecker)

// WithVersionExecutor sets the executor for running ffmpeg.
func WithVersionExecutor(e *Executor) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.executor = e }
}

// WithVersionLogger sets the logger receiving the warning.
func WithVersionLogger(l *slog.Logger) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.logger = l }
}

// NewVersionChecker creates a VersionChecker with the given options.
func NewVersionChecker(opts ...VersionCheckerOption) *VersionChecker {
	vc := &VersionChecker{
		executor: NewExecutor(),
		logger:   slog.Default().With("component", "ffmpeg"),
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// Check parses `ffmpeg -version` and logs a warning below the minimum.
// It returns the detected major version, or 0 when it cannot be parsed.
// A failed check never blocks the pipeline.
func (vc *VersionChecker) Check(ctx context.Context, ffmpegPath string) int {
	out, err := vc.executor.Run(ctx, ffmpegPath, []string{"-version"})
	if err != nil && out.Stdout == "" {
		return 0
	}

	first, _, _ := strings.Cut(out.Stdout, "\n")
	major := parseMajorVersion(first)
	if major == 0 {
		return 0
	}
	if major < minFFmpegMajorVersion {
		vc.logger.Warn("ffmpeg is older than recommended",
			"version", major, "minimum", minFFmpegMajorVersion)
	}
	return major
}

// parseMajorVersion reads lines like "ffmpeg version 6.1.1 Copyright..." or
// "ffmpeg version n6.1.1-...".
func parseMajorVersion(line string) int {
	var major int
	if _, err := fmt.Sscanf(line, "ffmpeg version %d", &major); err == nil {
		return major
	}
	if _, err := fmt.Sscanf(line, "ffmpeg version n%d", &major); err == nil {
		return major
	}
	return 0
}
