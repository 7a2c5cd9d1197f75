package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/embed/cache"
	"github.com/alnah/go-vidindex/internal/embed/provider"
	"github.com/alnah/go-vidindex/internal/ffmpeg"
	"github.com/alnah/go-vidindex/internal/pipeline"
	"github.com/alnah/go-vidindex/internal/store"
	"github.com/alnah/go-vidindex/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Logger *slog.Logger

	// Factories for domain objects
	ToolchainResolver  ToolchainResolver
	ConfigLoader       ConfigLoader
	AudioFactory       AudioFactory
	TranscriberFactory TranscriberFactory
	EmbedderFactory    EmbedderFactory
	CacheFactory       CacheFactory
	StoreFactory       StoreFactory
}

// ToolchainResolver locates ffmpeg and ffprobe.
type ToolchainResolver interface {
	Resolve() (ffmpeg.Toolchain, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// AudioFactory builds the audio stages for a resolved toolchain.
type AudioFactory interface {
	NewExtractor(tc ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioExtractor
	NewSplitter(tc ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioSplitter
}

// TranscriberFactory creates transcribers for audio-to-text conversion.
type TranscriberFactory interface {
	NewTranscriber(apiKey string) transcribe.Transcriber
}

// EmbedderFactory creates embedding providers.
type EmbedderFactory interface {
	NewOpenAI(apiKey string) embed.Embedder
	NewCompatible(host, model, token string) (embed.Embedder, error)
}

// CacheFactory opens the configured embedding cache. The returned close
// function is never nil.
type CacheFactory interface {
	Open(ctx context.Context, cfg config.Config) (embed.Cache, func() error, error)
}

// Store is what commands need from persistence.
type Store interface {
	pipeline.Store
	Video(ctx context.Context, id string) (store.Video, error)
	LoadChunks(ctx context.Context, videoID, model string) ([]store.StoredChunk, error)
	Close() error
}

// StoreFactory opens the run database.
type StoreFactory interface {
	Open(path string) (Store, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithLogger sets the structured logger handed to domain packages.
func WithLogger(l *slog.Logger) EnvOption {
	return func(e *Env) {
		e.Logger = l
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		Getenv:             os.Getenv,
		Logger:             slog.Default(),
		ToolchainResolver:  &defaultToolchainResolver{},
		ConfigLoader:       &defaultConfigLoader{},
		AudioFactory:       &defaultAudioFactory{},
		TranscriberFactory: &defaultTranscriberFactory{},
		EmbedderFactory:    &defaultEmbedderFactory{},
		CacheFactory:       &defaultCacheFactory{},
		StoreFactory:       &defaultStoreFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultToolchainResolver struct{}

func (defaultToolchainResolver) Resolve() (ffmpeg.Toolchain, error) {
	return ffmpeg.NewResolver().Resolve()
}

func (defaultToolchainResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.NewVersionChecker().Check(ctx, ffmpegPath)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

type defaultAudioFactory struct{}

func (defaultAudioFactory) NewExtractor(tc ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioExtractor {
	return audio.NewExtractor(tc, audio.WithExtractTimeout(timeout))
}

func (defaultAudioFactory) NewSplitter(tc ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioSplitter {
	return audio.NewSplitter(tc, audio.WithSplitTimeout(timeout))
}

type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewTranscriber(apiKey string) transcribe.Transcriber {
	return transcribe.NewOpenAITranscriber(openai.NewClient(apiKey))
}

type defaultEmbedderFactory struct{}

func (defaultEmbedderFactory) NewOpenAI(apiKey string) embed.Embedder {
	return provider.NewOpenAI(apiKey)
}

func (defaultEmbedderFactory) NewCompatible(host, model, token string) (embed.Embedder, error) {
	return provider.NewCompatible(host, model, token)
}

type defaultCacheFactory struct{}

func (defaultCacheFactory) Open(ctx context.Context, cfg config.Config) (embed.Cache, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Cache {
	case config.CacheNone:
		return nil, noop, nil
	case config.CacheMemory:
		return cache.NewMemory(), noop, nil
	case config.CacheBadger:
		c, err := cache.OpenBadger(cfg.CacheDir)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case config.CacheRedis:
		if cfg.RedisAddr == "" {
			return nil, noop, fmt.Errorf("%w: cache=redis requires %s", config.ErrInvalidValue, config.KeyRedisAddr)
		}
		c, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	}
	return nil, noop, config.ValidateValue(config.KeyCache, cfg.Cache)
}

type defaultStoreFactory struct{}

func (defaultStoreFactory) Open(path string) (Store, error) {
	return store.OpenSQLite(path)
}

// Compile-time interface verification.
var (
	_ ToolchainResolver  = (*defaultToolchainResolver)(nil)
	_ ConfigLoader       = (*defaultConfigLoader)(nil)
	_ AudioFactory       = (*defaultAudioFactory)(nil)
	_ TranscriberFactory = (*defaultTranscriberFactory)(nil)
	_ EmbedderFactory    = (*defaultEmbedderFactory)(nil)
	_ CacheFactory       = (*defaultCacheFactory)(nil)
	_ StoreFactory       = (*defaultStoreFactory)(nil)
)
