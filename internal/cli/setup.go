package cli

import (
	"context"
	"fmt"

	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

// settings is the configuration a command runs with.
type settings struct {
	cfg config.Config
	tun config.Tunables
}

// loadSettings reads the config file and the tunables file. The embedding
// model comes from, in order: the model flag, the tunables file, the config.
func loadSettings(env *Env, tunablesPath, model string) (settings, error) {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return settings{}, err
	}
	tun, err := config.LoadTunables(tunablesPath)
	if err != nil {
		return settings{}, err
	}
	if tunablesPath == "" {
		tun = tun.WithModel(cfg.EmbeddingModel)
	}
	return settings{cfg: cfg, tun: tun.WithModel(model)}, nil
}

// resolveToolchain locates ffmpeg and ffprobe and warns about old versions.
func resolveToolchain(ctx context.Context, env *Env) (ffmpeg.Toolchain, error) {
	tc, err := env.ToolchainResolver.Resolve()
	if err != nil {
		return ffmpeg.Toolchain{}, err
	}
	env.ToolchainResolver.CheckVersion(ctx, tc.FFmpeg)
	return tc, nil
}

// newEmbedder picks the provider from the flag or the config.
func newEmbedder(env *Env, s settings, providerName string) (embed.Embedder, error) {
	p, err := ParseProvider(providerName)
	if err != nil {
		return nil, err
	}
	p = p.OrDefault(s.cfg.EmbeddingHost)

	if p.IsCompatible() {
		if s.cfg.EmbeddingHost == "" {
			return nil, fmt.Errorf("%w: provider %s requires %s", config.ErrInvalidValue, p, config.KeyEmbeddingHost)
		}
		return env.EmbedderFactory.NewCompatible(s.cfg.EmbeddingHost, s.tun.Embedding.Model.ID, env.Getenv(EnvEmbeddingToken))
	}

	apiKey := env.Getenv(EnvOpenAIAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}
	return env.EmbedderFactory.NewOpenAI(apiKey), nil
}

// newBatcher wires the embedder and the configured cache. release frees
// the worker pool and closes the cache.
func newBatcher(ctx context.Context, env *Env, s settings, providerName string) (b *embed.Batcher, release func(), err error) {
	e, err := newEmbedder(env, s, providerName)
	if err != nil {
		return nil, nil, err
	}

	c, closeCache, err := env.CacheFactory.Open(ctx, s.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s cache: %w", s.cfg.Cache, err)
	}

	b, err = embed.NewBatcher(e, c, embed.WithLogger(env.Logger))
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}
	release = func() {
		b.Release()
		if err := closeCache(); err != nil {
			env.Logger.Warn("close cache", "error", err)
		}
	}
	return b, release, nil
}
