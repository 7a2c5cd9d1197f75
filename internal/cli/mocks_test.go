package cli

import (
	"context"
	"sync"
	"time"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/ffmpeg"
	"github.com/alnah/go-vidindex/internal/pipeline"
	"github.com/alnah/go-vidindex/internal/store"
	"github.com/alnah/go-vidindex/internal/transcribe"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// ---------------------------------------------------------------------------
// Mock ToolchainResolver
// ---------------------------------------------------------------------------

type mockToolchainResolver struct {
	ResolveFunc func() (ffmpeg.Toolchain, error)

	mu           sync.Mutex
	resolveCalls int
}

func (m *mockToolchainResolver) Resolve() (ffmpeg.Toolchain, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc()
	}
	return ffmpeg.Toolchain{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"}, nil
}

func (m *mockToolchainResolver) CheckVersion(context.Context, string) {}

func (m *mockToolchainResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{Cache: config.CacheNone}, nil
}

// ---------------------------------------------------------------------------
// Mock AudioFactory + Extractor + Splitter
// ---------------------------------------------------------------------------

type mockAudioFactory struct {
	ExtractFunc func(ctx context.Context, videoPath string, opts audio.ExtractOptions) (string, error)
	SplitFunc   func(ctx context.Context, audioPath string, maxSizeMB float64) ([]audio.Chunk, error)

	mu           sync.Mutex
	extractCalls []string
	splitCalls   []float64
	timeouts     []time.Duration
}

func (m *mockAudioFactory) NewExtractor(_ ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioExtractor {
	m.mu.Lock()
	m.timeouts = append(m.timeouts, timeout)
	m.mu.Unlock()
	return mockExtractor{m}
}

func (m *mockAudioFactory) NewSplitter(_ ffmpeg.Toolchain, timeout time.Duration) pipeline.AudioSplitter {
	m.mu.Lock()
	m.timeouts = append(m.timeouts, timeout)
	m.mu.Unlock()
	return mockSplitter{m}
}

func (m *mockAudioFactory) ExtractCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extractCalls...)
}

func (m *mockAudioFactory) SplitCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.splitCalls...)
}

type mockExtractor struct{ f *mockAudioFactory }

func (e mockExtractor) Extract(ctx context.Context, videoPath string, opts audio.ExtractOptions) (string, error) {
	e.f.mu.Lock()
	e.f.extractCalls = append(e.f.extractCalls, videoPath)
	e.f.mu.Unlock()

	if e.f.ExtractFunc != nil {
		return e.f.ExtractFunc(ctx, videoPath, opts)
	}
	return audio.OutputPath(videoPath, opts.Codec), nil
}

type mockSplitter struct{ f *mockAudioFactory }

func (s mockSplitter) Split(ctx context.Context, audioPath string, maxSizeMB float64) ([]audio.Chunk, error) {
	s.f.mu.Lock()
	s.f.splitCalls = append(s.f.splitCalls, maxSizeMB)
	s.f.mu.Unlock()

	if s.f.SplitFunc != nil {
		return s.f.SplitFunc(ctx, audioPath, maxSizeMB)
	}
	return []audio.Chunk{{Path: audioPath, Index: 0, Start: 0, Duration: 60, Size: 1024}}, nil
}

// ---------------------------------------------------------------------------
// Mock TranscriberFactory + Transcriber
// ---------------------------------------------------------------------------

type mockTranscriberFactory struct {
	TranscribeFunc func(ctx context.Context, chunk audio.Chunk, opts transcribe.Options) (transcript.Transcript, error)

	mu      sync.Mutex
	apiKeys []string
	calls   []transcribe.Options
}

func (m *mockTranscriberFactory) NewTranscriber(apiKey string) transcribe.Transcriber {
	m.mu.Lock()
	m.apiKeys = append(m.apiKeys, apiKey)
	m.mu.Unlock()
	return mockTranscriber{m}
}

func (m *mockTranscriberFactory) APIKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.apiKeys...)
}

func (m *mockTranscriberFactory) Calls() []transcribe.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transcribe.Options(nil), m.calls...)
}

type mockTranscriber struct{ f *mockTranscriberFactory }

func (t mockTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk, opts transcribe.Options) (transcript.Transcript, error) {
	t.f.mu.Lock()
	t.f.calls = append(t.f.calls, opts)
	t.f.mu.Unlock()

	if t.f.TranscribeFunc != nil {
		return t.f.TranscribeFunc(ctx, chunk, opts)
	}
	return sampleTranscript(40), nil
}

// ---------------------------------------------------------------------------
// Mock EmbedderFactory + Embedder
// ---------------------------------------------------------------------------

type mockEmbedderFactory struct {
	EmbedFunc     func(ctx context.Context, model string, texts []string) ([][]float32, error)
	CompatibleErr error

	mu         sync.Mutex
	openAIKeys []string
	compatible []compatibleCall
	embedCalls int
}

type compatibleCall struct {
	Host, Model, Token string
}

func (m *mockEmbedderFactory) NewOpenAI(apiKey string) embed.Embedder {
	m.mu.Lock()
	m.openAIKeys = append(m.openAIKeys, apiKey)
	m.mu.Unlock()
	return mockEmbedder{m}
}

func (m *mockEmbedderFactory) NewCompatible(host, model, token string) (embed.Embedder, error) {
	m.mu.Lock()
	m.compatible = append(m.compatible, compatibleCall{host, model, token})
	m.mu.Unlock()
	if m.CompatibleErr != nil {
		return nil, m.CompatibleErr
	}
	return mockEmbedder{m}, nil
}

func (m *mockEmbedderFactory) OpenAIKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.openAIKeys...)
}

func (m *mockEmbedderFactory) CompatibleCalls() []compatibleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]compatibleCall(nil), m.compatible...)
}

func (m *mockEmbedderFactory) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

type mockEmbedder struct{ f *mockEmbedderFactory }

func (e mockEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	e.f.mu.Lock()
	e.f.embedCalls++
	e.f.mu.Unlock()

	if e.f.EmbedFunc != nil {
		return e.f.EmbedFunc(ctx, model, texts)
	}
	return vectors(len(texts)), nil
}

// vectors returns n vectors of testDimensions.
func vectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 0.5, 1}
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock CacheFactory
// ---------------------------------------------------------------------------

type mockCacheFactory struct {
	OpenErr error

	mu     sync.Mutex
	opened []string
	closed int
}

func (m *mockCacheFactory) Open(_ context.Context, cfg config.Config) (embed.Cache, func() error, error) {
	m.mu.Lock()
	m.opened = append(m.opened, cfg.Cache)
	m.mu.Unlock()

	closeFn := func() error {
		m.mu.Lock()
		m.closed++
		m.mu.Unlock()
		return nil
	}
	if m.OpenErr != nil {
		return nil, func() error { return nil }, m.OpenErr
	}
	return nil, closeFn, nil
}

func (m *mockCacheFactory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ---------------------------------------------------------------------------
// Mock StoreFactory + Store
// ---------------------------------------------------------------------------

type mockStoreFactory struct {
	OpenErr error
	store   *mockStore

	mu    sync.Mutex
	paths []string
}

func (m *mockStoreFactory) Open(path string) (Store, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	if m.store == nil {
		m.store = &mockStore{}
	}
	s := m.store
	m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return s, nil
}

func (m *mockStoreFactory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

type mockStore struct {
	VideoFunc      func(ctx context.Context, id string) (store.Video, error)
	LoadChunksFunc func(ctx context.Context, videoID, model string) ([]store.StoredChunk, error)

	mu       sync.Mutex
	statuses []store.Video
	runs     []store.Run
	closed   bool
}

func (s *mockStore) SetStatus(_ context.Context, v store.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, v)
	return nil
}

func (s *mockStore) SaveRun(_ context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func (s *mockStore) Video(ctx context.Context, id string) (store.Video, error) {
	if s.VideoFunc != nil {
		return s.VideoFunc(ctx, id)
	}
	return store.Video{}, store.ErrNotFound
}

func (s *mockStore) LoadChunks(ctx context.Context, videoID, model string) ([]store.StoredChunk, error) {
	if s.LoadChunksFunc != nil {
		return s.LoadChunksFunc(ctx, videoID, model)
	}
	return nil, nil
}

func (s *mockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockStore) Runs() []store.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Run(nil), s.runs...)
}

func (s *mockStore) Statuses() []store.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Video(nil), s.statuses...)
}

func (s *mockStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Compile-time interface verification.
var (
	_ ToolchainResolver  = (*mockToolchainResolver)(nil)
	_ ConfigLoader       = (*mockConfigLoader)(nil)
	_ AudioFactory       = (*mockAudioFactory)(nil)
	_ TranscriberFactory = (*mockTranscriberFactory)(nil)
	_ EmbedderFactory    = (*mockEmbedderFactory)(nil)
	_ CacheFactory       = (*mockCacheFactory)(nil)
	_ StoreFactory       = (*mockStoreFactory)(nil)
	_ Store              = (*mockStore)(nil)
)
