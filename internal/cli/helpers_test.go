package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	toolchain   *mockToolchainResolver
	config      *mockConfigLoader
	audio       *mockAudioFactory
	transcriber *mockTranscriberFactory
	embedder    *mockEmbedderFactory
	cache       *mockCacheFactory
	store       *mockStoreFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		toolchain:   &mockToolchainResolver{},
		config:      &mockConfigLoader{},
		audio:       &mockAudioFactory{},
		transcriber: &mockTranscriberFactory{},
		embedder:    &mockEmbedderFactory{},
		cache:       &mockCacheFactory{},
		store:       &mockStoreFactory{},
	}
}

// testEnv creates an Env with every dependency mocked and the given
// environment variables. Stdout and Stderr are *syncBuffer.
func testEnv(vars map[string]string) (*Env, *testMocks) {
	m := newTestMocks()
	env := &Env{
		Stdout:             &syncBuffer{},
		Stderr:             &syncBuffer{},
		Getenv:             func(k string) string { return vars[k] },
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		ToolchainResolver:  m.toolchain,
		ConfigLoader:       m.config,
		AudioFactory:       m.audio,
		TranscriberFactory: m.transcriber,
		EmbedderFactory:    m.embedder,
		CacheFactory:       m.cache,
		StoreFactory:       m.store,
	}
	return env, m
}

// withConfig makes the mocked loader return cfg.
func (m *testMocks) withConfig(cfg config.Config) {
	m.config.LoadFunc = func() (config.Config, error) { return cfg, nil }
}

func stdout(env *Env) string { return env.Stdout.(*syncBuffer).String() }
func stderr(env *Env) string { return env.Stderr.(*syncBuffer).String() }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// execute runs cmd with args the way main does.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd.ExecuteContext(context.Background())
}

// writeFile creates a file under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// testTunables are small enough for short transcripts and embed in
// batches of two with three-dimensional vectors.
const testTunables = `chunk:
  target_words: 20
  min_words: 15
  max_words: 30
  overlap_words: 5
embedding:
  model:
    id: test-embed
    dimensions: 3
    cost_per_1k_tokens: 0.01
  batch_size: 2
  batch_delay: 1ms
`

func writeTunables(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "tunables.yaml", testTunables)
}

// testChunkOptions mirrors the chunk section of testTunables.
var testChunkOptions = chunk.Options{TargetWords: 20, MinWords: 15, MaxWords: 30, OverlapWords: 5}

// sampleTranscript returns an English transcript of n words, one second
// per word, ten words per segment.
func sampleTranscript(n int) transcript.Transcript {
	t := transcript.Transcript{Language: "en", Duration: float64(n)}
	var text []string
	for start := 0; start < n; start += 10 {
		seg := transcript.Segment{ID: len(t.Segments), Start: float64(start)}
		var words []string
		for i := start; i < min(start+10, n); i++ {
			w := fmt.Sprintf("word%d", i)
			if i%10 == 9 {
				w += "."
			}
			words = append(words, w)
			seg.Words = append(seg.Words, transcript.Word{Text: w, Start: float64(i), End: float64(i) + 0.9})
		}
		seg.End = float64(min(start+10, n))
		seg.Text = strings.Join(words, " ")
		text = append(text, seg.Text)
		t.Segments = append(t.Segments, seg)
	}
	t.Text = strings.Join(text, " ")
	return t
}

func writeTranscript(t *testing.T, dir, name string, tr transcript.Transcript) string {
	t.Helper()
	var b bytes.Buffer
	if err := transcript.Encode(&b, tr); err != nil {
		t.Fatalf("encode transcript: %v", err)
	}
	return writeFile(t, dir, name, b.String())
}

func writeChunkDocument(t *testing.T, dir, name string, chunks []chunk.TextChunk) string {
	t.Helper()
	var b bytes.Buffer
	doc := chunk.Document{Source: "talk.mp4", Language: "en", Options: testChunkOptions, Chunks: chunks}
	if err := chunk.WriteDocument(&b, doc); err != nil {
		t.Fatalf("encode chunks: %v", err)
	}
	return writeFile(t, dir, name, b.String())
}

// textChunks returns n distinct chunks.
func textChunks(n int) []chunk.TextChunk {
	out := make([]chunk.TextChunk, n)
	for i := range out {
		text := fmt.Sprintf("chunk number %d talks about topic %d.", i, i)
		out[i] = chunk.TextChunk{
			Index:     i,
			Text:      text,
			Start:     float64(i * 10),
			End:       float64(i*10 + 9),
			WordCount: len(strings.Fields(text)),
		}
	}
	return out
}
