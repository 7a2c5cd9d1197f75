package embed_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alnah/go-vidindex/internal/apierr"
	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/embed/cache"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// mockEmbedder records every request. By default it returns a
// two-dimensional vector derived from each text.
type mockEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(call int, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(_ context.Context, model string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, slicesClone(texts))
	n := len(m.calls)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(n, texts)
	}
	return vectorsFor(texts), nil
}

func (m *mockEmbedder) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		out = append(out, c...)
	}
	return out
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func slicesClone(s []string) []string { return append([]string(nil), s...) }

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), float32(text[0])}
}

func vectorsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, []float32) error { return errors.New("cache down") }

var testModel = embed.ModelConfig{ID: "test-model", Dimensions: 2, CostPer1KTokens: 1}

func testOptions(batchSize int) embed.Options {
	return embed.Options{Model: testModel, BatchSize: batchSize}
}

func fastPolicy() apierr.RetryPolicy {
	return apierr.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func chunksOf(texts ...string) []chunk.TextChunk {
	out := make([]chunk.TextChunk, len(texts))
	for i, t := range texts {
		out[i] = chunk.TextChunk{Index: i, Text: t, WordCount: len(strings.Fields(t))}
	}
	return out
}

func newBatcher(t *testing.T, e embed.Embedder, c embed.Cache, opts ...embed.BatcherOption) *embed.Batcher {
	t.Helper()
	opts = append([]embed.BatcherOption{embed.WithRetryPolicy(fastPolicy())}, opts...)
	b, err := embed.NewBatcher(e, c, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_PreservesOrderAcrossBatches(t *testing.T) {
	t.Parallel()

	e := &mockEmbedder{}
	b := newBatcher(t, e, cache.NewMemory())

	chunks := chunksOf("alpha", "bravo", "charlie", "delta", "echo")
	got, err := b.Generate(context.Background(), chunks, testOptions(2))
	require.NoError(t, err)

	require.Len(t, got.Results, 5)
	for i, r := range got.Results {
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, vectorFor(chunks[i].Text), r.Vector)
		assert.False(t, r.Cached)
	}
	assert.Equal(t, 3, e.callCount())
	assert.Equal(t, 3, got.Calls)
	assert.Equal(t, 3, got.Batches)
	assert.Equal(t, 0, got.CacheHits)
}

func TestGenerate_DuplicateTextEmbeddedOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		batchSize int
	}{
		{"same batch", 10},
		{"different batches", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &mockEmbedder{}
			b := newBatcher(t, e, cache.NewMemory())

			got, err := b.Generate(context.Background(), chunksOf("same", "other", "same"), testOptions(tt.batchSize))
			require.NoError(t, err)

			assert.Equal(t, []string{"same", "other"}, e.sent())
			require.Len(t, got.Results, 3)
			assert.False(t, got.Results[0].Cached)
			assert.True(t, got.Results[2].Cached)
			assert.Equal(t, got.Results[0].Vector, got.Results[2].Vector)
			assert.Equal(t, 1, got.CacheHits)
		})
	}
}

func TestGenerate_CacheHitsSkipProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(ctx, embed.CacheKey(testModel.ID, "known"), []float32{9, 9}))

	e := &mockEmbedder{}
	b := newBatcher(t, e, mem)

	got, err := b.Generate(ctx, chunksOf("known", "new"), testOptions(10))
	require.NoError(t, err)

	assert.Equal(t, []string{"new"}, e.sent())
	assert.Equal(t, []float32{9, 9}, got.Results[0].Vector)
	assert.True(t, got.Results[0].Cached)

	// New vectors are written back for later runs.
	v, ok, err := mem.Get(ctx, embed.CacheKey(testModel.ID, "new"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vectorFor("new"), v)

	again, err := b.Generate(ctx, chunksOf("known", "new"), testOptions(10))
	require.NoError(t, err)
	assert.Equal(t, 1, e.callCount())
	assert.Equal(t, 2, again.CacheHits)
}

func TestGenerate_CacheIsKeyedByModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := cache.NewMemory()
	e := &mockEmbedder{}
	b := newBatcher(t, e, mem)

	_, err := b.Generate(ctx, chunksOf("text"), testOptions(10))
	require.NoError(t, err)

	other := testOptions(10)
	other.Model.ID = "other-model"
	_, err = b.Generate(ctx, chunksOf("text"), other)
	require.NoError(t, err)

	assert.Equal(t, 2, e.callCount())
}

func TestGenerate_WrongDimensionCacheEntryIsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(ctx, embed.CacheKey(testModel.ID, "text"), []float32{1, 2, 3}))

	e := &mockEmbedder{}
	b := newBatcher(t, e, mem)

	got, err := b.Generate(ctx, chunksOf("text"), testOptions(10))
	require.NoError(t, err)
	assert.Equal(t, 1, e.callCount())
	assert.Equal(t, vectorFor("text"), got.Results[0].Vector)
}

func TestGenerate_CacheErrorsAreMisses(t *testing.T) {
	t.Parallel()

	e := &mockEmbedder{}
	b := newBatcher(t, e, brokenCache{})

	got, err := b.Generate(context.Background(), chunksOf("a", "b"), testOptions(10))
	require.NoError(t, err)
	assert.Len(t, got.Results, 2)
	assert.Equal(t, 1, e.callCount())
}

func TestGenerate_NilCacheStillDeduplicates(t *testing.T) {
	t.Parallel()

	e := &mockEmbedder{}
	b := newBatcher(t, e, nil)

	_, err := b.Generate(context.Background(), chunksOf("a", "a", "a"), testOptions(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, e.sent())
}

func TestGenerate_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	e := &mockEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		if call == 1 {
			return nil, apierr.ErrRateLimit
		}
		return vectorsFor(texts), nil
	}}
	b := newBatcher(t, e, nil)

	got, err := b.Generate(context.Background(), chunksOf("a"), testOptions(10))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Calls)
	assert.Len(t, got.Results, 1)
}

func TestGenerate_FailureReportsBatchAndKeepsCompleted(t *testing.T) {
	t.Parallel()

	e := &mockEmbedder{fn: func(_ int, texts []string) ([][]float32, error) {
		if texts[0] == "c" {
			return nil, apierr.ErrTimeout
		}
		return vectorsFor(texts), nil
	}}
	b := newBatcher(t, e, nil)

	got, err := b.Generate(context.Background(), chunksOf("a", "b", "c", "d", "e"), testOptions(2))

	require.Error(t, err)
	assert.True(t, errors.Is(err, embed.ErrEmbeddingFailed))
	assert.True(t, errors.Is(err, apierr.ErrTimeout))

	var berr *embed.BatchError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, 1, berr.Batch)
	assert.Equal(t, []int{2, 3}, berr.ChunkIndices)

	assert.Len(t, got.Results, 2, "first batch kept")
	assert.Equal(t, 1, got.Batches)
	assert.Equal(t, 1+3, e.callCount(), "one success plus three attempts")

	// Resume from the failed batch once the provider recovers.
	e.fn = nil
	resumed := testOptions(2)
	resumed.StartBatch = berr.Batch
	rest, err := b.Generate(context.Background(), chunksOf("a", "b", "c", "d", "e"), resumed)
	require.NoError(t, err)
	require.Len(t, rest.Results, 3)
	assert.Equal(t, 2, rest.Results[0].ChunkIndex)
	assert.Equal(t, []string{"c", "d", "e"}, e.sent()[len(e.sent())-3:])
}

func TestGenerate_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(int, []string) ([][]float32, error)
	}{
		{"auth", func(int, []string) ([][]float32, error) { return nil, apierr.ErrAuthFailed }},
		{"vector count", func(int, []string) ([][]float32, error) { return [][]float32{{1, 2}}, nil }},
		{"dimension", func(_ int, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 2, 3}
			}
			return out, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &mockEmbedder{fn: tt.fn}
			b := newBatcher(t, e, nil)

			_, err := b.Generate(context.Background(), chunksOf("a", "b"), testOptions(10))
			assert.True(t, errors.Is(err, embed.ErrEmbeddingFailed), "error = %v", err)
			assert.Equal(t, 1, e.callCount())
		})
	}
}

func TestGenerate_CancelledStopsBeforeNextBatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := &mockEmbedder{fn: func(_ int, texts []string) ([][]float32, error) {
		cancel()
		return vectorsFor(texts), nil
	}}
	b := newBatcher(t, e, nil)

	got, err := b.Generate(ctx, chunksOf("a", "b", "c", "d"), testOptions(2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, e.callCount())
	assert.Len(t, got.Results, 2)
}

func TestGenerate_DelaysBetweenBatches(t *testing.T) {
	t.Parallel()

	b := newBatcher(t, &mockEmbedder{}, nil)
	opts := testOptions(1)
	opts.BatchDelay = 20 * time.Millisecond

	start := time.Now()
	_, err := b.Generate(context.Background(), chunksOf("a", "b", "c"), opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGenerate_TokensAndCost(t *testing.T) {
	t.Parallel()

	b := newBatcher(t, &mockEmbedder{}, nil)

	// 10 and 3 characters: 3 + 1 tokens, cached duplicate counted again.
	got, err := b.Generate(context.Background(), chunksOf("0123456789", "abc", "abc"), testOptions(10))
	require.NoError(t, err)

	assert.Equal(t, []int{3, 1, 1}, []int{got.Results[0].Tokens, got.Results[1].Tokens, got.Results[2].Tokens})
	assert.Equal(t, 5, got.TotalTokens)
	assert.InDelta(t, 0.005, got.EstimatedCost, 1e-12)
	assert.Equal(t, 4, got.BilledTokens, "the duplicate is not sent again")
	assert.InDelta(t, 0.004, got.BilledCost, 1e-12)
}

func TestGenerate_CacheHitsAreNotBilled(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	b := newBatcher(t, &mockEmbedder{}, c)
	chunks := chunksOf("0123456789", "abc")

	_, err := b.Generate(context.Background(), chunks, testOptions(10))
	require.NoError(t, err)

	got, err := b.Generate(context.Background(), chunks, testOptions(10))
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalTokens)
	assert.Zero(t, got.BilledTokens)
	assert.Zero(t, got.BilledCost)
	assert.InDelta(t, 0.004, got.EstimatedCost, 1e-12)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	t.Parallel()

	b := newBatcher(t, &mockEmbedder{}, nil)

	for _, opts := range []embed.Options{
		{},
		{Model: testModel, BatchSize: 0},
		{Model: testModel, BatchSize: 1, BatchDelay: -time.Second},
		{Model: testModel, BatchSize: 1, StartBatch: -1},
		{Model: embed.ModelConfig{ID: "x", Dimensions: -1}, BatchSize: 1},
	} {
		_, err := b.Generate(context.Background(), chunksOf("a"), opts)
		assert.ErrorIs(t, err, embed.ErrInvalidOptions, "opts %+v", opts)
	}
}

func TestNewBatcher_RequiresEmbedder(t *testing.T) {
	t.Parallel()

	_, err := embed.NewBatcher(nil, nil)
	assert.ErrorIs(t, err, embed.ErrInvalidOptions)
}
