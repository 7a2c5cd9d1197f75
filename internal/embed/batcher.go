// Package embed converts text chunks into vectors in cached, rate-limited
// batches and tracks the estimated spend.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/alnah/go-vidindex/internal/apierr"
	"github.com/alnah/go-vidindex/internal/chunk"
)

// Embedder returns one vector per text, in order.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Cache stores vectors by key with no expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// Result is the vector for one chunk.
type Result struct {
	ChunkIndex int       `json:"chunk_index"`
	Vector     []float32 `json:"vector"`
	Tokens     int       `json:"tokens"`
	Cached     bool      `json:"cached"`
}

// BatchResult accumulates the results of completed batches.
type BatchResult struct {
	Results []Result `json:"results"`
	// TotalTokens and EstimatedCost cover every chunk, cached or not.
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	// BilledTokens and BilledCost cover only the texts sent to the provider.
	BilledTokens int     `json:"billed_tokens"`
	BilledCost   float64 `json:"billed_cost"`
	// Calls counts embedding requests sent, retries included.
	Calls     int `json:"calls"`
	CacheHits int `json:"cache_hits"`
	// Batches is the number of batches completed by this call.
	Batches int `json:"batches"`
}

// Batcher generates embeddings. It keeps no state between Generate calls
// and may be shared by concurrent runs.
type Batcher struct {
	embedder  Embedder
	cache     Cache
	pool      *ants.Pool
	policy    apierr.RetryPolicy
	retryable func(error) bool
	logger    *slog.Logger
	poolSize  int
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithRetryPolicy overrides the backoff applied to each batch call.
func WithRetryPolicy(p apierr.RetryPolicy) BatcherOption {
	return func(b *Batcher) { b.policy = p }
}

// WithRetryable overrides which provider errors are retried.
func WithRetryable(f func(error) bool) BatcherOption {
	return func(b *Batcher) {
		if f != nil {
			b.retryable = f
		}
	}
}

// WithLookupWorkers sets how many cache lookups run at once.
// Default is runtime.NumCPU(), minimum 1.
func WithLookupWorkers(n int) BatcherOption {
	return func(b *Batcher) { b.poolSize = max(n, 1) }
}

// WithLogger sets the logger for cache and retry diagnostics.
func WithLogger(l *slog.Logger) BatcherOption {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBatcher returns a Batcher calling e and caching in c. A nil cache
// disables caching but keeps in-run deduplication.
// Callers must call Release when done.
func NewBatcher(e Embedder, c Cache, opts ...BatcherOption) (*Batcher, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidOptions)
	}
	if c == nil {
		c = noCache{}
	}
	b := &Batcher{
		embedder:  e,
		cache:     c,
		policy:    apierr.DefaultRetryPolicy(),
		retryable: apierr.IsRetryable,
		logger:    slog.Default().With("component", "embed"),
		poolSize:  max(runtime.NumCPU(), 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	pool, err := ants.NewPool(b.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create lookup pool: %w", err)
	}
	b.pool = pool
	return b, nil
}

// Release frees the lookup workers.
func (b *Batcher) Release() {
	b.pool.Release()
}

// EstimateCost prices chunks at model's rate without calling the provider.
func (b *Batcher) EstimateCost(chunks []chunk.TextChunk, model ModelConfig) float64 {
	return EstimateCost(chunks, model)
}

// Generate embeds chunks in batches of opts.BatchSize, in order.
//
// On failure the returned BatchResult holds every completed batch, and the
// error is a *BatchError naming the failed batch. A cancelled context stops
// before the next batch and returns the results so far with ctx.Err().
func (b *Batcher) Generate(ctx context.Context, chunks []chunk.TextChunk, opts Options) (BatchResult, error) {
	if err := opts.Validate(); err != nil {
		return BatchResult{}, err
	}

	r := &genRun{
		b:    b,
		opts: opts,
		seen: make(map[string][]float32),
	}
	size := opts.BatchSize
	total := (len(chunks) + size - 1) / size

	for batch := opts.StartBatch; batch < total; batch++ {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}
		if batch > opts.StartBatch && opts.BatchDelay > 0 {
			if err := sleep(ctx, opts.BatchDelay); err != nil {
				return r.finish(), err
			}
		}

		lo, hi := batch*size, min((batch+1)*size, len(chunks))
		if err := r.batch(ctx, batch, chunks[lo:hi]); err != nil {
			return r.finish(), err
		}
	}
	return r.finish(), nil
}

// genRun is the state of one Generate call.
type genRun struct {
	b    *Batcher
	opts Options
	// seen holds vectors obtained during this run, by cache key.
	seen map[string][]float32
	res  BatchResult
}

func (r *genRun) finish() BatchResult {
	r.res.EstimatedCost = r.opts.Model.Cost(r.res.TotalTokens)
	r.res.BilledCost = r.opts.Model.Cost(r.res.BilledTokens)
	return r.res
}

func (r *genRun) batch(ctx context.Context, n int, chunks []chunk.TextChunk) error {
	model := r.opts.Model
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = CacheKey(model.ID, c.Text)
	}

	hits := r.lookup(ctx, keys)

	// First occurrence of each uncached key is sent; later ones reuse it.
	var texts, missing []string
	queued := make(map[string]bool)
	for i, k := range keys {
		if _, ok := r.seen[k]; ok {
			continue
		}
		if v, ok := hits[k]; ok {
			r.seen[k] = v
			continue
		}
		if !queued[k] {
			queued[k] = true
			texts = append(texts, chunks[i].Text)
			missing = append(missing, k)
		}
	}

	fresh := make(map[string]bool, len(missing))
	if len(texts) > 0 {
		vecs, err := r.call(ctx, texts)
		if err != nil {
			indices := make([]int, len(chunks))
			for i, c := range chunks {
				indices[i] = c.Index
			}
			r.b.logger.Warn("embedding batch failed", "batch", n, "chunks", len(chunks), "error", err)
			return &BatchError{Batch: n, ChunkIndices: indices, Err: err}
		}
		for i, k := range missing {
			r.seen[k] = vecs[i]
			fresh[k] = true
			if err := r.b.cache.Set(ctx, k, vecs[i]); err != nil {
				r.b.logger.Warn("cache write failed", "key", k, "error", err)
			}
		}
	}

	for i, c := range chunks {
		k := keys[i]
		cached := !fresh[k]
		// Only the first occurrence of a freshly embedded text counts as computed.
		delete(fresh, k)

		tokens := EstimateTokens(c.Text)
		r.res.Results = append(r.res.Results, Result{
			ChunkIndex: c.Index,
			Vector:     r.seen[k],
			Tokens:     tokens,
			Cached:     cached,
		})
		r.res.TotalTokens += tokens
		if cached {
			r.res.CacheHits++
		} else {
			r.res.BilledTokens += tokens
		}
	}
	r.res.Batches++
	return nil
}

// lookup reads the unique keys not yet seen from the cache concurrently.
// Lookup errors and vectors of the wrong dimension count as misses.
func (r *genRun) lookup(ctx context.Context, keys []string) map[string][]float32 {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		hits = make(map[string][]float32)
		want = r.opts.Model.Dimensions
	)
	get := func(k string) {
		defer wg.Done()
		v, ok, err := r.b.cache.Get(ctx, k)
		switch {
		case err != nil:
			r.b.logger.Warn("cache read failed", "key", k, "error", err)
			return
		case !ok:
			return
		case want > 0 && len(v) != want:
			r.b.logger.Warn("cached vector has wrong dimension", "key", k, "got", len(v), "want", want)
			return
		}
		mu.Lock()
		hits[k] = v
		mu.Unlock()
	}

	asked := make(map[string]bool)
	for _, k := range keys {
		if _, ok := r.seen[k]; ok || asked[k] {
			continue
		}
		asked[k] = true
		wg.Add(1)
		if err := r.b.pool.Submit(func() { get(k) }); err != nil {
			get(k)
		}
	}
	wg.Wait()
	return hits
}

// call sends texts to the provider under the retry policy and checks the
// response shape.
func (r *genRun) call(ctx context.Context, texts []string) ([][]float32, error) {
	model := r.opts.Model
	retryable := func(err error) bool {
		return !errors.Is(err, errBadResponse) && r.b.retryable(err)
	}

	attempt := 0
	return apierr.Do(ctx, r.b.policy, func(ctx context.Context) ([][]float32, error) {
		attempt++
		r.res.Calls++
		if attempt > 1 {
			r.b.logger.Debug("retrying embedding call", "attempt", attempt, "texts", len(texts))
		}
		vecs, err := r.b.embedder.Embed(ctx, model.ID, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", errBadResponse, len(vecs), len(texts))
		}
		if model.Dimensions > 0 {
			for i, v := range vecs {
				if len(v) != model.Dimensions {
					return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
						errBadResponse, i, len(v), model.Dimensions)
				}
			}
		}
		return vecs, nil
	}, retryable)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]float32, bool, error) { return nil, false, nil }
func (noCache) Set(context.Context, string, []float32) error { return nil }
