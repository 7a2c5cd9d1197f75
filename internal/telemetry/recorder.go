// Package telemetry keeps per-process counters for pipeline runs and logs a
// summary when each run finishes.
package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder tracks totals across all runs of the process.
type Recorder struct {
	log *slog.Logger

	totalRuns      atomic.Uint64
	activeRuns     atomic.Int64
	failedRuns     atomic.Uint64
	totalChunks    atomic.Uint64
	embeddingCalls atomic.Uint64
	cacheHits      atomic.Uint64
	totalTokens    atomic.Uint64
	audioMillis    atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRuns      uint64
	ActiveRuns     int64
	FailedRuns     uint64
	TotalChunks    uint64
	EmbeddingCalls uint64
	CacheHits      uint64
	TotalTokens    uint64
	AudioSeconds   float64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{log: logger.With("component", "telemetry")}
}

// Snapshot returns the totals. A nil Recorder reports zeros.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRuns:      r.totalRuns.Load(),
		ActiveRuns:     r.activeRuns.Load(),
		FailedRuns:     r.failedRuns.Load(),
		TotalChunks:    r.totalChunks.Load(),
		EmbeddingCalls: r.embeddingCalls.Load(),
		CacheHits:      r.cacheHits.Load(),
		TotalTokens:    r.totalTokens.Load(),
		AudioSeconds:   float64(r.audioMillis.Load()) / 1000,
	}
}

// RunMetrics accumulates statistics for one video. Methods are safe to call
// on a nil RunMetrics.
type RunMetrics struct {
	recorder *Recorder
	log      *slog.Logger
	started  time.Time

	mu         sync.Mutex
	stages     map[string]time.Duration
	chunks     int
	audioSec   float64
	audioParts int
	calls      int
	hits       int
	tokens     int
	cost       float64
	closed     atomic.Bool
}

// StartRun begins metrics for the video with the given id and source.
func (r *Recorder) StartRun(videoID, source string) *RunMetrics {
	if r == nil {
		return nil
	}
	r.totalRuns.Add(1)
	r.activeRuns.Add(1)
	return &RunMetrics{
		recorder: r,
		log:      r.log.With("video_id", videoID, "source", source),
		started:  time.Now(),
		stages:   make(map[string]time.Duration),
	}
}

// RecordStage stores how long a stage took.
func (m *RunMetrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stages[stage] += d
	m.mu.Unlock()
	m.log.Debug("stage finished", "stage", stage, "duration_ms", d.Milliseconds())
}

// RecordAudio stores the source duration and how many pieces it was split into.
func (m *RunMetrics) RecordAudio(seconds float64, parts int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.audioSec, m.audioParts = seconds, parts
	m.mu.Unlock()
	if seconds > 0 {
		m.recorder.audioMillis.Add(uint64(seconds * 1000))
	}
}

// RecordChunks stores the number of text chunks produced.
func (m *RunMetrics) RecordChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mu.Lock()
	m.chunks += n
	m.mu.Unlock()
	m.recorder.totalChunks.Add(uint64(n))
}

// RecordEmbeddings stores embedding call counts and spend.
func (m *RunMetrics) RecordEmbeddings(calls, cacheHits, tokens int, cost float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.calls += calls
	m.hits += cacheHits
	m.tokens += tokens
	m.cost += cost
	m.mu.Unlock()
	m.recorder.embeddingCalls.Add(uint64(max(calls, 0)))
	m.recorder.cacheHits.Add(uint64(max(cacheHits, 0)))
	m.recorder.totalTokens.Add(uint64(max(tokens, 0)))
}

// Finish logs a summary and updates the active run counter. Only the first
// call has any effect.
func (m *RunMetrics) Finish(err error) {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return
	}
	defer m.recorder.activeRuns.Add(-1)

	m.mu.Lock()
	args := []any{
		"duration_ms", time.Since(m.started).Milliseconds(),
		"audio_seconds", m.audioSec,
		"audio_parts", m.audioParts,
		"chunks", m.chunks,
		"embedding_calls", m.calls,
		"cache_hits", m.hits,
		"tokens", m.tokens,
		"estimated_cost_usd", m.cost,
	}
	for stage, d := range m.stages {
		args = append(args, "stage_"+stage+"_ms", d.Milliseconds())
	}
	m.mu.Unlock()

	if err != nil {
		m.recorder.failedRuns.Add(1)
		m.log.Error("run completed with error", append(args, "error", err)...)
		return
	}
	m.log.Info("run completed", args...)
}
