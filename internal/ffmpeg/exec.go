package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Output holds the captured streams of one command.
type Output struct {
	Stdout string
	Stderr string
}

// ---------------------------------------------------------------------------
// Executor - testable command execution with dependency injection
// ---------------------------------------------------------------------------

// runFn runs a command and captures both streams.
type runFn func(ctx context.Context, path string, args []string) (Output, error)

// Executor runs toolchain commands, optionally under a per-invocation timeout.
type Executor struct {
	run     runFn
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunFunc sets a custom command runner (for testing).
func WithRunFunc(fn runFn) ExecutorOption {
	return func(e *Executor) { e.run = fn }
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{run: defaultRun}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes path with args. Output is returned even on failure since
// ffmpeg reports its diagnostics on stderr. A deadline hit by the executor's
// own timeout is reported as ErrTimeout; caller cancellation passes through.
func (e *Executor) Run(ctx context.Context, path string, args []string) (Output, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.run(runCtx, path, args)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w: %s after %v", ErrTimeout, path, e.timeout)
	}
	return out, err
}

// defaultRun is the production implementation.
func defaultRun(ctx context.Context, path string, args []string) (Output, error) {
	// #nosec G204 -- path is the resolved toolchain binary, args are built internally
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}
