// Package interrupt turns SIGINT/SIGTERM into cooperative cancellation.
//
// The first signal cancels the run context with ErrInterrupted as its cause,
// letting the pipeline stop between stages, record its status and delete
// temporary files. A second signal aborts the process with ExitInterrupt.
package interrupt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// ErrInterrupted is the cancellation cause set on the first signal.
var ErrInterrupted = errors.New("interrupted")

const (
	cancelMessage = "\nInterrupted, finishing cleanup. Press Ctrl+C again to abort."
	abortMessage  = "\nAborted."
)

// Handler watches for interrupt signals.
type Handler struct {
	mu          sync.Mutex
	interrupted bool
	stopped     bool
	cancel      context.CancelCauseFunc
	done        chan struct{}

	exitFunc func(int)
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	// Stderr receives user-facing messages. It must tolerate writes from the
	// listener goroutine.
	Stderr io.Writer
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
// The returned context is canceled on the first signal.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return NewHandlerWithOptions(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)

	h := &Handler{
		cancel:   cancel,
		done:     make(chan struct{}),
		exitFunc: opts.ExitFunc,
		stderr:   opts.Stderr,
	}
	if h.exitFunc == nil {
		h.exitFunc = os.Exit
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}

			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			first := !h.interrupted
			h.interrupted = true
			h.mu.Unlock()

			if first {
				fmt.Fprintln(h.stderr, cancelMessage)
				h.cancel(ErrInterrupted)
				continue
			}

			fmt.Fprintln(h.stderr, abortMessage)
			h.exitFunc(ExitInterrupt)
			return
		}
	}
}

// WasInterrupted reports whether at least one signal was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop releases the signal subscription. It is safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}

// Is reports whether err or ctx's cancellation came from an interrupt.
func Is(ctx context.Context, err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(context.Cause(ctx), ErrInterrupted)
}
