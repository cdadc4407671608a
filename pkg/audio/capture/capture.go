// Package capture reads microphone audio on a dedicated goroutine and hands
// out WAV-framed batches.
//
// A Capture opens its Source when started and closes it on every exit path:
//
//	c := capture.New(capture.Command("arecord", wav.Mono16K, capture.ArecordArgs(wav.Mono16K)...))
//	if err := c.Start(func(frame []byte) { send(frame) }); err != nil {
//	    return err
//	}
//	defer c.Stop()
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/omnicall/pkg/audio/wav"
)

// DefaultBufferDuration is the amount of audio read per batch.
const DefaultBufferDuration = 100 * time.Millisecond

var (
	// ErrStarted is returned by Start on a capture that was already started.
	ErrStarted = errors.New("capture: already started")

	// ErrCallbackPanic wraps a panic raised inside the frame callback.
	ErrCallbackPanic = errors.New("capture: frame callback panicked")
)

// Source is an open stream of little-endian PCM samples.
type Source interface {
	io.ReadCloser
	Format() wav.Format
}

// Opener acquires a Source. The context is cancelled when the capture stops.
type Opener func(ctx context.Context) (Source, error)

// Effects is implemented by sources that offer built-in voice processing.
// Capture enables whatever is available and never fails because of it.
type Effects interface {
	EnableEchoCancellation() error
	EnableNoiseSuppression() error
}

// Option configures a Capture.
type Option func(*Capture)

// WithBufferDuration sets the batch size in time.
func WithBufferDuration(d time.Duration) Option {
	return func(c *Capture) {
		if d > 0 {
			c.bufferDuration = d
		}
	}
}

// WithOnError registers a function called once when capture halts on an
// error. It runs on the capture goroutine.
func WithOnError(fn func(error)) Option {
	return func(c *Capture) { c.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// Capture is a single-use capture loop.
type Capture struct {
	open           Opener
	bufferDuration time.Duration
	onError        func(error)
	log            *slog.Logger

	started atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// New creates a Capture reading from the source returned by open.
func New(open Opener, opts ...Option) *Capture {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Capture{
		open:           open,
		ctx:            ctx,
		cancel:         cancel,
		bufferDuration: DefaultBufferDuration,
		log:            slog.Default(),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the capture goroutine. onFrame receives one WAV frame per
// batch; the frame is owned by the callee.
func (c *Capture) Start(onFrame func(frame []byte)) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	go func() {
		defer close(c.done)
		defer c.cancel()
		err := c.run(c.ctx, onFrame)
		if err != nil && !c.stopped.Load() {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.log.Error("capture: halted", "error", err)
			if c.onError != nil {
				c.onError(err)
			}
		}
	}()
	return nil
}

// Stop asks the capture loop to exit. It does not wait; use Wait or Done.
// Stop is idempotent and safe from any goroutine.
func (c *Capture) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		c.cancel()
	}
}

// Done is closed when the capture goroutine has exited and the source has
// been released.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the capture goroutine exits and returns the error that
// halted it, or nil after Stop or end of input.
func (c *Capture) Wait() error {
	if !c.started.Load() {
		return nil
	}
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) run(ctx context.Context, onFrame func([]byte)) (err error) {
	src, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("capture: open source: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			c.log.Debug("capture: close source", "error", cerr)
		}
	}()

	if fx, ok := src.(Effects); ok {
		if err := fx.EnableEchoCancellation(); err != nil {
			c.log.Warn("capture: echo cancellation unavailable", "error", err)
		}
		if err := fx.EnableNoiseSuppression(); err != nil {
			c.log.Warn("capture: noise suppression unavailable", "error", err)
		}
	}

	format := src.Format()
	size := format.BytesInDuration(c.bufferDuration)
	if size <= 0 {
		return fmt.Errorf("capture: invalid format %v", format)
	}
	buf := make([]byte, size)
	c.log.Debug("capture: started", "format", format, "batch", size)

	for !c.stopped.Load() {
		n, rerr := src.Read(buf)
		if n > 0 && !c.stopped.Load() {
			if err := deliver(onFrame, format.Frame(buf[:n])); err != nil {
				return err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || c.stopped.Load() {
				return nil
			}
			return fmt.Errorf("capture: read: %w", rerr)
		}
	}
	return nil
}

func deliver(onFrame func([]byte), frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	onFrame(frame)
	return nil
}
