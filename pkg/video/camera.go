package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCallbackPanic wraps a panic raised inside the frame callback.
var ErrCallbackPanic = errors.New("video: frame callback panicked")

// Camera yields raw frames until closed.
type Camera interface {
	// Next blocks until a frame is available or ctx ends.
	Next(ctx context.Context) (RawFrame, error)
	Close() error
}

// CameraOpener acquires a Camera.
type CameraOpener func(ctx context.Context) (Camera, error)

// Ready is a one-shot readiness signal: Done is closed once the camera has
// either opened or failed to open, after which Err reports the outcome.
type Ready struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newReady() *Ready { return &Ready{done: make(chan struct{})} }

func (r *Ready) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed when readiness is known.
func (r *Ready) Done() <-chan struct{} { return r.done }

// Err returns the open error. It is only meaningful after Done is closed.
func (r *Ready) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until readiness is known or ctx ends.
func (r *Ready) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithCaptureLogger sets the logger.
func WithCaptureLogger(l *slog.Logger) CaptureOption {
	return func(c *Capture) { c.log = l }
}

// WithCaptureError registers a function called once if the camera fails.
func WithCaptureError(fn func(error)) CaptureOption {
	return func(c *Capture) { c.onError = fn }
}

// Capture feeds camera frames through a Worker and Throttler to onFrame.
type Capture struct {
	open      CameraOpener
	throttler *Throttler
	onFrame   func(Frame)
	onError   func(error)
	log       *slog.Logger

	ready   *Ready
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	err     error
	failure error
}

// NewCapture creates a camera capture. onFrame runs on the worker goroutine
// for each admitted frame.
func NewCapture(open CameraOpener, th *Throttler, onFrame func(Frame), opts ...CaptureOption) *Capture {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Capture{
		open:      open,
		throttler: th,
		onFrame:   onFrame,
		log:       slog.Default(),
		ready:     newReady(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready returns the readiness signal.
func (c *Capture) Ready() *Ready { return c.ready }

// Start opens the camera on a new goroutine. It returns immediately; use
// Ready to learn when frames start flowing.
func (c *Capture) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("video: capture already started")
	}
	go c.run()
	return nil
}

// Stop ends the capture. It is idempotent and does not wait.
func (c *Capture) Stop() {
	c.cancel()
}

// Wait blocks until the camera is released and returns the error that
// stopped it, if any.
func (c *Capture) Wait() error {
	if !c.started.Load() {
		return nil
	}
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) run() {
	defer close(c.done)

	err := c.loop()
	c.ready.resolve(err)
	if err != nil && (c.ctx.Err() == nil || errors.Is(err, ErrCallbackPanic)) {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.log.Error("video: capture halted", "error", err)
		if c.onError != nil {
			c.onError(err)
		}
	}
}

func (c *Capture) loop() error {
	cam, err := c.open(c.ctx)
	if err != nil {
		return fmt.Errorf("video: open camera: %w", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			c.log.Debug("video: close camera", "error", err)
		}
	}()

	w := NewWorker(c.process)
	defer w.Close()

	c.ready.resolve(nil)
	c.log.Debug("video: camera ready")

	for {
		raw, err := cam.Next(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return c.callbackFailure()
			}
			return fmt.Errorf("video: read frame: %w", err)
		}
		w.Submit(raw)
	}
}

func (c *Capture) process(raw RawFrame) {
	frame, ok, err := c.throttler.Offer(raw)
	if err != nil {
		c.log.Warn("video: drop frame", "error", err)
		return
	}
	if !ok {
		return
	}
	if err := deliver(c.onFrame, frame); err != nil {
		c.mu.Lock()
		if c.failure == nil {
			c.failure = err
		}
		c.mu.Unlock()
		c.cancel()
	}
}

func (c *Capture) callbackFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func deliver(onFrame func(Frame), frame Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	onFrame(frame)
	return nil
}

// ImageDir returns a CameraOpener that replays the JPEG and PNG files in dir
// in name order at fps frames per second, looping forever.
func ImageDir(dir string, fps float64) CameraOpener {
	return func(ctx context.Context) (Camera, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, e := range entries {
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".jpg", ".jpeg", ".png":
				if !e.IsDir() {
					files = append(files, filepath.Join(dir, e.Name()))
				}
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("video: no images in %s", dir)
		}
		slices.Sort(files)
		if fps <= 0 {
			fps = 10
		}
		return &imageDirCamera{
			files:  files,
			ticker: time.NewTicker(time.Duration(float64(time.Second) / fps)),
		}, nil
	}
}

type imageDirCamera struct {
	files  []string
	next   int
	ticker *time.Ticker
	cache  map[string]image.Image
}

func (c *imageDirCamera) Next(ctx context.Context) (RawFrame, error) {
	select {
	case <-ctx.Done():
		return RawFrame{}, ctx.Err()
	case ts := <-c.ticker.C:
		path := c.files[c.next]
		c.next = (c.next + 1) % len(c.files)
		img, err := c.load(path)
		if err != nil {
			return RawFrame{}, err
		}
		return RawFrame{Image: img, Timestamp: ts}, nil
	}
}

func (c *imageDirCamera) load(path string) (image.Image, error) {
	if img, ok := c.cache[path]; ok {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrame, path, err)
	}
	if c.cache == nil {
		c.cache = make(map[string]image.Image)
	}
	c.cache[path] = img
	return img, nil
}

func (c *imageDirCamera) Close() error {
	c.ticker.Stop()
	return nil
}
