package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/omnicall/pkg/metrics"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir sets the directory for temporary audio files. Defaults to
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.dir = dir }
}

// WithExtension sets the temporary file extension. Defaults to "mp3".
func WithExtension(ext string) Option {
	return func(p *Pipeline) { p.ext = ext }
}

// WithOnComplete registers a function called after every playback with its
// result. It runs on the playback goroutine and must not block.
func WithOnComplete(fn func(error)) Option {
	return func(p *Pipeline) { p.onComplete = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline turns marker-delimited reply audio into played files.
//
// Marker methods must be called from a single goroutine. Playback itself runs
// on a new goroutine per reply, so replies may overlap and no marker call
// blocks on audio output.
type Pipeline struct {
	player     Player
	dir        string
	ext        string
	onComplete func(error)
	log        *slog.Logger

	buf Buffer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Pipeline playing through player.
func New(player Player, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		player: player,
		dir:    os.TempDir(),
		ext:    "mp3",
		log:    slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnStartMarker begins a new reply, discarding any unfinished one.
func (p *Pipeline) OnStartMarker() {
	p.buf.Start()
}

// OnAppend adds a chunk of reply audio. Chunks outside a reply are ignored.
func (p *Pipeline) OnAppend(chunk []byte) {
	p.buf.Append(chunk)
}

// OnEndMarker finishes the reply and starts playing it. It reports whether
// a playback was started.
func (p *Pipeline) OnEndMarker() bool {
	data, ok := p.buf.End()
	if !ok {
		return false
	}
	if len(data) == 0 {
		p.log.Debug("playback: empty reply")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	go p.play(data)
	return true
}

// Abort drops the reply being collected.
func (p *Pipeline) Abort() {
	p.buf.Abort()
}

// Collecting reports whether a reply is being collected.
func (p *Pipeline) Collecting() bool {
	return p.buf.Collecting()
}

// Close cancels in-flight playbacks and waits for them to finish cleanup.
// It is idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) play(data []byte) {
	defer p.wg.Done()
	start := time.Now()

	err := p.playFile(data)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	metrics.RecordPlayback(status, len(data), time.Since(start).Seconds())

	if p.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		p.log.Warn("playback: failed", "error", err)
	}
	if p.onComplete != nil {
		p.onComplete(err)
	}
}

func (p *Pipeline) playFile(data []byte) error {
	path := filepath.Join(p.dir, "temp_"+uuid.NewString()+"."+p.ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("playback: write temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("playback: remove temp file", "path", path, "error", err)
		}
	}()

	p.log.Debug("playback: start", "path", path, "bytes", len(data))
	if err := p.player.Play(p.ctx, path); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
