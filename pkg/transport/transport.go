// Package transport maintains one duplex WebSocket connection to the
// realtime service, with a greeting written on every open and automatic
// reconnection after unexpected loss.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/omnicall/pkg/metrics"
)

// Default connection constants.
const (
	DefaultReconnectDelay   = time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 16 * 1024 * 1024
	DefaultCloseGracePeriod = 2 * time.Second
)

var (
	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned by an open attempt superseded by Close.
	ErrClosed = errors.New("transport: closed")
)

// Config configures a Transport.
type Config struct {
	// URL is the WebSocket endpoint.
	URL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Header holds extra handshake headers.
	Header http.Header

	// Greeting returns the frame written first on every open. Optional.
	Greeting func() ([]byte, error)

	// ReconnectDelay is the wait before each reconnect attempt.
	ReconnectDelay time.Duration

	// MaxReconnects bounds consecutive failed attempts. 0 means unlimited.
	MaxReconnects int

	DialTimeout      time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	CloseGracePeriod time.Duration

	// Dialer opens connections. Defaults to WebSocketDialer.
	Dialer Dialer

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.Dialer == nil {
		c.Dialer = WebSocketDialer{HandshakeTimeout: c.DialTimeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Observer receives everything the transport learns in the background.
// Callbacks run on transport goroutines and must not block.
type Observer interface {
	OnState(State)
	OnMessage([]byte)
	OnError(error)
}

type nopObserver struct{}

func (nopObserver) OnState(State)    {}
func (nopObserver) OnMessage([]byte) {}
func (nopObserver) OnError(error)    {}

// Transport owns at most one live connection at a time.
type Transport struct {
	cfg Config
	obs Observer
	log *slog.Logger

	// writeMu serializes writes and is held across open and greeting so
	// that no Send can precede the greeting.
	writeMu sync.Mutex

	// emitMu orders observer state delivery; emitted is the seq of the last
	// delivered change.
	emitMu  sync.Mutex
	emitted uint64

	mu         sync.Mutex
	state      State
	seq        uint64
	conn       Conn
	gen        uint64
	timer      *time.Timer
	cancelDial context.CancelFunc
	failures   int
}

// New creates a Transport. Call Connect to open it.
func New(cfg Config, obs Observer) *Transport {
	cfg.defaults()
	if obs == nil {
		obs = nopObserver{}
	}
	return &Transport{
		cfg: cfg,
		obs: obs,
		log: cfg.Logger,
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect opens the connection. A failed first attempt is returned and also
// scheduled for retry like any other loss. Connect on a transport that is
// already open or opening is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	switch t.state.Kind {
	case Connecting, Connected, Reconnecting:
		t.mu.Unlock()
		return nil
	}
	t.gen++
	gen := t.gen
	t.failures = 0
	ctx, cancel := context.WithCancel(ctx)
	t.cancelDial = cancel
	st := t.setStateLocked(State{Kind: Connecting})
	t.mu.Unlock()
	t.emit(st)

	defer cancel()
	if err := t.open(ctx, gen); err != nil {
		t.failed(gen, err)
		return err
	}
	return nil
}

// Send writes one text frame. It returns false, dropping data, when the
// connection is not open or the write fails.
func (t *Transport) Send(data []byte) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	conn, open := t.conn, t.state.Open()
	t.mu.Unlock()
	if !open || conn == nil {
		return false
	}
	if err := t.write(conn, data); err != nil {
		t.log.Warn("transport: write failed", "error", err)
		// The read loop observes the closed socket and reconnects.
		_ = conn.Close()
		return false
	}
	return true
}

// Close closes the connection. An intentional close cancels any pending
// reconnect and leaves the transport Disconnected. A non-intentional close
// drops the socket as if the network failed, which triggers a reconnect.
func (t *Transport) Close(intentional bool) {
	t.mu.Lock()
	conn := t.conn
	if !intentional {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if t.state.Kind == Disconnected && conn == nil && t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	t.conn = nil
	st := t.setStateLocked(State{Kind: Disconnecting})
	t.mu.Unlock()
	t.emit(st)

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.cfg.CloseGracePeriod))
		_ = conn.Close()
	}

	t.mu.Lock()
	if t.state.Kind != Disconnecting {
		t.mu.Unlock()
		return
	}
	st = t.setStateLocked(State{Kind: Disconnected})
	t.mu.Unlock()
	t.emit(st)
}

// open dials, writes the greeting and marks the transport Connected. gen
// identifies the attempt; a mismatch means Close or a newer attempt won.
func (t *Transport) open(ctx context.Context, gen uint64) error {
	conn, err := t.cfg.Dialer.Dial(ctx, t.cfg.URL, t.header())
	if err != nil {
		return err
	}
	conn.SetReadLimit(t.cfg.MaxMessageSize)

	var greeting []byte
	if t.cfg.Greeting != nil {
		if greeting, err = t.cfg.Greeting(); err != nil {
			_ = conn.Close()
			return fmt.Errorf("transport: build greeting: %w", err)
		}
	}

	t.writeMu.Lock()
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		t.writeMu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()

	if greeting != nil {
		if err := t.write(conn, greeting); err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			t.writeMu.Unlock()
			_ = conn.Close()
			return fmt.Errorf("transport: send greeting: %w", err)
		}
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		t.writeMu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	t.failures = 0
	t.cancelDial = nil
	st := t.setStateLocked(State{Kind: Connected})
	t.mu.Unlock()
	t.writeMu.Unlock()

	t.log.Info("transport: connected", "url", t.cfg.URL)
	t.emit(st)
	go t.readLoop(conn, gen)
	return nil
}

func (t *Transport) readLoop(conn Conn, gen uint64) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.lost(conn, gen, err)
			return
		}
		t.obs.OnMessage(msg)
	}
}

// lost handles the end of a connection's read loop.
func (t *Transport) lost(conn Conn, gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	_ = conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		st := t.setStateLocked(State{Kind: Disconnected})
		t.mu.Unlock()
		t.log.Info("transport: closed by server")
		t.emit(st)
		return
	}

	reason := describe(err)
	st := t.scheduleLocked(reason)
	t.mu.Unlock()

	t.log.Warn("transport: connection lost", "reason", reason, "next", st.state)
	t.obs.OnError(fmt.Errorf("transport: %s: %w", reason, err))
	t.emit(st)
}

// failed handles a failed open attempt.
func (t *Transport) failed(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	st := t.scheduleLocked(err.Error())
	t.mu.Unlock()

	t.log.Warn("transport: connect failed", "error", err, "next", st.state)
	t.obs.OnError(err)
	t.emit(st)
}

// scheduleLocked arms exactly one reconnect timer, or gives up once
// MaxReconnects consecutive failures are exceeded.
func (t *Transport) scheduleLocked(reason string) change {
	t.failures++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cfg.MaxReconnects > 0 && t.failures > t.cfg.MaxReconnects {
		return t.setStateLocked(ErrorState(reason))
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.cfg.ReconnectDelay, func() { t.reconnect(gen) })
	return t.setStateLocked(State{Kind: Reconnecting})
}

func (t *Transport) reconnect(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state.Kind != Reconnecting {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.gen++
	next := t.gen
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.DialTimeout)
	t.cancelDial = cancel
	t.mu.Unlock()
	defer cancel()

	t.log.Info("transport: reconnecting", "url", t.cfg.URL)
	if err := t.open(ctx, next); err != nil {
		metrics.RecordReconnect(metrics.StatusError)
		t.failed(next, err)
		return
	}
	metrics.RecordReconnect(metrics.StatusSuccess)
}

func (t *Transport) write(conn Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (t *Transport) header() http.Header {
	h := t.cfg.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if t.cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}
	return h
}

// change is a state transition stamped with its order under mu.
type change struct {
	state State
	seq   uint64
}

func (t *Transport) setStateLocked(st State) change {
	t.state = st
	t.seq++
	return change{state: st, seq: t.seq}
}

// emit delivers c to the observer unless a later change was already
// delivered, so the observer's last state always matches State.
func (t *Transport) emit(c change) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if c.seq <= t.emitted {
		t.log.Debug("transport: stale state skipped", "state", c.state)
		return
	}
	t.emitted = c.seq
	metrics.SetConnected(c.state.Open())
	t.log.Debug("transport: state", "state", c.state)
	t.obs.OnState(c.state)
}

func describe(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Sprintf("connection closed: %d %s", ce.Code, ce.Text)
	}
	return "connection lost"
}
