// Package call composes transport, capture, playback, video and the turn
// machine into one realtime voice call.
//
// A Session funnels every asynchronous signal (inbound envelopes, transport
// state changes, playback completions, media failures) into a single
// dispatch goroutine. That goroutine alone drives the turn machine and
// calls the Listener, so listener code always observes events one at a time
// and in arrival order.
//
// Sessions are single use: once EndCall has run, create a new Session for
// the next call.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/omnicall/pkg/audio/capture"
	"github.com/haivivi/omnicall/pkg/audio/playback"
	"github.com/haivivi/omnicall/pkg/audio/wav"
	"github.com/haivivi/omnicall/pkg/metrics"
	"github.com/haivivi/omnicall/pkg/omni"
	"github.com/haivivi/omnicall/pkg/transport"
	"github.com/haivivi/omnicall/pkg/turn"
	"github.com/haivivi/omnicall/pkg/video"
)

const inputQueueSize = 256

var (
	// ErrPermissionDenied is returned when the microphone (or camera)
	// permission is missing, and reported when it is revoked mid-call.
	ErrPermissionDenied = errors.New("call: permission denied")

	// ErrSessionClosed is returned by operations on an ended session.
	ErrSessionClosed = errors.New("call: session closed")

	// ErrNotConnected is returned when a control event cannot be sent.
	ErrNotConnected = transport.ErrNotConnected

	// ErrClosed is returned by connects superseded by EndCall.
	ErrClosed = transport.ErrClosed
)

// Permissions gates access to the capture devices.
type Permissions interface {
	Granted() bool
}

// PermissionsFunc adapts a function to Permissions.
type PermissionsFunc func() bool

// Granted implements Permissions.
func (f PermissionsFunc) Granted() bool { return f() }

// AlwaysGranted is used when Deps.Permissions is nil.
var AlwaysGranted Permissions = PermissionsFunc(func() bool { return true })

// Config holds the call parameters.
type Config struct {
	// URL is the realtime WebSocket endpoint.
	URL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Session is sent as session.update on every connect. Nil means
	// omni.DefaultSessionConfig.
	Session *omni.SessionConfig

	// ReconnectDelay and MaxReconnects configure the transport.
	ReconnectDelay time.Duration
	MaxReconnects  int

	// BufferDuration is the audio batch length. Defaults to 100ms.
	BufferDuration time.Duration

	// VideoInterval is the minimum spacing of video frames. Values below
	// video.MinInterval are raised to it.
	VideoInterval time.Duration

	// JPEGQuality and MaxWidth configure frame encoding.
	JPEGQuality int
	MaxWidth    int

	// TempDir holds playback files. Defaults to os.TempDir.
	TempDir string

	Logger *slog.Logger
}

// Deps holds the pluggable devices of a call.
type Deps struct {
	// Microphone opens the audio input. Nil disables audio capture.
	Microphone capture.Opener

	// Camera opens the video input. Nil disables video.
	Camera video.CameraOpener

	// Player renders reply audio. Required.
	Player playback.Player

	// Dialer overrides the WebSocket dialer.
	Dialer transport.Dialer

	// Permissions gates Connect and StartCall. Nil means always granted.
	Permissions Permissions
}

// Session is one realtime call.
type Session struct {
	id   string
	cfg  Config
	deps Deps
	l    Listener
	log  *slog.Logger

	tr      *transport.Transport
	pipe    *playback.Pipeline
	machine *turn.Machine
	turn    atomic.Int32

	inputs  chan input
	closing chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	calling bool
	mic     *capture.Capture
	cam     *video.Capture
}

// New creates a Session. It starts the dispatch goroutine but opens
// nothing; call Connect or StartCall.
func New(cfg Config, deps Deps, l Listener) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("call: URL is required")
	}
	if deps.Player == nil {
		return nil, errors.New("call: player is required")
	}
	if l == nil {
		l = NopListener{}
	}
	if deps.Permissions == nil {
		deps.Permissions = AlwaysGranted
	}
	if cfg.Session == nil {
		cfg.Session = omni.DefaultSessionConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		deps:    deps,
		l:       l,
		inputs:  make(chan input, inputQueueSize),
		closing: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.log = cfg.Logger.With("session", s.id)

	greeting := omni.SessionUpdate(cfg.Session)
	s.tr = transport.New(transport.Config{
		URL:            cfg.URL,
		APIKey:         cfg.APIKey,
		Greeting:       greeting.Marshal,
		ReconnectDelay: cfg.ReconnectDelay,
		MaxReconnects:  cfg.MaxReconnects,
		Dialer:         deps.Dialer,
		Logger:         s.log,
	}, observer{s})

	popts := []playback.Option{
		playback.WithLogger(s.log),
		playback.WithOnComplete(func(err error) { s.post(playbackInput{err: err}) }),
	}
	if cfg.TempDir != "" {
		popts = append(popts, playback.WithTempDir(cfg.TempDir))
	}
	s.pipe = playback.New(deps.Player, popts...)
	s.machine = turn.New(s.pipe, notifier{s}, s.log)

	go s.dispatch()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ConnectionState returns the transport state.
func (s *Session) ConnectionState() transport.State { return s.tr.State() }

// TurnState returns the current turn.
func (s *Session) TurnState() turn.State { return turn.State(s.turn.Load()) }

// Done is closed once the session has ended and dispatch has drained.
func (s *Session) Done() <-chan struct{} { return s.done }

// Connect opens the transport. It requires granted permissions. A failed
// first attempt is returned and retried in the background.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.tr.Connect(ctx)
}

// StartCall connects and starts the microphone and camera. Media keeps
// running while the transport reconnects; frames produced meanwhile are
// dropped.
func (s *Session) StartCall(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.calling {
		s.mu.Unlock()
		return nil
	}
	s.calling = true
	s.mu.Unlock()

	connErr := s.tr.Connect(ctx)
	if connErr != nil && errors.Is(connErr, transport.ErrClosed) {
		s.setCalling(false)
		return connErr
	}
	if err := s.startMedia(); err != nil {
		s.setCalling(false)
		return err
	}
	if connErr != nil {
		return fmt.Errorf("call: connect: %w", connErr)
	}
	s.log.Info("call: started")
	return nil
}

func (s *Session) setCalling(v bool) {
	s.mu.Lock()
	s.calling = v
	s.mu.Unlock()
}

// startMedia acquires the microphone and camera. Devices need permission at
// acquisition time; on failure nothing is left running.
func (s *Session) startMedia() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.deps.Permissions.Granted() {
		return ErrPermissionDenied
	}

	if s.deps.Microphone != nil {
		s.mic = capture.New(s.deps.Microphone,
			capture.WithBufferDuration(s.cfg.BufferDuration),
			capture.WithLogger(s.log),
			capture.WithOnError(func(err error) {
				s.post(errorInput{err: err, media: true})
			}),
		)
		if err := s.mic.Start(s.sendAudio); err != nil {
			s.mic = nil
			return fmt.Errorf("call: start capture: %w", err)
		}
	}

	if s.deps.Camera != nil {
		th := video.NewThrottler(video.Encoder{
			Quality:  s.cfg.JPEGQuality,
			MaxWidth: s.cfg.MaxWidth,
		}, max(s.cfg.VideoInterval, video.MinInterval))
		s.cam = video.NewCapture(s.deps.Camera, th, s.sendVideo,
			video.WithCaptureLogger(s.log),
			video.WithCaptureError(func(err error) {
				s.post(errorInput{err: err, media: true})
			}),
		)
		if err := s.cam.Start(); err != nil {
			s.cam = nil
			if s.mic != nil {
				s.mic.Stop()
				s.mic = nil
			}
			return fmt.Errorf("call: start camera: %w", err)
		}
	}
	return nil
}

// EndCall stops the media, commits the pending input, closes the transport
// and playback, and stops dispatch. It is idempotent and may be called from
// a Listener method.
func (s *Session) EndCall() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	mic, cam := s.mic, s.cam
	s.mu.Unlock()

	close(s.closing)
	s.log.Info("call: ending")

	if mic != nil {
		mic.Stop()
	}
	if cam != nil {
		cam.Stop()
	}
	if mic != nil {
		<-mic.Done()
	}
	if cam != nil {
		cam.Wait()
	}

	if s.tr.State().Open() {
		if err := s.send(omni.Commit(time.Now())); err != nil {
			s.log.Debug("call: final commit", "error", err)
		}
	}
	s.tr.Close(true)
	s.pipe.Close()
	close(s.stop)
}

// Commit asks the server to end the user's turn.
func (s *Session) Commit() error {
	return s.send(omni.Commit(time.Now()))
}

// CancelResponse asks the server to stop the reply in progress.
func (s *Session) CancelResponse() error {
	return s.send(omni.Cancel(time.Now()))
}

// SubmitToolResult answers a function call.
func (s *Session) SubmitToolResult(callID, output string) error {
	if callID == "" {
		return errors.New("call: empty call id")
	}
	return s.send(omni.ConversationItemCreate(omni.FunctionCallOutput{
		CallID: callID,
		Output: output,
	}))
}

// SendUtterance cancels any reply in progress, streams pcm as WAV frames of
// the configured batch length and commits it as one user turn.
func (s *Session) SendUtterance(pcm []byte, f wav.Format) error {
	if err := s.CancelResponse(); err != nil {
		return err
	}
	d := s.cfg.BufferDuration
	if d <= 0 {
		d = capture.DefaultBufferDuration
	}
	step := f.BytesInDuration(d)
	if step <= 0 {
		return fmt.Errorf("call: invalid format %s", f)
	}
	for off := 0; off < len(pcm); off += step {
		end := min(off+step, len(pcm))
		if !s.sendAudioFrame(f.Frame(pcm[off:end])) {
			return ErrNotConnected
		}
	}
	return s.Commit()
}

// RevokePermission reports that a device permission was withdrawn. The
// listener is notified and the call is torn down.
func (s *Session) RevokePermission(reason string) {
	s.post(errorInput{
		err:   fmt.Errorf("%w: %s", ErrPermissionDenied, reason),
		fatal: true,
	})
}

func (s *Session) check() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if !s.deps.Permissions.Granted() {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Session) send(ev *omni.ClientEvent) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	ok := s.tr.Send(data)
	metrics.RecordFrame("control", len(data), ok)
	if !ok {
		s.log.Debug("call: drop event", "event", ev)
		return ErrNotConnected
	}
	s.log.Info("call: sent", "event", ev)
	return nil
}

func (s *Session) sendAudio(frame []byte) {
	s.sendAudioFrame(frame)
}

func (s *Session) sendAudioFrame(frame []byte) bool {
	data, err := omni.AudioAppend(frame, time.Now()).Marshal()
	if err != nil {
		return false
	}
	ok := s.tr.Send(data)
	metrics.RecordFrame("audio", len(frame), ok)
	return ok
}

func (s *Session) sendVideo(f video.Frame) {
	ev := omni.VideoFrameAppend(f.JPEG, f.Timestamp)
	data, err := ev.Marshal()
	if err != nil {
		return
	}
	ok := s.tr.Send(data)
	metrics.RecordFrame("video", len(f.JPEG), ok)
	s.log.Debug("call: video frame", "event", ev, "sent", ok)
}

// post hands in to the dispatch goroutine. Once the session is ending it
// never blocks, so teardown can run on the dispatch goroutine itself.
func (s *Session) post(in input) {
	select {
	case s.inputs <- in:
		return
	case <-s.closing:
	}
	select {
	case s.inputs <- in:
	default:
		s.log.Debug("call: input dropped during teardown", "input", fmt.Sprintf("%T", in))
	}
}

func (s *Session) dispatch() {
	defer close(s.done)
	for {
		select {
		case in := <-s.inputs:
			s.handle(in)
		case <-s.stop:
			for {
				select {
				case in := <-s.inputs:
					s.handle(in)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) handle(in input) {
	switch in := in.(type) {
	case messageInput:
		ev, err := omni.Parse(in.data)
		if err != nil {
			metrics.RecordMalformed()
			s.log.Warn("call: drop malformed event", "error", err)
			return
		}
		metrics.RecordInboundEvent(ev.EventType())
		s.log.Debug("call: received", "type", ev.EventType())
		s.machine.Handle(ev)

	case stateInput:
		s.log.Info("call: connection", "state", in.state.String())
		s.l.OnConnectionState(in.state)
		if in.state.Kind == transport.Failed {
			s.machine.Reset()
			s.EndCall()
		}

	case errorInput:
		s.l.OnError(in.err)
		if in.media || in.fatal {
			s.machine.Reset()
		}
		if in.fatal {
			s.log.Error("call: fatal", "error", in.err)
			s.EndCall()
		}

	case playbackInput:
		if in.err != nil {
			s.log.Warn("call: playback failed", "error", in.err)
			s.l.OnError(in.err)
		}
		s.l.OnPlaybackComplete(in.err)

	default:
		panic(fmt.Sprintf("call: unreachable input %T", in))
	}
}

// notifier forwards turn notifications to the listener. It only runs on
// the dispatch goroutine.
type notifier struct{ s *Session }

func (n notifier) OnTurnState(st turn.State) {
	n.s.turn.Store(int32(st))
	n.s.log.Debug("call: turn", "state", st.String())
	n.s.l.OnTurnState(st)
}

func (n notifier) OnUserTranscript(text string)   { n.s.l.OnUserTranscript(text) }
func (n notifier) OnTranscriptDelta(delta string) { n.s.l.OnTranscriptDelta(delta) }
func (n notifier) OnTranscriptDone(text string)   { n.s.l.OnTranscriptDone(text) }
func (n notifier) OnError(err error)              { n.s.l.OnError(err) }
