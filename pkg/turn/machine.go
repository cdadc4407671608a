// Package turn tracks whose turn it is to speak and routes reply audio and
// transcript text to their consumers.
package turn

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/haivivi/omnicall/pkg/omni"
)

// State is the conversational turn.
type State int

const (
	Idle State = iota
	UserSpeaking
	AISpeaking
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UserSpeaking:
		return "user_speaking"
	case AISpeaking:
		return "ai_speaking"
	default:
		return "unknown"
	}
}

// Playback receives reply audio markers.
type Playback interface {
	OnStartMarker()
	OnAppend(chunk []byte)
	OnEndMarker() bool
	Abort()
}

// Notifier receives turn notifications.
type Notifier interface {
	OnTurnState(State)
	OnUserTranscript(text string)
	OnTranscriptDelta(delta string)
	OnTranscriptDone(text string)
	OnError(err error)
}

// Machine applies server events to the turn state. It is synchronous and
// not safe for concurrent use: events must be fed from one goroutine in
// arrival order.
type Machine struct {
	state      State
	playback   Playback
	notify     Notifier
	transcript strings.Builder
	log        *slog.Logger
}

// New creates a Machine in the Idle state.
func New(pb Playback, n Notifier, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{playback: pb, notify: n, log: log}
}

// State returns the current turn.
func (m *Machine) State() State { return m.state }

// Transcript returns the assistant text accumulated for the current reply.
func (m *Machine) Transcript() string { return m.transcript.String() }

// Handle applies one event.
func (m *Machine) Handle(ev omni.ServerEvent) {
	switch ev := ev.(type) {
	case *omni.SpeechStarted:
		if m.state != Idle {
			m.log.Debug("turn: speech started ignored", "state", m.state)
			return
		}
		m.transition(UserSpeaking)

	case *omni.SpeechStopped:
		if m.state != UserSpeaking {
			m.log.Debug("turn: speech stopped ignored", "state", m.state)
			return
		}
		m.transition(Idle)

	case *omni.ResponseCreated:
		m.playback.OnStartMarker()
		m.transition(AISpeaking)

	case *omni.AudioDelta:
		m.playback.OnAppend(ev.Audio)

	case *omni.AudioDone:
		if m.state != AISpeaking {
			m.log.Debug("turn: audio done ignored", "state", m.state)
			return
		}
		m.playback.OnEndMarker()

	case *omni.ResponseDone:
		m.transcript.Reset()
		if m.state == AISpeaking {
			m.transition(Idle)
		}

	case *omni.TextDelta:
		m.transcript.WriteString(ev.Delta)
		m.notify.OnTranscriptDelta(ev.Delta)

	case *omni.TextDone:
		text := m.transcript.String()
		if text == "" {
			text = ev.Text
		}
		m.notify.OnTranscriptDone(text)
		m.transcript.Reset()

	case *omni.TranscriptionCompleted:
		m.notify.OnUserTranscript(ev.Transcript)

	case *omni.ErrorEvent:
		m.notify.OnError(ev.Err)

	case *omni.Unknown:
		m.log.Debug("turn: unhandled event", "type", ev.Type)

	default:
		panic(fmt.Sprintf("turn: unreachable event %T", ev))
	}
}

// Reset drops any reply being collected. The turn state is kept.
func (m *Machine) Reset() {
	m.playback.Abort()
}

func (m *Machine) transition(to State) {
	if m.state == to {
		return
	}
	m.log.Debug("turn: transition", "from", m.state, "to", to)
	m.state = to
	m.notify.OnTurnState(to)
}
