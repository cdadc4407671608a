package call

import (
	"github.com/haivivi/omnicall/pkg/transport"
	"github.com/haivivi/omnicall/pkg/turn"
)

// Listener receives every notification a Session produces. All methods are
// called from the session's dispatch goroutine, one at a time and in event
// order, so implementations need no locking of their own state but must
// not block for long.
type Listener interface {
	// OnConnectionState reports transport state changes.
	OnConnectionState(transport.State)

	// OnTurnState reports turn changes.
	OnTurnState(turn.State)

	// OnUserTranscript delivers the recognised text of the user's utterance.
	OnUserTranscript(text string)

	// OnTranscriptDelta delivers an incremental piece of the assistant reply.
	OnTranscriptDelta(delta string)

	// OnTranscriptDone delivers the complete assistant reply text.
	OnTranscriptDone(text string)

	// OnPlaybackComplete reports the end of a reply playback.
	OnPlaybackComplete(err error)

	// OnError reports transport, protocol, media and permission errors.
	OnError(err error)
}

// NopListener ignores every notification. Embed it to implement only the
// methods of interest.
type NopListener struct{}

func (NopListener) OnConnectionState(transport.State) {}
func (NopListener) OnTurnState(turn.State)            {}
func (NopListener) OnUserTranscript(string)           {}
func (NopListener) OnTranscriptDelta(string)          {}
func (NopListener) OnTranscriptDone(string)           {}
func (NopListener) OnPlaybackComplete(error)          {}
func (NopListener) OnError(error)                     {}

var _ Listener = NopListener{}
