package call

import (
	"github.com/haivivi/omnicall/pkg/transport"
)

// input is everything the dispatch goroutine consumes.
type input interface {
	input()
}

// messageInput is one raw inbound envelope.
type messageInput struct {
	data []byte
}

// stateInput is a transport state change.
type stateInput struct {
	state transport.State
}

// errorInput is an error from a background component.
type errorInput struct {
	err error
	// media errors abort the reply being collected.
	media bool
	// fatal errors tear the call down.
	fatal bool
}

// playbackInput is the result of one reply playback.
type playbackInput struct {
	err error
}

func (messageInput) input()  {}
func (stateInput) input()    {}
func (errorInput) input()    {}
func (playbackInput) input() {}

// observer adapts the session to transport.Observer.
type observer struct{ s *Session }

func (o observer) OnState(st transport.State) { o.s.post(stateInput{state: st}) }
func (o observer) OnMessage(data []byte)      { o.s.post(messageInput{data: data}) }
func (o observer) OnError(err error)          { o.s.post(errorInput{err: err}) }
