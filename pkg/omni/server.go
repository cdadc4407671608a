package omni

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ServerEvent is an inbound event. The set of implementations is closed:
// SpeechStarted, SpeechStopped, TranscriptionCompleted, ResponseCreated,
// TextDelta, TextDone, AudioDelta, AudioDone, ResponseDone, ErrorEvent and
// Unknown.
type ServerEvent interface {
	// EventType returns the wire type of the envelope.
	EventType() string

	serverEvent()
}

// SpeechStarted reports that server VAD detected the user starting to speak.
type SpeechStarted struct {
	EventID      string
	AudioStartMs int
}

// SpeechStopped reports that server VAD detected the end of user speech.
type SpeechStopped struct {
	EventID    string
	AudioEndMs int
}

// TranscriptionCompleted carries the transcript of the user's utterance.
type TranscriptionCompleted struct {
	EventID    string
	ItemID     string
	Transcript string
}

// ResponseCreated marks the start of an assistant response.
type ResponseCreated struct {
	EventID    string
	ResponseID string
}

// TextDelta is an incremental piece of assistant text, either the transcript
// of the audio reply or a text-only reply.
type TextDelta struct {
	// Type is the wire type: response.audio_transcript.delta or
	// response.text.delta.
	Type       string
	EventID    string
	ResponseID string
	Delta      string
}

// TextDone marks the end of a text stream.
type TextDone struct {
	Type       string
	EventID    string
	ResponseID string
	// Text is the full text when the server includes it.
	Text string
}

// AudioDelta carries a chunk of encoded reply audio.
type AudioDelta struct {
	EventID    string
	ResponseID string
	Audio      []byte
}

// AudioDone marks the end of the reply audio.
type AudioDone struct {
	EventID    string
	ResponseID string
}

// ResponseDone marks the end of an assistant response.
type ResponseDone struct {
	EventID  string
	Response *ResponseInfo
}

// ErrorEvent is an error reported by the server.
type ErrorEvent struct {
	EventID string
	Err     *Error
}

// Unknown is any envelope whose type has no dedicated representation.
type Unknown struct {
	Type    string
	EventID string
	Raw     json.RawMessage
}

func (*SpeechStarted) EventType() string          { return EventTypeInputSpeechStarted }
func (*SpeechStopped) EventType() string          { return EventTypeInputSpeechStopped }
func (*TranscriptionCompleted) EventType() string { return EventTypeInputTranscriptionDone }
func (*ResponseCreated) EventType() string        { return EventTypeResponseCreated }
func (e *TextDelta) EventType() string            { return e.Type }
func (e *TextDone) EventType() string             { return e.Type }
func (*AudioDelta) EventType() string             { return EventTypeResponseAudioDelta }
func (*AudioDone) EventType() string              { return EventTypeResponseAudioDone }
func (*ResponseDone) EventType() string           { return EventTypeResponseDone }
func (*ErrorEvent) EventType() string             { return EventTypeError }
func (e *Unknown) EventType() string              { return e.Type }

func (*SpeechStarted) serverEvent()          {}
func (*SpeechStopped) serverEvent()          {}
func (*TranscriptionCompleted) serverEvent() {}
func (*ResponseCreated) serverEvent()        {}
func (*TextDelta) serverEvent()              {}
func (*TextDone) serverEvent()               {}
func (*AudioDelta) serverEvent()             {}
func (*AudioDone) serverEvent()              {}
func (*ResponseDone) serverEvent()           {}
func (*ErrorEvent) serverEvent()             {}
func (*Unknown) serverEvent()                {}

func (e *ErrorEvent) Error() string { return e.Err.Error() }
func (e *ErrorEvent) Unwrap() error { return e.Err }

// envelope holds every field Parse reads. Fields absent from a given event
// type stay zero.
type envelope struct {
	Type         string          `json:"type"`
	EventID      string          `json:"event_id"`
	ItemID       string          `json:"item_id"`
	ResponseID   string          `json:"response_id"`
	AudioStartMs int             `json:"audio_start_ms"`
	AudioEndMs   int             `json:"audio_end_ms"`
	Transcript   string          `json:"transcript"`
	Text         string          `json:"text"`
	Delta        string          `json:"delta"`
	Response     *ResponseInfo   `json:"response"`
	Error        json.RawMessage `json:"error"`
}

// Parse decodes one inbound envelope. Malformed JSON, a missing type and
// undecodable audio return an error wrapping ErrMalformed.
func Parse(data []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case EventTypeInputSpeechStarted:
		return &SpeechStarted{EventID: env.EventID, AudioStartMs: env.AudioStartMs}, nil

	case EventTypeInputSpeechStopped:
		return &SpeechStopped{EventID: env.EventID, AudioEndMs: env.AudioEndMs}, nil

	case EventTypeInputTranscriptionDone:
		return &TranscriptionCompleted{
			EventID:    env.EventID,
			ItemID:     env.ItemID,
			Transcript: env.Transcript,
		}, nil

	case EventTypeResponseCreated:
		ev := &ResponseCreated{EventID: env.EventID, ResponseID: env.ResponseID}
		if env.Response != nil && env.Response.ID != "" {
			ev.ResponseID = env.Response.ID
		}
		return ev, nil

	case EventTypeResponseTranscriptDelta, EventTypeResponseTextDelta:
		return &TextDelta{
			Type:       env.Type,
			EventID:    env.EventID,
			ResponseID: env.ResponseID,
			Delta:      env.Delta,
		}, nil

	case EventTypeResponseTranscriptDone, EventTypeResponseTextDone:
		text := env.Transcript
		if text == "" {
			text = env.Text
		}
		return &TextDone{
			Type:       env.Type,
			EventID:    env.EventID,
			ResponseID: env.ResponseID,
			Text:       text,
		}, nil

	case EventTypeResponseAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(env.Delta)
		if err != nil {
			return nil, fmt.Errorf("%w: audio delta: %v", ErrMalformed, err)
		}
		return &AudioDelta{EventID: env.EventID, ResponseID: env.ResponseID, Audio: audio}, nil

	case EventTypeResponseAudioDone:
		return &AudioDone{EventID: env.EventID, ResponseID: env.ResponseID}, nil

	case EventTypeResponseDone:
		return &ResponseDone{EventID: env.EventID, Response: env.Response}, nil

	case EventTypeError:
		return &ErrorEvent{EventID: env.EventID, Err: parseError(env.Error, env.EventID)}, nil
	}

	return &Unknown{Type: env.Type, EventID: env.EventID, Raw: json.RawMessage(data)}, nil
}

// parseError accepts the error field either as an object or a bare string.
func parseError(raw json.RawMessage, eventID string) *Error {
	raw = bytes.TrimSpace(raw)
	e := &Error{EventID: eventID}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		e.Message = "unknown error"
		return e
	}
	if raw[0] == '"' {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			e.Message = msg
			return e
		}
	}
	if err := json.Unmarshal(raw, e); err != nil {
		e.Message = string(raw)
	}
	if e.EventID == "" {
		e.EventID = eventID
	}
	return e
}
