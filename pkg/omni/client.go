package omni

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// videoLogPrefix is how many base64 characters of a video frame are logged.
const videoLogPrefix = 32

// ClientEvent is an outbound envelope. Build one with the constructors below
// and encode it with Marshal.
type ClientEvent struct {
	EventID         string            `json:"event_id,omitempty"`
	Type            string            `json:"type"`
	Session         *SessionConfig    `json:"session,omitempty"`
	Audio           []byte            `json:"audio,omitempty"`
	VideoFrame      []byte            `json:"video_frame,omitempty"`
	Item            *ConversationItem `json:"item,omitempty"`
	ClientTimestamp Millis            `json:"client_timestamp,omitempty"`
}

// generateEventID generates a unique event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:8]
}

// SessionUpdate builds the session.update event. A nil config sends
// DefaultSessionConfig.
func SessionUpdate(cfg *SessionConfig) *ClientEvent {
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}
	return &ClientEvent{
		EventID: generateEventID(),
		Type:    EventTypeSessionUpdate,
		Session: cfg,
	}
}

// AudioAppend builds an input_audio_buffer.append event for one WAV frame.
func AudioAppend(audio []byte, ts time.Time) *ClientEvent {
	return &ClientEvent{
		EventID:         generateEventID(),
		Type:            EventTypeInputAudioAppend,
		Audio:           audio,
		ClientTimestamp: MillisOf(ts),
	}
}

// VideoFrameAppend builds an input_audio_buffer.append_video_frame event for
// one JPEG frame.
func VideoFrameAppend(frame []byte, ts time.Time) *ClientEvent {
	return &ClientEvent{
		EventID:         generateEventID(),
		Type:            EventTypeInputVideoFrameAppend,
		VideoFrame:      frame,
		ClientTimestamp: MillisOf(ts),
	}
}

// Commit builds an input_audio_buffer.commit event.
func Commit(ts time.Time) *ClientEvent {
	return &ClientEvent{
		EventID:         generateEventID(),
		Type:            EventTypeInputAudioCommit,
		ClientTimestamp: MillisOf(ts),
	}
}

// Cancel builds a response.cancel event.
func Cancel(ts time.Time) *ClientEvent {
	return &ClientEvent{
		EventID:         generateEventID(),
		Type:            EventTypeResponseCancel,
		ClientTimestamp: MillisOf(ts),
	}
}

// ConversationItemCreate builds a conversation.item.create event carrying a
// function call result.
func ConversationItemCreate(out FunctionCallOutput) *ClientEvent {
	id := out.EventID
	if id == "" {
		id = generateEventID()
	}
	return &ClientEvent{
		EventID: id,
		Type:    EventTypeConversationItemCreate,
		Item: &ConversationItem{
			Type:   ItemTypeFunctionCallOutput,
			CallID: out.CallID,
			Output: out.Output,
		},
	}
}

// Marshal encodes the event as a JSON envelope. Binary payloads are encoded
// as standard base64.
func (e *ClientEvent) Marshal() ([]byte, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("omni: marshal: missing event type")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("omni: marshal %s: %w", e.Type, err)
	}
	return data, nil
}

// IsMedia reports whether the event carries an audio or video payload.
func (e *ClientEvent) IsMedia() bool {
	return e.Type == EventTypeInputAudioAppend || e.Type == EventTypeInputVideoFrameAppend
}

// LogValue implements slog.LogValuer. Audio is reported by length only and
// video frames are truncated.
func (e *ClientEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", e.Type),
	}
	if e.EventID != "" {
		attrs = append(attrs, slog.String("event_id", e.EventID))
	}
	if e.Audio != nil {
		attrs = append(attrs, slog.Int("audio_bytes", len(e.Audio)))
	}
	if e.VideoFrame != nil {
		enc := base64.StdEncoding.EncodeToString(e.VideoFrame)
		if len(enc) > videoLogPrefix {
			enc = enc[:videoLogPrefix] + "..."
		}
		attrs = append(attrs,
			slog.Int("video_bytes", len(e.VideoFrame)),
			slog.String("video_frame", enc),
		)
	}
	if e.Session != nil {
		attrs = append(attrs,
			slog.String("input_audio_format", e.Session.InputAudioFormat),
			slog.String("output_audio_format", e.Session.OutputAudioFormat),
			slog.Int("tools", len(e.Session.Tools)),
		)
	}
	if e.Item != nil {
		attrs = append(attrs,
			slog.String("item_type", e.Item.Type),
			slog.String("output", e.Item.Output),
		)
	}
	if e.ClientTimestamp != 0 {
		attrs = append(attrs, slog.Int64("client_timestamp", int64(e.ClientTimestamp)))
	}
	return slog.GroupValue(attrs...)
}
