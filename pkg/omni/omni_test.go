package omni

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, ev *ClientEvent) map[string]any {
	t.Helper()
	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	return m
}

func TestSessionUpdate_Default(t *testing.T) {
	m := decode(t, SessionUpdate(nil))

	if m["type"] != "session.update" {
		t.Fatalf("type = %v", m["type"])
	}
	if id, _ := m["event_id"].(string); !strings.HasPrefix(id, "evt_") {
		t.Errorf("event_id = %q", id)
	}

	s := m["session"].(map[string]any)
	if s["input_audio_format"] != "wav" || s["output_audio_format"] != "mp3" {
		t.Errorf("formats = %v/%v", s["input_audio_format"], s["output_audio_format"])
	}
	if v, ok := s["instructions"]; !ok || v != "" {
		t.Errorf("instructions = %v (present %v)", v, ok)
	}
	if td := s["turn_detection"].(map[string]any); td["type"] != "server_vad" {
		t.Errorf("turn_detection = %v", td)
	}

	beta := s["beta_fields"].(map[string]any)
	if beta["chat_mode"] != "video_passive" || beta["tts_source"] != "e2e" || beta["auto_search"] != true {
		t.Errorf("beta_fields = %v", beta)
	}

	tools := s["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("len(tools) = %d", len(tools))
	}
	tool := tools[0].(map[string]any)
	if tool["type"] != "function" || tool["name"] != "search_engine" {
		t.Errorf("tool = %v", tool)
	}
	params := tool["parameters"].(map[string]any)
	if params["type"] != "object" {
		t.Errorf("parameters.type = %v", params["type"])
	}
	q := params["properties"].(map[string]any)["q"].(map[string]any)
	if q["type"] != "string" {
		t.Errorf("q.type = %v", q["type"])
	}
	if req := params["required"].([]any); len(req) != 1 || req[0] != "q" {
		t.Errorf("required = %v", req)
	}
}

func TestClientEvents(t *testing.T) {
	ts := time.UnixMilli(1700000000123)

	tests := []struct {
		name string
		ev   *ClientEvent
		want map[string]any
	}{
		{
			name: "audio",
			ev:   AudioAppend([]byte{1, 2, 3}, ts),
			want: map[string]any{"type": "input_audio_buffer.append", "audio": "AQID", "client_timestamp": 1700000000123.0},
		},
		{
			name: "video",
			ev:   VideoFrameAppend([]byte{0xff, 0xd8}, ts),
			want: map[string]any{"type": "input_audio_buffer.append_video_frame", "video_frame": "/9g=", "client_timestamp": 1700000000123.0},
		},
		{
			name: "commit",
			ev:   Commit(ts),
			want: map[string]any{"type": "input_audio_buffer.commit", "client_timestamp": 1700000000123.0},
		},
		{
			name: "cancel",
			ev:   Cancel(ts),
			want: map[string]any{"type": "response.cancel", "client_timestamp": 1700000000123.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decode(t, tt.ev)
			for k, v := range tt.want {
				if m[k] != v {
					t.Errorf("%s = %v, want %v", k, m[k], v)
				}
			}
		})
	}
}

func TestConversationItemCreate(t *testing.T) {
	m := decode(t, ConversationItemCreate(FunctionCallOutput{Output: `{"ok":true}`, EventID: "evt_1"}))
	if m["event_id"] != "evt_1" {
		t.Errorf("event_id = %v", m["event_id"])
	}
	item := m["item"].(map[string]any)
	if item["type"] != "function_call_output" || item["output"] != `{"ok":true}` {
		t.Errorf("item = %v", item)
	}
	if _, ok := item["call_id"]; ok {
		t.Error("empty call_id should be omitted")
	}
}

func TestClientEvent_LogValueElidesAudio(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	audio := bytes.Repeat([]byte("secret-pcm"), 100)
	logger.InfoContext(context.Background(), "send", "event", AudioAppend(audio, time.Now()))
	out := buf.String()
	if strings.Contains(out, "c2VjcmV0") {
		t.Fatalf("audio payload leaked into log: %s", out)
	}
	if !strings.Contains(out, "event.audio_bytes=1000") {
		t.Errorf("log missing audio length: %s", out)
	}

	buf.Reset()
	frame := bytes.Repeat([]byte{0xab}, 600)
	logger.Info("send", "event", VideoFrameAppend(frame, time.Now()))
	if n := len(buf.String()); n > 400 {
		t.Errorf("video log line not truncated (%d bytes)", n)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, ev ServerEvent)
	}{
		{
			name:  "speech started",
			input: `{"type":"input_audio_buffer.speech_started","audio_start_ms":120}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*SpeechStarted); e.AudioStartMs != 120 {
					t.Errorf("AudioStartMs = %d", e.AudioStartMs)
				}
			},
		},
		{
			name:  "speech stopped",
			input: `{"type":"input_audio_buffer.speech_stopped"}`,
			check: func(t *testing.T, ev ServerEvent) { _ = ev.(*SpeechStopped) },
		},
		{
			name:  "transcription",
			input: `{"type":"conversation.item.input_audio_transcription.completed","transcript":"你好"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*TranscriptionCompleted); e.Transcript != "你好" {
					t.Errorf("Transcript = %q", e.Transcript)
				}
			},
		},
		{
			name:  "response created",
			input: `{"type":"response.created","response":{"id":"resp_1"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*ResponseCreated); e.ResponseID != "resp_1" {
					t.Errorf("ResponseID = %q", e.ResponseID)
				}
			},
		},
		{
			name:  "transcript delta",
			input: `{"type":"response.audio_transcript.delta","delta":"hel"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*TextDelta); e.Delta != "hel" {
					t.Errorf("Delta = %q", e.Delta)
				}
			},
		},
		{
			name:  "text delta",
			input: `{"type":"response.text.delta","delta":"lo"}`,
			check: func(t *testing.T, ev ServerEvent) {
				e := ev.(*TextDelta)
				if e.Delta != "lo" || e.EventType() != EventTypeResponseTextDelta {
					t.Errorf("got %+v", e)
				}
			},
		},
		{
			name:  "transcript done",
			input: `{"type":"response.audio_transcript.done","transcript":"hello"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*TextDone); e.Text != "hello" {
					t.Errorf("Text = %q", e.Text)
				}
			},
		},
		{
			name:  "text done",
			input: `{"type":"response.text.done","text":"hi"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*TextDone); e.Text != "hi" {
					t.Errorf("Text = %q", e.Text)
				}
			},
		},
		{
			name:  "audio delta",
			input: `{"type":"response.audio.delta","delta":"AQID"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*AudioDelta); !bytes.Equal(e.Audio, []byte{1, 2, 3}) {
					t.Errorf("Audio = %v", e.Audio)
				}
			},
		},
		{
			name:  "audio done",
			input: `{"type":"response.audio.done"}`,
			check: func(t *testing.T, ev ServerEvent) { _ = ev.(*AudioDone) },
		},
		{
			name:  "response done",
			input: `{"type":"response.done","response":{"id":"r","status":"completed","usage":{"total_tokens":9}}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e := ev.(*ResponseDone)
				if e.Response == nil || e.Response.Usage == nil || e.Response.Usage.TotalTokens != 9 {
					t.Errorf("Response = %+v", e.Response)
				}
			},
		},
		{
			name:  "error object",
			input: `{"type":"error","error":{"type":"invalid_request_error","code":"RateLimitExceeded","message":"slow down"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e := ev.(*ErrorEvent)
				if e.Err.Message != "slow down" || !e.Err.IsRateLimit() {
					t.Errorf("Err = %+v", e.Err)
				}
				if got, ok := AsError(e); !ok || got != e.Err {
					t.Error("AsError did not unwrap ErrorEvent")
				}
			},
		},
		{
			name:  "error string",
			input: `{"type":"error","error":"boom"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*ErrorEvent); e.Err.Message != "boom" {
					t.Errorf("Message = %q", e.Err.Message)
				}
			},
		},
		{
			name:  "error missing",
			input: `{"type":"error"}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*ErrorEvent); e.Err.Message == "" {
					t.Error("empty message")
				}
			},
		},
		{
			name:  "unknown",
			input: `{"type":"session.created","session":{"id":"s"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				if e := ev.(*Unknown); e.Type != "session.created" || len(e.Raw) == 0 {
					t.Errorf("got %+v", e)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, input := range []string{
		``,
		`{`,
		`[]`,
		`null`,
		`{"event_id":"x"}`,
		`{"type":""}`,
		`{"type":"response.audio.delta","delta":"***"}`,
	} {
		ev, err := Parse([]byte(input))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", input, err)
		}
		if ev != nil {
			t.Errorf("Parse(%q) returned event %T", input, ev)
		}
	}
}

func TestMillis(t *testing.T) {
	if MillisOf(time.Time{}) != 0 {
		t.Error("zero time should map to 0")
	}
	ts := time.UnixMilli(1234567)
	if got := MillisOf(ts).Time(); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
	if Millis(42).String() != "42" {
		t.Errorf("String() = %q", Millis(42).String())
	}
}

func TestError_Classify(t *testing.T) {
	tests := []struct {
		code      string
		auth      bool
		rateLimit bool
		retryable bool
	}{
		{ErrCodeInvalidAPIKey, true, false, false},
		{ErrCodeAccessDenied, true, false, false},
		{ErrCodeRateLimitExceeded, false, true, true},
		{ErrCodeQuotaExceeded, false, true, true},
		{ErrCodeServiceBusy, false, false, true},
		{ErrCodeInternalError, false, false, true},
		{ErrCodeInvalidParameter, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := &Error{Code: tt.code}
			if e.IsAuth() != tt.auth || e.IsRateLimit() != tt.rateLimit || e.Retryable() != tt.retryable {
				t.Errorf("%s: auth=%v rate=%v retry=%v", tt.code, e.IsAuth(), e.IsRateLimit(), e.Retryable())
			}
		})
	}

	if got := (&Error{Code: "X", Message: "y"}).Error(); got != "omni: X - y" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&Error{}).Error(); got != "omni: unknown error" {
		t.Errorf("Error() = %q", got)
	}
}
