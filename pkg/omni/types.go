package omni

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Audio formats understood by the service.
const (
	AudioFormatPCM16 = "pcm16"
	AudioFormatWAV   = "wav"
	AudioFormatMP3   = "mp3"
)

// VAD modes for voice activity detection.
const (
	VADModeServerVAD = "server_vad" // Server-side VAD (default)
	VADModeDisabled  = "disabled"   // Manual mode, no VAD
)

// Chat modes for BetaFields.ChatMode.
const (
	ChatModeVideoPassive = "video_passive"
	ChatModeAudio        = "audio"
)

// SessionConfig is the payload of a session.update event.
type SessionConfig struct {
	// InputAudioFormat specifies the input audio format. Default: wav.
	InputAudioFormat string `json:"input_audio_format,omitempty" yaml:"input_audio_format,omitempty"`

	// OutputAudioFormat specifies the output audio format. Default: mp3.
	OutputAudioFormat string `json:"output_audio_format,omitempty" yaml:"output_audio_format,omitempty"`

	// Voice is the voice ID for speech output.
	Voice string `json:"voice,omitempty" yaml:"voice,omitempty"`

	// Instructions is the system prompt. It is always sent, possibly empty.
	Instructions string `json:"instructions" yaml:"instructions,omitempty"`

	// TurnDetection configures voice activity detection.
	TurnDetection *TurnDetection `json:"turn_detection,omitempty" yaml:"turn_detection,omitempty"`

	// BetaFields carries service-specific extensions.
	BetaFields *BetaFields `json:"beta_fields,omitempty" yaml:"beta_fields,omitempty"`

	// Tools declares the functions the assistant may call.
	Tools []Tool `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	// Type is the VAD mode: "server_vad" or "disabled".
	Type string `json:"type" yaml:"type"`

	// Threshold is the VAD sensitivity (0.0-1.0).
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// PrefixPaddingMs is the padding before speech start (ms).
	PrefixPaddingMs int `json:"prefix_padding_ms,omitempty" yaml:"prefix_padding_ms,omitempty"`

	// SilenceDurationMs is the silence duration to detect end of speech (ms).
	SilenceDurationMs int `json:"silence_duration_ms,omitempty" yaml:"silence_duration_ms,omitempty"`
}

// BetaFields holds service extensions sent inside session.update.
type BetaFields struct {
	ChatMode   string `json:"chat_mode,omitempty" yaml:"chat_mode,omitempty"`
	TTSSource  string `json:"tts_source,omitempty" yaml:"tts_source,omitempty"`
	AutoSearch bool   `json:"auto_search,omitempty" yaml:"auto_search,omitempty"`
}

// Tool is a function declaration.
type Tool struct {
	Type        string             `json:"type" yaml:"type"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty" yaml:"-"`
}

// NewFunctionTool returns a function tool declaration.
func NewFunctionTool(name, description string, params *jsonschema.Schema) Tool {
	return Tool{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  params,
	}
}

// SearchEngineTool is the built-in web search function the service exposes to
// the model.
func SearchEngineTool() Tool {
	return NewFunctionTool("search_engine", "基于给定的查询执行通用搜索", &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"q": {Type: "string", Description: "搜索查询"},
		},
		Required: []string{"q"},
	})
}

// DefaultSessionConfig returns the configuration sent on every (re)connect
// unless overridden: WAV in, MP3 out, server VAD, passive video chat and the
// search tool.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		InputAudioFormat:  AudioFormatWAV,
		OutputAudioFormat: AudioFormatMP3,
		TurnDetection:     &TurnDetection{Type: VADModeServerVAD},
		BetaFields: &BetaFields{
			ChatMode:   ChatModeVideoPassive,
			TTSSource:  "e2e",
			AutoSearch: true,
		},
		Tools: []Tool{SearchEngineTool()},
	}
}

// FunctionCallOutput is the result of a tool invocation returned to the model.
type FunctionCallOutput struct {
	// CallID identifies the function call being answered. Optional.
	CallID string
	// Output is the serialized tool result.
	Output string
	// EventID overrides the generated event ID. Optional.
	EventID string
}

// ConversationItem is the item payload of conversation.item.create.
type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// ResponseInfo contains response state information.
type ResponseInfo struct {
	ID     string      `json:"id,omitempty"`
	Status string      `json:"status,omitempty"`
	Usage  *UsageStats `json:"usage,omitempty"`
}

// UsageStats contains token usage information.
type UsageStats struct {
	TotalTokens  int `json:"total_tokens,omitempty"`
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}
