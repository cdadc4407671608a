package omni

// Event types for realtime communication.
const (
	// Client events
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioAppend       = "input_audio_buffer.append"
	EventTypeInputVideoFrameAppend  = "input_audio_buffer.append_video_frame"
	EventTypeInputAudioCommit       = "input_audio_buffer.commit"
	EventTypeResponseCancel         = "response.cancel"
	EventTypeConversationItemCreate = "conversation.item.create"

	// Server events
	EventTypeSessionCreated          = "session.created"
	EventTypeSessionUpdated          = "session.updated"
	EventTypeConversationCreated     = "conversation.created"
	EventTypeConversationItemCreated = "conversation.item.created"
	EventTypeInputAudioCommitted     = "input_audio_buffer.committed"
	EventTypeInputSpeechStarted      = "input_audio_buffer.speech_started"
	EventTypeInputSpeechStopped      = "input_audio_buffer.speech_stopped"
	EventTypeInputTranscriptionDone  = "conversation.item.input_audio_transcription.completed"
	EventTypeResponseCreated         = "response.created"
	EventTypeResponseTextDelta       = "response.text.delta"
	EventTypeResponseTextDone        = "response.text.done"
	EventTypeResponseTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseTranscriptDone  = "response.audio_transcript.done"
	EventTypeResponseAudioDelta      = "response.audio.delta"
	EventTypeResponseAudioDone       = "response.audio.done"
	EventTypeResponseDone            = "response.done"
	EventTypeError                   = "error"
)

// Item types for conversation.item.create.
const (
	ItemTypeFunctionCallOutput = "function_call_output"
)
