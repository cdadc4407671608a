// Package audio groups the audio sub-packages of a realtime call:
//
//   - wav: 16-bit PCM formats and per-frame WAV framing
//   - capture: microphone capture into fixed-duration frames
//   - playback: marker-driven collection and playback of spoken replies
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/omnicall/pkg/audio/capture"
//	    "github.com/haivivi/omnicall/pkg/audio/wav"
//	)
//
//	open := capture.Command("arecord", wav.Mono16K, capture.ArecordArgs(wav.Mono16K)...)
//	c := capture.New(open)
//	c.Start(func(frame []byte) { send(wav.Mono16K.Frame(frame)) })
package audio
