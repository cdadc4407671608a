// Package wav frames raw PCM samples into self-describing RIFF/WAVE containers.
//
// Every frame carries its own 44-byte header so that each outbound chunk is an
// independently playable unit:
//
//	frame := wav.Mono16K.Frame(pcmBytes)
//	// len(frame) == len(pcmBytes) + wav.HeaderSize
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// HeaderSize is the size of the canonical PCM WAVE header in bytes.
const HeaderSize = 44

// Mono16K is 16-bit little-endian PCM, 16000 Hz, one channel.
var Mono16K = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// Format describes a linear PCM stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign returns the number of bytes per sample frame (all channels).
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// BytesInDuration returns the number of bytes covering d, aligned to whole
// sample frames.
func (f Format) BytesInDuration(d time.Duration) int {
	samples := int64(f.SampleRate) * int64(d) / int64(time.Second)
	return int(samples) * f.BlockAlign()
}

// Duration returns the playing time of n bytes.
func (f Format) Duration(n int) time.Duration {
	if f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.ByteRate()))
}

func (f Format) String() string {
	return fmt.Sprintf("audio/L%d; rate=%d; channels=%d", f.BitsPerSample, f.SampleRate, f.Channels)
}

// Header returns a fresh 44-byte header for a payload of dataSize bytes.
func (f Format) Header(dataSize int) []byte {
	h := make([]byte, HeaderSize)
	f.putHeader(h, dataSize)
	return h
}

func (f Format) putHeader(h []byte, dataSize int) {
	le := binary.LittleEndian
	copy(h[0:4], "RIFF")
	le.PutUint32(h[4:8], uint32(HeaderSize+dataSize-8))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16)
	le.PutUint16(h[20:22], 1) // PCM
	le.PutUint16(h[22:24], uint16(f.Channels))
	le.PutUint32(h[24:28], uint32(f.SampleRate))
	le.PutUint32(h[28:32], uint32(f.ByteRate()))
	le.PutUint16(h[32:34], uint16(f.BlockAlign()))
	le.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	le.PutUint32(h[40:44], uint32(dataSize))
}

// Frame returns a new slice holding the header followed by a copy of pcm.
func (f Format) Frame(pcm []byte) []byte {
	out := make([]byte, HeaderSize+len(pcm))
	f.putHeader(out, len(pcm))
	copy(out[HeaderSize:], pcm)
	return out
}

// ErrInvalidHeader is returned by ParseHeader for data that is not a PCM WAVE
// header.
var ErrInvalidHeader = errors.New("wav: invalid header")

// Header is a decoded WAVE header.
type Header struct {
	Format
	// RIFFSize is the RIFF chunk size (total length minus 8).
	RIFFSize int
	// DataSize is the payload length declared by the data chunk.
	DataSize int
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short buffer (%d bytes)", ErrInvalidHeader, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: bad chunk ids", ErrInvalidHeader)
	}
	le := binary.LittleEndian
	if le.Uint16(b[20:22]) != 1 {
		return Header{}, fmt.Errorf("%w: not PCM", ErrInvalidHeader)
	}
	return Header{
		Format: Format{
			SampleRate:    int(le.Uint32(b[24:28])),
			Channels:      int(le.Uint16(b[22:24])),
			BitsPerSample: int(le.Uint16(b[34:36])),
		},
		RIFFSize: int(le.Uint32(b[4:8])),
		DataSize: int(le.Uint32(b[40:44])),
	}, nil
}

// Split parses a framed chunk and returns its header and payload. The payload
// aliases b.
func Split(b []byte) (Header, []byte, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	end := HeaderSize + h.DataSize
	if end > len(b) {
		return Header{}, nil, fmt.Errorf("%w: data size %d exceeds buffer", ErrInvalidHeader, h.DataSize)
	}
	return h, b[HeaderSize:end], nil
}
