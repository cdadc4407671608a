package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestFrame_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 320, 3200, 65537} {
		pcm := make([]byte, n)
		for i := range pcm {
			pcm[i] = byte(i * 7)
		}

		frame := Mono16K.Frame(pcm)
		if len(frame) != n+HeaderSize {
			t.Fatalf("n=%d: len(frame) = %d, want %d", n, len(frame), n+HeaderSize)
		}

		h, payload, err := Split(frame)
		if err != nil {
			t.Fatalf("n=%d: Split error: %v", n, err)
		}
		if h.DataSize != n {
			t.Errorf("n=%d: DataSize = %d", n, h.DataSize)
		}
		if h.RIFFSize != n+HeaderSize-8 {
			t.Errorf("n=%d: RIFFSize = %d, want %d", n, h.RIFFSize, n+HeaderSize-8)
		}
		if h.Format != Mono16K {
			t.Errorf("n=%d: Format = %+v", n, h.Format)
		}
		if !bytes.Equal(payload, pcm) {
			t.Errorf("n=%d: payload mismatch", n)
		}
	}
}

func TestHeader_Layout(t *testing.T) {
	h := Mono16K.Header(100)
	le := binary.LittleEndian

	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"chunk size", le.Uint32(h[4:8]), 136},
		{"fmt size", le.Uint32(h[16:20]), 16},
		{"audio format", uint32(le.Uint16(h[20:22])), 1},
		{"channels", uint32(le.Uint16(h[22:24])), 1},
		{"sample rate", le.Uint32(h[24:28]), 16000},
		{"byte rate", le.Uint32(h[28:32]), 32000},
		{"block align", uint32(le.Uint16(h[32:34])), 2},
		{"bits per sample", uint32(le.Uint16(h[34:36])), 16},
		{"data size", le.Uint32(h[40:44]), 100},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for _, id := range []struct {
		off  int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(h[id.off : id.off+4]); got != id.want {
			t.Errorf("id at %d = %q, want %q", id.off, got, id.want)
		}
	}
}

func TestFrame_DoesNotAliasInput(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	frame := Mono16K.Frame(pcm)
	pcm[0] = 9
	if frame[HeaderSize] != 1 {
		t.Fatal("frame aliases the input slice")
	}
}

func TestParseHeader_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("RIFF")},
		{"bad id", append([]byte("RIFX"), make([]byte, 40)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHeader(tt.data); !errors.Is(err, ErrInvalidHeader) {
				t.Fatalf("ParseHeader error = %v, want ErrInvalidHeader", err)
			}
		})
	}

	frame := Mono16K.Frame([]byte{1, 2})
	if _, _, err := Split(frame[:HeaderSize+1]); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("Split on truncated frame error = %v", err)
	}
}

func TestFormat_Durations(t *testing.T) {
	if got := Mono16K.BytesInDuration(100 * time.Millisecond); got != 3200 {
		t.Errorf("BytesInDuration(100ms) = %d, want 3200", got)
	}
	if got := Mono16K.Duration(32000); got != time.Second {
		t.Errorf("Duration(32000) = %v, want 1s", got)
	}
	if got := Mono16K.String(); got != "audio/L16; rate=16000; channels=1" {
		t.Errorf("String() = %q", got)
	}
}
