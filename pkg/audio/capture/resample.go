package capture

import (
	"context"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/omnicall/pkg/audio/wav"
)

// Resample wraps open so that the resulting source produces 16-bit PCM in
// dst. Sample rate conversion uses a high quality polyphase resampler;
// stereo is downmixed by averaging and mono is duplicated into stereo.
func Resample(open Opener, dst wav.Format) Opener {
	return func(ctx context.Context) (Source, error) {
		src, err := open(ctx)
		if err != nil {
			return nil, err
		}
		in := src.Format()
		if in == dst {
			return src, nil
		}
		if in.BitsPerSample != 16 || dst.BitsPerSample != 16 {
			src.Close()
			return nil, fmt.Errorf("capture: resample %v to %v: only 16-bit PCM is supported", in, dst)
		}
		if in.Channels < 1 || in.Channels > 2 || dst.Channels < 1 || dst.Channels > 2 {
			src.Close()
			return nil, fmt.Errorf("capture: resample %v to %v: unsupported channel count", in, dst)
		}

		rs := &resampleSource{src: src, in: in, out: dst}
		if in.SampleRate != dst.SampleRate {
			rs.resampler, err = resampling.New(&resampling.Config{
				InputRate:  float64(in.SampleRate),
				OutputRate: float64(dst.SampleRate),
				Channels:   dst.Channels,
				Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
			})
			if err != nil {
				src.Close()
				return nil, fmt.Errorf("capture: create resampler: %w", err)
			}
		}
		return rs, nil
	}
}

type resampleSource struct {
	src       Source
	in, out   wav.Format
	resampler resampling.Resampler

	readBuf  []byte
	leftover []byte
	eof      error
}

func (s *resampleSource) Format() wav.Format { return s.out }

func (s *resampleSource) Close() error { return s.src.Close() }

// Read fills p with converted samples. It keeps reading from the underlying
// source until p is full or the source ends, so batch sizes are preserved.
func (s *resampleSource) Read(p []byte) (int, error) {
	p = p[:len(p)/s.out.BlockAlign()*s.out.BlockAlign()]
	n := 0
	for n < len(p) {
		if len(s.leftover) > 0 {
			c := copy(p[n:], s.leftover)
			s.leftover = s.leftover[c:]
			n += c
			continue
		}
		if s.eof != nil {
			break
		}
		if err := s.fill(len(p) - n); err != nil {
			s.eof = err
		}
	}
	if n == 0 && s.eof != nil {
		return 0, s.eof
	}
	return n, nil
}

// fill converts roughly want output bytes worth of source audio into
// leftover.
func (s *resampleSource) fill(want int) error {
	frames := want / s.out.BlockAlign()
	if s.resampler != nil {
		frames = frames*s.in.SampleRate/s.out.SampleRate + 1
	}
	size := frames * s.in.BlockAlign()
	if cap(s.readBuf) < size {
		s.readBuf = make([]byte, size)
	}
	buf := s.readBuf[:size]

	rn, err := io.ReadFull(s.src, buf)
	if rn == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return err
	}
	samples := s.remix(toFloat(buf[:rn-rn%s.in.BlockAlign()]))

	if s.resampler != nil {
		out, perr := s.resampler.Process(samples)
		if perr != nil {
			return fmt.Errorf("capture: resample: %w", perr)
		}
		samples = out
	}
	s.leftover = append(s.leftover, toPCM(samples)...)

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return err
}

// remix converts interleaved samples from the input channel layout to the
// output one.
func (s *resampleSource) remix(in []float64) []float64 {
	switch {
	case s.in.Channels == s.out.Channels:
		return in
	case s.in.Channels == 2 && s.out.Channels == 1:
		out := make([]float64, len(in)/2)
		for i := range out {
			out[i] = (in[2*i] + in[2*i+1]) / 2
		}
		return out
	default:
		out := make([]float64, len(in)*2)
		for i, v := range in {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out
	}
}

// toFloat converts 16-bit little-endian samples to [-1, 1).
func toFloat(b []byte) []float64 {
	out := make([]float64, len(b)/2)
	for i := range out {
		out[i] = float64(int16(uint16(b[2*i])|uint16(b[2*i+1])<<8)) / 32768.0
	}
	return out
}

// toPCM converts samples back to 16-bit little-endian, clipping at full scale.
func toPCM(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		var s int16
		switch {
		case v >= 1.0:
			s = 32767
		case v <= -1.0:
			s = -32768
		default:
			s = int16(v * 32767.0)
		}
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
