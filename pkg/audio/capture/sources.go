package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/haivivi/omnicall/pkg/audio/wav"
)

// Reader returns an Opener over r carrying PCM in format f. With paced set,
// reads are throttled to real time, so a file behaves like a microphone.
func Reader(r io.Reader, f wav.Format, paced bool) Opener {
	return func(ctx context.Context) (Source, error) {
		return &readerSource{ctx: ctx, r: r, format: f, paced: paced}, nil
	}
}

// File returns an Opener for a WAV or raw PCM file. Files without a RIFF
// header are read as 16 kHz mono 16-bit PCM.
func File(path string, paced bool) Opener {
	return func(ctx context.Context) (Source, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		br := bufio.NewReader(f)
		format := wav.Mono16K
		if head, err := br.Peek(wav.HeaderSize); err == nil {
			if h, err := wav.ParseHeader(head); err == nil {
				format = h.Format
				_, _ = br.Discard(wav.HeaderSize)
			}
		}
		return &readerSource{ctx: ctx, r: br, closer: f, format: format, paced: paced}, nil
	}
}

type readerSource struct {
	ctx    context.Context
	r      io.Reader
	closer io.Closer
	format wav.Format
	paced  bool

	start time.Time
	sent  int
}

func (s *readerSource) Format() wav.Format { return s.format }

func (s *readerSource) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, io.EOF
	}
	n, err := io.ReadFull(s.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if s.paced && n > 0 {
		if s.start.IsZero() {
			s.start = time.Now()
		}
		s.sent += n
		wait := time.Until(s.start.Add(s.format.Duration(s.sent)))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				timer.Stop()
			}
		}
	}
	return n, err
}

func (s *readerSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Command returns an Opener that runs an external recorder writing raw PCM
// in format f to stdout, such as arecord or sox. The process is killed when
// the capture stops.
func Command(name string, f wav.Format, args ...string) Opener {
	return func(ctx context.Context) (Source, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("capture: %s: %w", name, err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("capture: start %s: %w", name, err)
		}
		return &commandSource{cmd: cmd, stdout: stdout, format: f}, nil
	}
}

// ArecordArgs returns arecord arguments recording raw PCM in format f.
func ArecordArgs(f wav.Format) []string {
	return []string{
		"-q", "-t", "raw",
		"-f", fmt.Sprintf("S%d_LE", f.BitsPerSample),
		"-r", fmt.Sprint(f.SampleRate),
		"-c", fmt.Sprint(f.Channels),
	}
}

type commandSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	format wav.Format

	closeOnce sync.Once
	closeErr  error
}

func (s *commandSource) Format() wav.Format { return s.format }

func (s *commandSource) Read(p []byte) (int, error) {
	n, err := io.ReadFull(s.stdout, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func (s *commandSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.stdout.Close()
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
