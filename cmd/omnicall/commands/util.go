package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/haivivi/omnicall/pkg/audio/capture"
	"github.com/haivivi/omnicall/pkg/audio/playback"
	"github.com/haivivi/omnicall/pkg/audio/wav"
	"github.com/haivivi/omnicall/pkg/call"
	"github.com/haivivi/omnicall/pkg/cli"
	"github.com/haivivi/omnicall/pkg/video"
)

// sessionURL returns the realtime endpoint of ctx with the model query
// parameter applied.
func sessionURL(ctx *cli.Context) (string, error) {
	if ctx.BaseURL == "" {
		return "", fmt.Errorf("context %q has no base URL (set --base-url or %s)", ctx.Name, cli.EnvBaseURL)
	}
	u, err := url.Parse(ctx.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}
	if ctx.Model != "" {
		q := u.Query()
		if q.Get("model") == "" {
			q.Set("model", ctx.Model)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

// callConfig merges the context and profile into a session configuration.
func callConfig(ctx *cli.Context, p *cli.Profile, playbackDir string) (call.Config, error) {
	endpoint, err := sessionURL(ctx)
	if err != nil {
		return call.Config{}, err
	}
	sess := p.SessionConfig()
	if ctx.Voice != "" && (p == nil || p.Session == nil || p.Session.Voice == "") {
		sess.Voice = ctx.Voice
	}
	cfg := call.Config{
		URL:           endpoint,
		APIKey:        ctx.APIKey,
		Session:       sess,
		MaxReconnects: ctx.MaxReconnects,
		TempDir:       playbackDir,
	}
	if p != nil {
		cfg.ReconnectDelay = p.ReconnectDelay
		cfg.BufferDuration = p.BufferDuration
		cfg.VideoInterval = p.VideoInterval
		cfg.JPEGQuality = p.JPEGQuality
		cfg.MaxWidth = p.MaxWidth
	}
	return cfg, nil
}

// mediaOptions are the device settings of a call, from flags and profile.
type mediaOptions struct {
	NoMic        bool
	Recorder     string
	RecorderRate int
	Player       string
	CameraDir    string
	CameraFPS    float64
}

// merge fills unset options from the profile.
func (o *mediaOptions) merge(p *cli.Profile) {
	if p == nil {
		return
	}
	if o.Recorder == "" {
		o.Recorder = p.Recorder
	}
	if o.RecorderRate == 0 {
		o.RecorderRate = p.RecorderRate
	}
	if o.Player == "" {
		o.Player = p.Player
	}
	if o.CameraDir == "" {
		o.CameraDir = p.CameraDir
	}
	if o.CameraFPS == 0 {
		o.CameraFPS = p.CameraFPS
	}
}

// deps builds the call devices. The recorder defaults to arecord at 16 kHz
// and the player to ffplay.
func (o mediaOptions) deps() (call.Deps, error) {
	var d call.Deps

	if !o.NoMic {
		in := wav.Mono16K
		if o.RecorderRate > 0 {
			in.SampleRate = o.RecorderRate
		}
		name, args := "arecord", capture.ArecordArgs(in)
		if o.Recorder != "" {
			fields := strings.Fields(o.Recorder)
			name, args = fields[0], fields[1:]
		}
		d.Microphone = capture.Resample(capture.Command(name, in, args...), wav.Mono16K)
	}

	if o.Player != "" {
		p, err := playback.ParseCommand(o.Player)
		if err != nil {
			return d, err
		}
		d.Player = p
	} else {
		d.Player = playback.FFPlay()
	}

	if o.CameraDir != "" {
		d.Camera = video.ImageDir(o.CameraDir, o.CameraFPS)
	}
	return d, nil
}

// loadUtterance reads a WAV or raw 16 kHz PCM file as 16 kHz mono PCM.
func loadUtterance(ctx context.Context, path string) ([]byte, error) {
	src, err := capture.Resample(capture.File(path, false), wav.Mono16K)(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	pcm, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("empty audio file")
	}
	return pcm, nil
}
