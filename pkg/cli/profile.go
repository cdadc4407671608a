package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/omnicall/pkg/omni"
)

// Profile is a call profile loaded with -f. Zero fields keep their
// defaults.
type Profile struct {
	// Session overrides fields of the default session configuration.
	Session *omni.SessionConfig `yaml:"session,omitempty"`

	// Recorder is a shell-style command writing raw PCM to stdout.
	Recorder string `yaml:"recorder,omitempty"`

	// RecorderRate is the sample rate of the recorder output. It is
	// resampled to 16 kHz when different.
	RecorderRate int `yaml:"recorder_rate,omitempty"`

	// Player is a shell-style command; the reply file path is appended.
	Player string `yaml:"player,omitempty"`

	// CameraDir replays the images of a directory as the camera.
	CameraDir string `yaml:"camera_dir,omitempty"`
	CameraFPS float64 `yaml:"camera_fps,omitempty"`

	VideoInterval  time.Duration `yaml:"video_interval,omitempty"`
	JPEGQuality    int           `yaml:"jpeg_quality,omitempty"`
	MaxWidth       int           `yaml:"max_width,omitempty"`
	BufferDuration time.Duration `yaml:"buffer_duration,omitempty"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay,omitempty"`
}

// LoadProfile reads a profile from a YAML or JSON file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses profile data. JSON input is accepted as YAML flow
// syntax.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalWithOptions(data, &p, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.JPEGQuality < 0 || p.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg_quality %d out of range [1,100]", p.JPEGQuality)
	}
	if p.CameraFPS < 0 {
		return nil, fmt.Errorf("camera_fps must not be negative")
	}
	return &p, nil
}

// SessionConfig returns the default session configuration with the
// profile's overrides applied.
func (p *Profile) SessionConfig() *omni.SessionConfig {
	cfg := omni.DefaultSessionConfig()
	if p == nil || p.Session == nil {
		return cfg
	}
	o := p.Session
	if o.InputAudioFormat != "" {
		cfg.InputAudioFormat = o.InputAudioFormat
	}
	if o.OutputAudioFormat != "" {
		cfg.OutputAudioFormat = o.OutputAudioFormat
	}
	if o.Voice != "" {
		cfg.Voice = o.Voice
	}
	if o.Instructions != "" {
		cfg.Instructions = o.Instructions
	}
	if o.TurnDetection != nil {
		cfg.TurnDetection = o.TurnDetection
	}
	if o.BetaFields != nil {
		cfg.BetaFields = o.BetaFields
	}
	if o.Tools != nil {
		cfg.Tools = o.Tools
	}
	return cfg
}
