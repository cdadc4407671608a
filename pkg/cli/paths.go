package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories under ~/.omnicall.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// AppDir returns ~/.omnicall/<app>
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile returns ~/.omnicall/<app>/config.yaml
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// PlaybackDir returns the directory for temporary reply files.
func (p *Paths) PlaybackDir() string {
	return filepath.Join(p.AppDir(), "playback")
}

// EnsurePlaybackDir creates the playback directory and returns it.
func (p *Paths) EnsurePlaybackDir() (string, error) {
	dir := p.PlaybackDir()
	return dir, os.MkdirAll(dir, 0o755)
}
