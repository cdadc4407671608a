package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// Player plays an audio file to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, path string) error

// Play implements Player.
func (f PlayerFunc) Play(ctx context.Context, path string) error {
	return f(ctx, path)
}

// CommandPlayer plays files with an external program. The file path is
// appended to Args.
type CommandPlayer struct {
	Name string
	Args []string
}

// FFPlay returns a CommandPlayer using ffplay without a window.
func FFPlay() CommandPlayer {
	return CommandPlayer{
		Name: "ffplay",
		Args: []string{"-nodisp", "-autoexit", "-loglevel", "error"},
	}
}

// ParseCommand splits a command line such as "mpg123 -q" into a player.
func ParseCommand(line string) (CommandPlayer, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandPlayer{}, fmt.Errorf("playback: empty player command")
	}
	return CommandPlayer{Name: fields[0], Args: fields[1:]}, nil
}

// Play implements Player.
func (c CommandPlayer) Play(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, c.Name, append(slices.Clone(c.Args), path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Name, err, msg)
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}
