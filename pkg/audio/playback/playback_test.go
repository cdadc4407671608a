package playback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBuffer_MarkerSequences(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   []byte
	}{
		{"zero appends", nil, []byte{}},
		{"one append", [][]byte{{1, 2}}, []byte{1, 2}},
		{"many appends", [][]byte{{1}, {2, 3}, {}, {4, 5, 6}}, []byte{1, 2, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Buffer
			b.Append([]byte{9, 9})
			b.Start()
			for _, c := range tt.chunks {
				if !b.Append(c) {
					t.Fatal("Append returned false while collecting")
				}
			}
			got, ok := b.End()
			if !ok {
				t.Fatal("End returned ok=false")
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("snapshot = %v, want %v", got, tt.want)
			}
			if b.Collecting() {
				t.Error("still collecting after End")
			}
			if _, ok := b.End(); ok {
				t.Error("second End produced a snapshot")
			}
			if b.Append([]byte{7}) {
				t.Error("Append after End was kept")
			}
		})
	}
}

func TestBuffer_StartResets(t *testing.T) {
	var b Buffer
	b.Start()
	b.Append([]byte("old"))
	b.Start()
	b.Append([]byte("new"))
	got, _ := b.End()
	if string(got) != "new" {
		t.Fatalf("snapshot = %q, want %q", got, "new")
	}
}

func TestBuffer_SnapshotIsImmutable(t *testing.T) {
	var b Buffer
	b.Start()
	b.Append([]byte("abc"))
	got, _ := b.End()
	b.Start()
	b.Append([]byte("xyz"))
	if string(got) != "abc" {
		t.Fatalf("snapshot changed to %q", got)
	}
}

func TestBuffer_Abort(t *testing.T) {
	var b Buffer
	b.Start()
	b.Append([]byte("partial"))
	b.Abort()
	if b.Collecting() || b.Len() != 0 {
		t.Fatal("Abort left data or collecting flag")
	}
	if _, ok := b.End(); ok {
		t.Fatal("End after Abort produced a snapshot")
	}
}

type recordingPlayer struct {
	mu    sync.Mutex
	plays [][]byte
	paths []string
}

func (r *recordingPlayer) Play(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.plays = append(r.plays, data)
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return nil
}

func TestPipeline_PlaysSnapshotAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	player := &recordingPlayer{}
	done := make(chan error, 1)
	p := New(player, WithTempDir(dir), WithOnComplete(func(err error) { done <- err }))
	defer p.Close()

	p.OnAppend([]byte("ignored"))
	p.OnStartMarker()
	p.OnAppend([]byte("ID3"))
	p.OnAppend([]byte("frames"))
	if !p.OnEndMarker() {
		t.Fatal("OnEndMarker did not start playback")
	}
	if p.Collecting() {
		t.Fatal("still collecting after end marker")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("playback error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not complete")
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.plays) != 1 || string(player.plays[0]) != "ID3frames" {
		t.Fatalf("plays = %q", player.plays)
	}
	base := filepath.Base(player.paths[0])
	if !strings.HasPrefix(base, "temp_") || !strings.HasSuffix(base, ".mp3") {
		t.Errorf("temp file name = %q", base)
	}
	if _, err := os.Stat(player.paths[0]); !os.IsNotExist(err) {
		t.Errorf("temp file not removed: %v", err)
	}
}

func TestPipeline_EndWithoutStart(t *testing.T) {
	p := New(&recordingPlayer{}, WithTempDir(t.TempDir()))
	defer p.Close()
	if p.OnEndMarker() {
		t.Fatal("end marker without start started a playback")
	}
	p.OnStartMarker()
	if p.OnEndMarker() {
		t.Fatal("empty reply started a playback")
	}
	if p.Collecting() {
		t.Fatal("collecting after empty reply")
	}
}

func TestPipeline_ReportsPlayerError(t *testing.T) {
	playErr := errors.New("no audio device")
	done := make(chan error, 1)
	p := New(PlayerFunc(func(context.Context, string) error { return playErr }),
		WithTempDir(t.TempDir()),
		WithOnComplete(func(err error) { done <- err }),
	)
	defer p.Close()

	p.OnStartMarker()
	p.OnAppend([]byte{1})
	p.OnEndMarker()

	select {
	case err := <-done:
		if !errors.Is(err, playErr) {
			t.Fatalf("error = %v, want %v", err, playErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
	}
}

func TestPipeline_CloseCancelsPlayback(t *testing.T) {
	started := make(chan struct{})
	var completions int
	var mu sync.Mutex
	p := New(PlayerFunc(func(ctx context.Context, _ string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}), WithTempDir(t.TempDir()), WithOnComplete(func(error) {
		mu.Lock()
		completions++
		mu.Unlock()
	}))

	p.OnStartMarker()
	p.OnAppend([]byte{1})
	p.OnEndMarker()
	<-started

	p.Close()
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if completions != 0 {
		t.Errorf("completions after Close = %d", completions)
	}

	p.OnStartMarker()
	p.OnAppend([]byte{1})
	if p.OnEndMarker() {
		t.Error("playback started after Close")
	}
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("mpg123 -q")
	if err != nil {
		t.Fatalf("ParseCommand error: %v", err)
	}
	if c.Name != "mpg123" || len(c.Args) != 1 || c.Args[0] != "-q" {
		t.Fatalf("got %+v", c)
	}
	if _, err := ParseCommand("  "); err == nil {
		t.Fatal("empty command accepted")
	}
}
