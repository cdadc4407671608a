package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/omnicall/pkg/transport"
	"github.com/haivivi/omnicall/pkg/turn"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func TestOutput_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		result any
		want   string
	}{
		{"yaml", FormatYAML, sample{"a", 1}, "name: a\nvalue: 1\n"},
		{"default", "", sample{"b", 2}, "name: b\nvalue: 2\n"},
		{"raw bytes", FormatRaw, []byte("hello"), "hello"},
		{"raw string", FormatRaw, "world", "world"},
		{"raw other", FormatRaw, sample{"c", 3}, "name: c\nvalue: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(tt.result, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
				t.Fatalf("Output error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sample{"x", 7}, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var got sample
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Name != "x" || got.Value != 7 {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  \"name\"") {
		t.Errorf("output not indented: %q", buf.String())
	}
}

func TestOutput_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Output(sample{"f", 1}, OutputOptions{File: path}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "name: f") {
		t.Errorf("file = %q", data)
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	if err := Output(1, OutputOptions{Format: "table", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("unsupported format accepted")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{850 * time.Millisecond, "850ms"},
		{3200 * time.Millisecond, "3.2s"},
		{125 * time.Second, "2m5.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.50 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestStyles_StatusLine(t *testing.T) {
	s := NewStyles(DefaultTheme)

	line := s.StatusLine(transport.State{Kind: transport.Connected}, turn.AISpeaking, "", 0)
	if !strings.Contains(line, "connected") || !strings.Contains(line, "ai_speaking") {
		t.Errorf("line = %q", line)
	}

	failed := s.Connection(transport.ErrorState("max reconnects"))
	if !strings.Contains(failed, "error(max reconnects)") {
		t.Errorf("failed badge = %q", failed)
	}

	long := strings.Repeat("字", 100)
	line = s.StatusLine(transport.State{Kind: transport.Connected}, turn.Idle, long, 60)
	if !strings.HasSuffix(strings.TrimSpace(line), "…") {
		t.Errorf("detail not truncated: %q", line)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"你好世界", 4, "你好"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateString(tt.s, tt.width); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
