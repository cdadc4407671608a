package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/omnicall/pkg/transport"
	"github.com/haivivi/omnicall/pkg/turn"
)

// Theme defines the status colors.
type Theme struct {
	Primary lipgloss.Color // connected, user speaking
	Accent  lipgloss.Color // assistant speaking
	Warn    lipgloss.Color // connecting, reconnecting
	Error   lipgloss.Color
	Dim     lipgloss.Color // idle, disconnected, help text
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#58a6ff"),
	Warn:    lipgloss.Color("#d29922"),
	Error:   lipgloss.Color("#f85149"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Label lipgloss.Style
	Help  lipgloss.Style
	User  lipgloss.Style
	Reply lipgloss.Style

	theme Theme
	badge lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
		User:  lipgloss.NewStyle().Foreground(t.Primary),
		Reply: lipgloss.NewStyle().Foreground(t.Accent),
		theme: t,
		badge: lipgloss.NewStyle().Bold(true).Padding(0, 1),
	}
}

// Connection renders a connection state badge.
func (s Styles) Connection(st transport.State) string {
	c := s.theme.Dim
	switch st.Kind {
	case transport.Connected:
		c = s.theme.Primary
	case transport.Connecting, transport.Reconnecting, transport.Disconnecting:
		c = s.theme.Warn
	case transport.Failed:
		c = s.theme.Error
	}
	return s.badge.Foreground(c).Render(st.String())
}

// Turn renders a turn state badge.
func (s Styles) Turn(st turn.State) string {
	c := s.theme.Dim
	switch st {
	case turn.UserSpeaking:
		c = s.theme.Primary
	case turn.AISpeaking:
		c = s.theme.Accent
	}
	return s.badge.Foreground(c).Render(st.String())
}

// StatusLine renders the connection and turn badges followed by detail.
// When width is positive the detail is truncated to fit it.
func (s Styles) StatusLine(conn transport.State, t turn.State, detail string, width int) string {
	line := s.Connection(conn) + " " + s.Turn(t)
	if detail == "" {
		return line
	}
	if width > 0 {
		room := width - lipgloss.Width(line) - 1
		if room <= 1 {
			return line
		}
		if lipgloss.Width(detail) > room {
			detail = truncateString(detail, room-1) + "…"
		}
	}
	return line + " " + s.Help.Render(detail)
}

// truncateString truncates s to width display cells, keeping multi-byte
// characters whole.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	w := 0
	for i, r := range runes {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return string(runes[:i])
		}
		w += rw
	}
	return s
}
