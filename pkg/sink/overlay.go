package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// defaultOverlayWidth is the number of runes the overlay keeps visible.
const defaultOverlayWidth = 96

// OverlayTheme defines the colors of the terminal overlay.
type OverlayTheme struct {
	Committed lipgloss.Color
	Unstable  lipgloss.Color
}

// DefaultOverlayTheme renders committed text bright and the tail dimmed.
var DefaultOverlayTheme = OverlayTheme{
	Committed: lipgloss.Color("#00ff9f"),
	Unstable:  lipgloss.Color("#6e7681"),
}

// TerminalOverlay redraws a single status line on a terminal.
type TerminalOverlay struct {
	mu        sync.Mutex
	w         io.Writer
	width     int
	committed lipgloss.Style
	unstable  lipgloss.Style
}

// NewTerminalOverlay returns an Overlay that draws on w, typically stderr.
func NewTerminalOverlay(w io.Writer, theme OverlayTheme) *TerminalOverlay {
	return &TerminalOverlay{
		w:         w,
		width:     defaultOverlayWidth,
		committed: lipgloss.NewStyle().Foreground(theme.Committed),
		unstable:  lipgloss.NewStyle().Foreground(theme.Unstable).Italic(true),
	}
}

// Update implements [Overlay]. Only the last line's worth of text is shown.
func (o *TerminalOverlay) Update(committed, unstable string) {
	committed, unstable = clip(oneLine(committed), oneLine(unstable), o.width)
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "\r\x1b[K%s%s", o.committed.Render(committed), o.unstable.Render(unstable))
}

// Done implements [Overlay].
func (o *TerminalOverlay) Done(final string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.w, "\r\x1b[K")
	if final != "" {
		fmt.Fprintln(o.w, o.committed.Render(final))
	}
}

// clip keeps the last width runes of committed+unstable.
func clip(committed, unstable string, width int) (string, string) {
	u := []rune(unstable)
	if len(u) >= width {
		return "", string(u[len(u)-width:])
	}
	c := []rune(committed)
	if keep := width - len(u); len(c) > keep {
		c = c[len(c)-keep:]
	}
	return string(c), unstable
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

var _ Overlay = (*TerminalOverlay)(nil)
