package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// painter renders styles only when writing to a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	return painter{enabled: ok && term.IsTerminal(int(f.Fd()))}
}

func (p painter) heading(s string) string { return p.render(headingStyle, s) }
func (p painter) score(s string) string   { return p.render(scoreStyle, s) }
func (p painter) dim(s string) string     { return p.render(dimStyle, s) }
func (p painter) warn(s string) string    { return p.render(warnStyle, s) }

func (p painter) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}
