package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// palette shared by every command.
var (
	colourPrimary   = lipgloss.Color("#7C3AED")
	colourSecondary = lipgloss.Color("#06B6D4")
	colourMuted     = lipgloss.Color("#6C7086")
	colourSuccess   = lipgloss.Color("#A6E3A1")
	colourWarning   = lipgloss.Color("#F9E2AF")
	colourError     = lipgloss.Color("#F38BA8")
)

// styles renders command output. Styling is only applied when writing to
// a terminal so piped output and tests see plain text.
type styles struct {
	enabled bool

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	return styles{
		enabled: isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(colourPrimary),
		label:   lipgloss.NewStyle().Bold(true).Foreground(colourSecondary),
		muted:   lipgloss.NewStyle().Foreground(colourMuted),
		success: lipgloss.NewStyle().Foreground(colourSuccess),
		warning: lipgloss.NewStyle().Foreground(colourWarning),
		err:     lipgloss.NewStyle().Foreground(colourError),
	}
}

func outputStyles(cmd *cobra.Command) styles {
	return newStyles(cmd.OutOrStdout())
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) Title(text string) string   { return s.render(s.title, text) }
func (s styles) Label(text string) string   { return s.render(s.label, text) }
func (s styles) Muted(text string) string   { return s.render(s.muted, text) }
func (s styles) Success(text string) string { return s.render(s.success, text) }
func (s styles) Warning(text string) string { return s.render(s.warning, text) }
func (s styles) Error(text string) string   { return s.render(s.err, text) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
