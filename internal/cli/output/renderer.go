// Package output provides styled terminal output for CLI commands.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style
	Caret   lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("9")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("14")),
		Caret:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Renderer writes styled output to a command's streams.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer) *Renderer {
	return NewRendererWithTTY(out, errOut, IsTerminal(out))
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Without a TTY, styles render plain text.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool) *Renderer {
	lr := lipgloss.NewRenderer(out)
	if isTTY {
		lr.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, styles: newStyles(lr)}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Out returns the output writer.
func (r *Renderer) Out() io.Writer {
	return r.out
}

// ErrOut returns the error writer.
func (r *Renderer) ErrOut() io.Writer {
	return r.errOut
}

// Println writes a line to out.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to out.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Error writes an error line to errOut.
func (r *Renderer) Error(err error) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+err.Error()))
}

// Hint writes a muted line to errOut.
func (r *Renderer) Hint(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Muted.Render(msg))
}
