// Package output renders query results for the terminal and exports the
// dependency graph as DOT and images.
//
// This package includes:
//   - Summary text for a single package and for the whole registry
//   - Indented dependency trees in the style of `brew deps --tree`
//   - DOT export and image rendering through Graphviz
//   - A spinner for the live Homebrew fetch
//
// Renderers only format what the analyzer computed. Color is applied with
// lipgloss and switched off for non-terminals and when NO_COLOR is set.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorCyan    = lipgloss.Color("36")
	colorGreen   = lipgloss.Color("35")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("167")
	colorBlue    = lipgloss.Color("75")
	colorMagenta = lipgloss.Color("170")
	colorDim     = lipgloss.Color("240")
)

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	styleSection = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	styleLabel   = lipgloss.NewStyle().Foreground(colorCyan)
	styleNote    = lipgloss.NewStyle().Foreground(colorYellow)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleFormula = lipgloss.NewStyle().Foreground(colorGreen)
	styleCask    = lipgloss.NewStyle().Foreground(colorMagenta)
	styleRoot    = lipgloss.NewStyle().Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarn    = lipgloss.NewStyle().Foreground(colorYellow)
	styleErr     = lipgloss.NewStyle().Foreground(colorRed)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// IsColorEnabled reports whether styled output should be written to w.
// It requires w to be a terminal and NO_COLOR to be unset.
func IsColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return writerIsTTY(w)
}

// Printer writes command output to one stream.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer for w. Pass IsColorEnabled(w) for color,
// combined with any user override.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// paint renders text with s when color is on.
func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Print writes a rendered block as is.
func (p *Printer) Print(s string) {
	fmt.Fprint(p.w, s)
}

// Successf prints a success line.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(styleOK, iconSuccess)+" "+fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(styleWarn, iconWarning)+" "+p.paint(styleWarn, fmt.Sprintf(format, args...)))
}

// Infof prints a status line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(styleDim, iconInfo)+" "+fmt.Sprintf(format, args...))
}

// Heading prints a section heading after a blank line.
func (p *Printer) Heading(format string, args ...any) {
	fmt.Fprintf(p.w, "\n%s\n", p.paint(styleHeading, fmt.Sprintf(format, args...)))
}

// File prints an output file path.
func (p *Printer) File(path string) {
	fmt.Fprintln(p.w, "  "+p.paint(styleDim, iconArrow)+" "+path)
}
