// Package ui renders command output: styled one-line messages and the
// migration status table. Styling is dropped when the writer is not a
// terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/engine"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderColor  = lipgloss.Color("#444444")
)

// Printer writes styled messages to one stream.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter styles output only when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, color: IsTerminal(out)}
}

// NewPlainPrinter never styles output.
func NewPlainPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer returns the underlying stream.
func (p *Printer) Writer() io.Writer { return p.out }

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// Success prints a "✓ message" line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(successStyle, "✓")+" "+fmt.Sprintf(format, args...))
}

// Info prints a "• message" line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(infoStyle, "•")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a "! message" line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(warnStyle, "!")+" "+fmt.Sprintf(format, args...))
}

// Muted prints secondary text.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(mutedStyle, fmt.Sprintf(format, args...)))
}

// Error prints err prefixed with its taxonomy kind.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	kind := migration.ErrorKind(err)
	if kind == "" {
		kind = "Error"
	}
	fmt.Fprintln(p.out, p.render(errorStyle, "✗ "+kind+":")+" "+err.Error())
}

// IDs prints one indented line per id, or a placeholder when empty.
func (p *Printer) IDs(ids []string, empty string) {
	if len(ids) == 0 {
		p.Muted("  %s", empty)
		return
	}
	for _, id := range ids {
		fmt.Fprintf(p.out, "  %s\n", id)
	}
}

// StatusTable renders the status summary and one row per migration.
func (p *Printer) StatusTable(status engine.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d total, %d applied, %d pending\n",
		p.render(infoStyle, "Migrations:"), status.Total, status.AppliedCount, status.PendingCount)
	if status.LastMigration != "" {
		fmt.Fprintf(&b, "%s %s\n", p.render(mutedStyle, "Last applied:"), status.LastMigration)
	}
	if len(status.Migrations) == 0 {
		b.WriteString(p.render(mutedStyle, "No migrations found."))
		return b.String()
	}
	t := table.New().
		Headers("ID", "STATE", "TITLE", "DEPENDS ON").
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if !p.color {
				return lipgloss.NewStyle().Padding(0, 1)
			}
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if p.color {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(borderColor))
	}
	for _, m := range status.Migrations {
		t.Row(m.ID, p.stateLabel(m), m.Title, strings.Join(m.Dependencies, ", "))
	}
	b.WriteString(t.Render())
	return b.String()
}

// StateLabel names the display state of m.
func StateLabel(m engine.MigrationSummary) string {
	switch {
	case m.Missing:
		return "applied (file missing)"
	case m.Applied && !m.Reversible:
		return "applied (forward-only)"
	case m.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func (p *Printer) stateLabel(m engine.MigrationSummary) string {
	label := StateLabel(m)
	switch {
	case m.Missing:
		return p.render(errorStyle, label)
	case m.Applied:
		return p.render(successStyle, label)
	default:
		return p.render(warnStyle, label)
	}
}
