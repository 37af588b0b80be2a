// internal/tui/app.go
//
// Interactive migration browser. It follows The Elm Architecture:
// status snapshots and run results arrive as messages, Update folds them
// into the App, and View renders the table plus the journal tail.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/fdml/internal/logbook"
	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/engine"
	"github.com/kingrea/fdml/internal/ui"
)

// Runner is the slice of *engine.Runner the browser drives.
type Runner interface {
	Status(ctx context.Context) (engine.Status, error)
	Apply(ctx context.Context, opts engine.ApplyOptions) (engine.Result, error)
	Rollback(ctx context.Context, opts engine.RollbackOptions) (engine.Result, error)
}

const journalLines = 6

type statusLoadedMsg struct {
	status engine.Status
	err    error
}

type runFinishedMsg struct {
	action string
	result engine.Result
	err    error
}

// AppOption customizes the browser.
type AppOption func(*App)

// WithJournal shows the tail of the migration journal under the table.
func WithJournal(journal *logbook.Logbook) AppOption {
	return func(a *App) {
		a.journal = journal
	}
}

// WithContext bounds every runner call issued by the browser.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the bubbletea model for `fdml migrate status --interactive`.
type App struct {
	ctx     context.Context
	runner  Runner
	journal *logbook.Logbook
	table   table.Model
	status  engine.Status
	loaded  bool
	busy    bool
	message string
	err     error
	width   int
	height  int
}

// NewApp builds the browser around runner.
func NewApp(runner Runner, opts ...AppOption) *App {
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	t.SetStyles(styles)

	a := &App{ctx: context.Background(), runner: runner, table: t}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(runner Runner, opts ...AppOption) error {
	_, err := tea.NewProgram(NewApp(runner, opts...), tea.WithAltScreen()).Run()
	return err
}

func columns(width int) []table.Column {
	idWidth := 28
	stateWidth := 24
	depsWidth := 24
	titleWidth := width - idWidth - stateWidth - depsWidth - 10
	if titleWidth < 16 {
		titleWidth = 16
	}
	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "State", Width: stateWidth},
		{Title: "Title", Width: titleWidth},
		{Title: "Depends on", Width: depsWidth},
	}
}

// Init loads the first status snapshot.
func (a *App) Init() tea.Cmd {
	return a.fetchStatus()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.table.SetColumns(columns(max(60, msg.Width-4)))
		a.table.SetHeight(max(5, msg.Height-journalLines-12))
		return a, nil

	case statusLoadedMsg:
		a.busy = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.loaded = true
		a.status = msg.status
		a.table.SetRows(rows(msg.status))
		return a, nil

	case runFinishedMsg:
		a.busy = false
		a.err = msg.err
		a.message = describeRun(msg)
		return a, a.fetchStatus()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			if a.busy {
				return a, nil
			}
			a.message = "Refreshing..."
			a.busy = true
			return a, a.fetchStatus()
		case "a":
			return a, a.start("apply", func() (engine.Result, error) {
				return a.runner.Apply(a.ctx, engine.ApplyOptions{})
			})
		case "p":
			return a, a.start("preview", func() (engine.Result, error) {
				return a.runner.Apply(a.ctx, engine.ApplyOptions{DryRun: true})
			})
		case "u":
			return a, a.start("rollback", func() (engine.Result, error) {
				return a.runner.Rollback(a.ctx, engine.RollbackOptions{Count: 1})
			})
		}
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a *App) start(action string, run func() (engine.Result, error)) tea.Cmd {
	if a.busy {
		return nil
	}
	a.busy = true
	a.err = nil
	a.message = titleCase(action) + " in progress..."
	return func() tea.Msg {
		result, err := run()
		return runFinishedMsg{action: action, result: result, err: err}
	}
}

func (a *App) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := a.runner.Status(a.ctx)
		return statusLoadedMsg{status: status, err: err}
	}
}

func rows(status engine.Status) []table.Row {
	out := make([]table.Row, 0, len(status.Migrations))
	for _, m := range status.Migrations {
		out = append(out, table.Row{m.ID, ui.StateLabel(m), m.Title, strings.Join(m.Dependencies, ", ")})
	}
	return out
}

func describeRun(msg runFinishedMsg) string {
	if msg.err != nil {
		return fmt.Sprintf("%s failed", titleCase(msg.action))
	}
	if len(msg.result.IDs) == 0 {
		if msg.action == "rollback" {
			return "Nothing to roll back."
		}
		return "Everything is up to date."
	}
	switch msg.action {
	case "preview":
		return "Would apply: " + strings.Join(msg.result.IDs, ", ")
	case "rollback":
		return "Rolled back: " + strings.Join(msg.result.IDs, ", ")
	default:
		return "Applied: " + strings.Join(msg.result.IDs, ", ")
	}
}

// View renders the header, table, status line and journal tail.
func (a *App) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ FDML MIGRATIONS")
	summary := "Loading status..."
	if a.loaded {
		summary = fmt.Sprintf("%d total · %d applied · %d pending", a.status.Total, a.status.AppliedCount, a.status.PendingCount)
		if a.status.LastMigration != "" {
			summary += " · last " + a.status.LastMigration
		}
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(a.table.View())

	sections := []string{
		header,
		lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(summary),
		box,
		a.renderStatusLine(),
	}
	if panel := a.renderJournal(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("a apply · p preview · u rollback one · r refresh · q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStatusLine() string {
	if a.err != nil {
		kind := migration.ErrorKind(a.err)
		if kind == "" {
			kind = "Error"
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render(kind+": ") + a.err.Error()
	}
	if a.message == "" {
		return ""
	}
	color := "#4CAF50"
	if a.busy {
		color = "#F7B801"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(a.message)
}

func (a *App) renderJournal() string {
	if a.journal == nil {
		return ""
	}
	lines, _ := a.journal.Tail(journalLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("JOURNAL · %s", filepath.Base(a.journal.Path())))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
