// Package tui implements the pbd teaching console.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/opencode-ai/pbd/internal/tui/styles"
)

// Backend is what the console drives: a local dispatcher or a remote daemon.
type Backend interface {
	Send(ctx context.Context, raw string) (dispatcher.Outcome, error)
	Status(ctx context.Context) (interaction.Status, error)
}

// Config configures the console.
type Config struct {
	Theme        string
	PollInterval time.Duration
	// Title is shown in the header, e.g. the daemon address.
	Title string
}

// Run launches the console and blocks until the operator quits.
func Run(ctx context.Context, backend Backend, cfg Config) error {
	program := tea.NewProgram(newModel(ctx, backend, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

const (
	minWidth   = 60
	minHeight  = 15
	maxLog     = 8
	staleAfter = 5 * time.Second
)

type logEntry struct {
	at      time.Time
	command string
	status  dispatcher.OutcomeStatus
	text    string
}

type model struct {
	ctx     context.Context
	backend Backend
	cfg     Config
	styles  styles.Styles

	width  int
	height int

	status      interaction.Status
	statusErr   error
	lastUpdated time.Time
	now         time.Time

	inFlight int
	log      []logEntry
	showHelp bool
}

func newModel(ctx context.Context, backend Backend, cfg Config) model {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Title == "" {
		cfg.Title = "pbd console"
	}
	return model{
		ctx:      ctx,
		backend:  backend,
		cfg:      cfg,
		styles:   styles.ForTheme(cfg.Theme),
		status:   interaction.Status{State: interaction.StateIdle, ExecutingStep: -1},
		now:      time.Now(),
		showHelp: true,
	}
}

type tickMsg time.Time

type statusMsg struct {
	status interaction.Status
	err    error
}

type outcomeMsg struct {
	raw     string
	outcome dispatcher.Outcome
	err     error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), tickCmd(m.cfg.PollInterval))
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) pollStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.backend.Status(m.ctx)
		return statusMsg{status: st, err: err}
	}
}

// send runs off the update loop so a blocking execute never freezes the
// console and stop stays reachable.
func (m model) send(cmd models.Command) tea.Cmd {
	raw := string(cmd)
	return func() tea.Msg {
		out, err := m.backend.Send(m.ctx, raw)
		return outcomeMsg{raw: raw, outcome: out, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
		if cmd, ok := keyCommands[key]; ok {
			m.inFlight++
			return m, m.send(cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.now = time.Time(msg)
		return m, tea.Batch(m.pollStatus(), tickCmd(m.cfg.PollInterval))

	case statusMsg:
		m.statusErr = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.lastUpdated = m.now
		}

	case outcomeMsg:
		if m.inFlight > 0 {
			m.inFlight--
		}
		m.appendLog(msg)
		return m, m.pollStatus()
	}
	return m, nil
}

func (m *model) appendLog(msg outcomeMsg) {
	entry := logEntry{at: m.now, command: msg.raw}
	switch {
	case msg.err != nil:
		entry.status = dispatcher.OutcomeFailed
		entry.text = msg.err.Error()
	case msg.outcome.Error != "":
		entry.status = msg.outcome.Status
		entry.text = msg.outcome.Error
	default:
		entry.status = msg.outcome.Status
		entry.text = msg.outcome.Detail
	}
	m.log = append(m.log, entry)
	if len(m.log) > maxLog {
		m.log = m.log[len(m.log)-maxLog:]
	}
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 && (m.width < minWidth || m.height < minHeight) {
		return strings.Join([]string{
			m.styles.Warning.Render(fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)),
			m.styles.Muted.Render(fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)),
			m.styles.Muted.Render("Press q to quit."),
		}, "\n") + "\n"
	}

	sections := []string{
		m.styles.Title.Render(m.cfg.Title),
		m.styles.Panel.Render(m.statusView()),
		m.logView(),
	}
	if m.showHelp {
		sections = append(sections, m.helpView())
	}
	sections = append(sections, m.styles.Muted.Render(m.footer()))
	return strings.Join(sections, "\n\n") + "\n"
}

func (m model) statusView() string {
	st := m.status
	current := "none"
	if st.CurrentName != "" {
		current = fmt.Sprintf("%s (%d of %d)", st.CurrentName, st.CurrentAction, st.ActionCount)
	}

	lines := []string{
		fmt.Sprintf("State    %s", m.stateBadge(st.State)),
		fmt.Sprintf("Action   %s", m.styles.Text.Render(current)),
		fmt.Sprintf("Steps    %s", m.styles.Text.Render(fmt.Sprintf("%d", st.StepCount))),
	}
	if st.ExecutingStep >= 0 {
		progress := fmt.Sprintf("step %d of %d", st.ExecutingStep+1, st.StepCount)
		if st.Stopping {
			progress += " (stopping)"
		}
		lines = append(lines, fmt.Sprintf("Playback %s", m.styles.Executing.Render(progress)))
	}

	limbs := make([]string, 0, len(models.Limbs))
	for _, limb := range models.Limbs {
		mode := st.Freeze[limb]
		style := m.styles.Frozen
		if mode == models.FreezeStateRelaxed {
			style = m.styles.Relaxed
		}
		limbs = append(limbs, fmt.Sprintf("%s %s", limb, style.Render(string(mode))))
	}
	lines = append(lines, "Limbs    "+strings.Join(limbs, "  "))

	if report := st.LastExecution; report != nil {
		text := fmt.Sprintf("%s %d/%d", report.ActionName, report.Completed, report.Total)
		style := m.styles.Success
		switch {
		case report.Error != "":
			text += ": " + report.Error
			style = m.styles.Error
		case report.Stopped:
			text += " (stopped)"
			style = m.styles.Warning
		}
		lines = append(lines, "Last run "+style.Render(text))
	}
	if m.statusErr != nil {
		lines = append(lines, m.styles.Error.Render("status unavailable: "+m.statusErr.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m model) stateBadge(state interaction.State) string {
	switch state {
	case interaction.StateRecording:
		return m.styles.Recording.Render("● RECORDING")
	case interaction.StateExecuting:
		return m.styles.Executing.Render("▶ EXECUTING")
	default:
		return m.styles.Idle.Render("IDLE")
	}
}

func (m model) logView() string {
	if len(m.log) == 0 {
		return m.styles.Muted.Render("No commands sent yet.")
	}
	lines := make([]string, 0, len(m.log))
	for _, e := range m.log {
		style := m.styles.Success
		switch e.status {
		case dispatcher.OutcomeRejected, dispatcher.OutcomeUnrecognized:
			style = m.styles.Warning
		case dispatcher.OutcomeFailed:
			style = m.styles.Error
		}
		lines = append(lines, fmt.Sprintf("%s %-24s %s %s",
			m.styles.Muted.Render(e.at.Format("15:04:05")),
			e.command,
			style.Render(string(e.status)),
			m.styles.Text.Render(e.text),
		))
	}
	return strings.Join(lines, "\n")
}

func (m model) helpView() string {
	const columns = 3
	cells := make([]string, 0, len(bindings))
	for _, b := range bindings {
		cells = append(cells, fmt.Sprintf("%s %s", m.styles.Key.Render(fmt.Sprintf("%5s", keyLabel(b.key))), b.label))
	}

	var rows []string
	for i := 0; i < len(cells); i += columns {
		end := i + columns
		if end > len(cells) {
			end = len(cells)
		}
		row := make([]string, 0, columns)
		for _, cell := range cells[i:end] {
			row = append(row, lipgloss.NewStyle().Width(26).Render(cell))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(rows, "\n")
}

func (m model) footer() string {
	updated := "--"
	if !m.lastUpdated.IsZero() {
		updated = m.lastUpdated.Format("15:04:05")
		if m.now.Sub(m.lastUpdated) > staleAfter {
			updated += " (stale)"
		}
	}
	pending := ""
	if m.inFlight > 0 {
		pending = fmt.Sprintf(" | %d pending", m.inFlight)
	}
	return fmt.Sprintf("Last updated: %s%s | ? help | q quit", updated, pending)
}
