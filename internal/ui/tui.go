// Package ui renders a live terminal view of a scheduler run.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/fanout-go/internal/pool"
	"github.com/nibzard/fanout-go/internal/scheduler"
)

// Source is the run being watched. *scheduler.Scheduler implements it.
type Source interface {
	Progress() scheduler.Progress
	Tasks() []scheduler.TaskExecutionInfo
	Pool() *pool.Pool
}

const (
	maxRecentEvents = 8
	defaultWidth    = 80
	barWidth        = 40
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	barFullStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
	barFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)

	statusStyles = map[scheduler.Status]lipgloss.Style{
		scheduler.StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F7C948")),
		scheduler.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D")),
		scheduler.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		scheduler.StatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		scheduler.StatusSkipped:   mutedStyle,
	}
)

type keyMap struct {
	Quit key.Binding
	Help key.Binding
	Up   key.Binding
	Down key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help: key.NewBinding(key.WithKeys("?", "h"), key.WithHelp("?", "help")),
		Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
	}
}

type tickMsg time.Time

type eventMsg struct {
	event scheduler.Event
}

type eventsClosedMsg struct{}

// Model is the bubbletea model of the run view.
type Model struct {
	src      Source
	events   <-chan scheduler.Event
	cancel   context.CancelFunc
	keys     keyMap
	viewport viewport.Model

	progress     scheduler.Progress
	pool         pool.Status
	tasks        []scheduler.TaskExecutionInfo
	recent       []string
	finished     bool
	cancelled    bool
	showHelp     bool
	width        int
	tickInterval time.Duration
}

// NewModel creates a model that polls src on every tick and consumes events
// until the channel is closed. cancel, if set, is called when the user quits
// while the run is still going.
func NewModel(src Source, events <-chan scheduler.Event, cancel context.CancelFunc) *Model {
	vp := viewport.New(defaultWidth, 10)
	return &Model{
		src:          src,
		events:       events,
		cancel:       cancel,
		keys:         defaultKeyMap(),
		viewport:     vp,
		width:        defaultWidth,
		tickInterval: 250 * time.Millisecond,
	}
}

// Init starts polling and event consumption.
func (m *Model) Init() tea.Cmd {
	m.refresh()
	return tea.Batch(tickCmd(m.tickInterval), waitForEvent(m.events))
}

// Update handles key presses, window resizes, ticks and run events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-14)
		m.viewport.SetContent(m.renderTasks())
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if !m.finished && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tickMsg:
		m.refresh()
		if m.finished {
			return m, nil
		}
		return m, tickCmd(m.tickInterval)
	case eventMsg:
		m.record(msg.event)
		m.refresh()
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		m.finished = true
		m.refresh()
		return m, tea.Quit
	}
	return m, nil
}

// View renders the run.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fanout") + " " + mutedStyle.Render(m.statusLine()) + "\n\n")

	if m.showHelp {
		b.WriteString(m.helpView())
		return b.String()
	}

	b.WriteString(renderBar(m.progress, barWidth) + "\n")
	b.WriteString(fmt.Sprintf("done %d  failed %d  skipped %d  running %d  pending %d  (%d total)\n",
		m.progress.Completed, m.progress.Failed, m.progress.Skipped,
		m.progress.Running, m.progress.Pending, m.progress.Total))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("workers %d/%d busy, %d waiting",
		m.pool.BusyWorkers, m.pool.TotalWorkers, m.pool.WaitingRequests)) + "\n\n")

	b.WriteString(m.viewport.View() + "\n")

	if len(m.recent) > 0 {
		b.WriteString(boxStyle.Width(max(20, m.width-2)).Render(strings.Join(m.recent, "\n")) + "\n")
	}
	b.WriteString(mutedStyle.Render("q quit · ? help · ↑/↓ scroll") + "\n")
	return b.String()
}

// Progress returns the last progress snapshot the model saw.
func (m *Model) Progress() scheduler.Progress {
	return m.progress
}

// Finished reports whether the event stream has ended.
func (m *Model) Finished() bool {
	return m.finished
}

func (m *Model) statusLine() string {
	switch {
	case m.cancelled:
		return "cancelled"
	case m.finished:
		return "finished"
	default:
		return "running"
	}
}

func (m *Model) helpView() string {
	var b strings.Builder
	b.WriteString("Keyboard Shortcuts\n\n")
	for _, k := range []key.Binding{m.keys.Quit, m.keys.Help, m.keys.Up, m.keys.Down} {
		h := k.Help()
		b.WriteString(fmt.Sprintf("  %-8s %s\n", h.Key, h.Desc))
	}
	return b.String()
}

func (m *Model) refresh() {
	if m.src == nil {
		return
	}
	m.progress = m.src.Progress()
	m.tasks = m.src.Tasks()
	if p := m.src.Pool(); p != nil {
		m.pool = p.Status()
	}
	m.viewport.SetContent(m.renderTasks())
}

func (m *Model) record(ev scheduler.Event) {
	line := describeEvent(ev)
	if line == "" {
		return
	}
	if ev.Type == scheduler.EventCancelled {
		m.cancelled = true
	}
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecentEvents {
		m.recent = m.recent[len(m.recent)-maxRecentEvents:]
	}
}

func (m *Model) renderTasks() string {
	if len(m.tasks) == 0 {
		return mutedStyle.Render("no tasks")
	}
	var b strings.Builder
	for _, info := range m.tasks {
		style, ok := statusStyles[info.Status]
		if !ok {
			style = lipgloss.NewStyle()
		}
		line := fmt.Sprintf("%s %-20s %-10s %s", statusIcon(info.Status), info.Task.ID, info.Task.Type, style.Render(string(info.Status)))
		if info.Retries > 0 {
			line += fmt.Sprintf(" (retry %d)", info.Retries)
		}
		if info.LastError != "" && info.Status != scheduler.StatusCompleted {
			line += " " + mutedStyle.Render(truncate(info.LastError, 60))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeEvent(ev scheduler.Event) string {
	switch ev.Type {
	case scheduler.EventTaskStarted:
		return fmt.Sprintf("▶ %s started", ev.TaskID)
	case scheduler.EventTaskCompleted:
		return fmt.Sprintf("✓ %s completed in %s", ev.TaskID, ev.Duration.Round(time.Millisecond))
	case scheduler.EventTaskFailed:
		return fmt.Sprintf("✗ %s failed: %s", ev.TaskID, truncate(ev.Error, 80))
	case scheduler.EventTaskRetry:
		return fmt.Sprintf("↻ %s retry %d", ev.TaskID, ev.RetryCount)
	case scheduler.EventTaskSkipped:
		return fmt.Sprintf("- %s skipped: %s", ev.TaskID, ev.Reason)
	case scheduler.EventTaskCancelled:
		return fmt.Sprintf("✗ %s cancelled", ev.TaskID)
	case scheduler.EventCompleted:
		if ev.Success {
			return "run completed"
		}
		return "run completed with failures"
	case scheduler.EventCancelled:
		return "run cancelled"
	}
	return ""
}

func statusIcon(s scheduler.Status) string {
	switch s {
	case scheduler.StatusRunning:
		return ">"
	case scheduler.StatusCompleted:
		return "x"
	case scheduler.StatusFailed, scheduler.StatusCancelled:
		return "!"
	case scheduler.StatusSkipped:
		return "-"
	default:
		return " "
	}
}

// renderBar draws a progress bar. Successful tasks fill green and failed or
// skipped tasks red.
func renderBar(p scheduler.Progress, width int) string {
	if width <= 0 {
		width = barWidth
	}
	if p.Total == 0 {
		return mutedStyle.Render(strings.Repeat("░", width)) + " 0%"
	}
	ok := p.Completed * width / p.Total
	bad := (p.Completed+p.Failed+p.Skipped)*width/p.Total - ok
	rest := width - ok - bad
	return barFullStyle.Render(strings.Repeat("█", ok)) +
		barFailStyle.Render(strings.Repeat("█", bad)) +
		mutedStyle.Render(strings.Repeat("░", rest)) +
		fmt.Sprintf(" %3.0f%%", p.Percentage)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(ch <-chan scheduler.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// Run shows the view until events is closed or the user quits. Events left
// after an early quit are drained so the scheduler never blocks on them.
func Run(ctx context.Context, src Source, events <-chan scheduler.Event, cancel context.CancelFunc) error {
	model := NewModel(src, events, cancel)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(*Model); !ok || !m.Finished() {
		go func() {
			for range events {
			}
		}()
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
