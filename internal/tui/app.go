// Package tui provides the interactive terminal UI for pomo.
package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/pomo/internal/controlplane"
	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/history"
	"github.com/fentz26/pomo/internal/models"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	sessionColor = lipgloss.Color("#EF4444")
	breakColor   = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgColor).
			Padding(1, 4)

	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warningColor).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Italic(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(breakColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(sessionColor)
)

// pollInterval is how often the TUI refreshes state from the daemon.
const pollInterval = 250 * time.Millisecond

// durationStep is how much one +/-/[/] press changes a duration.
const durationStep = 60

// App is the main TUI application model.
type App struct {
	backend  Backend
	keys     keyMap
	help     help.Model
	progress progress.Model

	snap         engine.Snapshot
	today        history.Day
	online       bool
	loaded       bool
	message      string
	lastNoticeID string
	width        int
	height       int
}

// New creates a new TUI application.
func New(b Backend) *App {
	return &App{
		backend:  b,
		keys:     defaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchState(),
		a.fetchStats(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.progress.Width = max(10, min(60, msg.Width-8))
		a.help.Width = msg.Width

	case tickMsg:
		return a, tea.Batch(a.fetchState(), a.tickCmd())

	case stateMsg:
		return a, a.applyState(msg.snap)

	case resultMsg:
		a.message = msg.message
		return a, a.applyState(msg.snap)

	case statsMsg:
		a.today = msg.stats.Today

	case errMsg:
		a.online = false
		a.message = "Error: " + msg.err.Error()
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	settings := a.snap.Settings

	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Toggle):
		return a.apply(toggleIntent(a.snap.State.Phase))
	case key.Matches(msg, a.keys.Reset):
		return a.apply("reset")
	case key.Matches(msg, a.keys.Skip):
		return a.apply("skip")
	case key.Matches(msg, a.keys.Ack):
		if a.snap.Notice != nil {
			return a.resolve(a.backend.Acknowledge, "")
		}
	case key.Matches(msg, a.keys.Dismiss):
		if a.snap.Notice != nil {
			return a.resolve(a.backend.Dismiss, "Dismissed")
		}
	case key.Matches(msg, a.keys.SessionUp):
		v := adjust(settings.SessionDurationSeconds, durationStep)
		return a.patch(controlplane.SettingsPatch{SessionDurationSeconds: &v})
	case key.Matches(msg, a.keys.SessionDown):
		v := adjust(settings.SessionDurationSeconds, -durationStep)
		return a.patch(controlplane.SettingsPatch{SessionDurationSeconds: &v})
	case key.Matches(msg, a.keys.BreakUp):
		v := adjust(settings.BreakDurationSeconds, durationStep)
		return a.patch(controlplane.SettingsPatch{BreakDurationSeconds: &v})
	case key.Matches(msg, a.keys.BreakDown):
		v := adjust(settings.BreakDurationSeconds, -durationStep)
		return a.patch(controlplane.SettingsPatch{BreakDurationSeconds: &v})
	case key.Matches(msg, a.keys.Silent):
		v := !settings.Silent
		return a.patch(controlplane.SettingsPatch{Silent: &v})
	case key.Matches(msg, a.keys.AutoAdvance):
		v := !a.snap.AutoAdvance
		return a.patch(controlplane.SettingsPatch{AutoAdvance: &v})
	}
	return nil
}

// applyState stores a fresh snapshot. A newly posted notice rings the bell
// unless silent; phase changes refresh today's stats.
func (a *App) applyState(snap engine.Snapshot) tea.Cmd {
	prev := a.snap
	a.snap = snap
	a.online = true

	var cmds []tea.Cmd
	if !a.loaded || prev.State.Phase != snap.State.Phase {
		cmds = append(cmds, a.fetchStats())
	}
	a.loaded = true

	if snap.Notice != nil && snap.Notice.ID != a.lastNoticeID {
		a.lastNoticeID = snap.Notice.ID
		if !snap.Notice.Silent {
			cmds = append(cmds, ringBell)
		}
	}
	return tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.online {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	b.WriteString(titleStyle.Render("pomo") + "  " + daemonStatus + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	if !a.loaded {
		b.WriteString("\n  Connecting to daemon...\n")
		return b.String()
	}

	st := a.snap.State
	color := sessionColor
	if st.Phase == models.PhaseBeforeBreak || st.Phase == models.PhaseBreaking {
		color = breakColor
	}
	phase := lipgloss.NewStyle().Foreground(color).Bold(true).Render(a.snap.PhaseText)
	if st.Phase == models.PhasePaused {
		phase += mutedStyle.Render("  (paused)")
	}

	b.WriteString("\n  " + phase + "\n")
	b.WriteString(clockStyle.Render(a.snap.DisplayTime) + "\n")
	b.WriteString("  " + a.progress.ViewAs(percent(a.snap)) + "\n\n")

	if n := a.snap.Notice; n != nil {
		b.WriteString(noticeStyle.Render(n.Message+"\n"+mutedStyle.Render("enter: ok  esc: dismiss")) + "\n")
	}
	if a.snap.NoticesUnavailable {
		b.WriteString("  " + hintStyle.Render("Notices are unavailable; the timer keeps running without them.") + "\n")
	}

	s := a.snap.Settings
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  session %s · break %s · %s · %s",
		formatDuration(time.Duration(s.SessionDurationSeconds)*time.Second),
		formatDuration(time.Duration(s.BreakDurationSeconds)*time.Second),
		onOff("sound", !s.Silent),
		onOff("auto", a.snap.AutoAdvance),
	)) + "\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  today: %d sessions · %s focus · level %d",
		a.today.Sessions, formatDuration(a.today.FocusTime), a.today.Level)) + "\n")

	if a.message != "" {
		b.WriteString("\n  " + a.message + "\n")
	}

	b.WriteString("\n" + a.help.View(a.keys) + "\n")
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(fmt.Sprintf(" %s | round %d/%d", st.Phase, st.SessionRound, st.BreakRound)))
	return b.String()
}

// toggleIntent is start everywhere except while running.
func toggleIntent(p models.Phase) string {
	if p == models.PhaseRunning {
		return "pause"
	}
	return "start"
}

// adjust changes a duration by delta seconds, never below one step.
func adjust(seconds, delta int) int {
	return max(durationStep, seconds+delta)
}

// percent is how much of the current interval has elapsed.
func percent(s engine.Snapshot) float64 {
	total := s.Settings.SessionDurationSeconds
	if s.State.Phase == models.PhaseBeforeBreak || s.State.Phase == models.PhaseBreaking {
		total = s.Settings.BreakDurationSeconds
	}
	if total <= 0 {
		return 0
	}
	p := 1 - float64(s.State.RemainingSeconds)/float64(total)
	return min(1, max(0, p))
}

func onOff(label string, on bool) string {
	if on {
		return label + " on"
	}
	return label + " off"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func ringBell() tea.Msg {
	fmt.Fprint(os.Stdout, "\a")
	return nil
}

type stateMsg struct {
	snap engine.Snapshot
}

type resultMsg struct {
	snap    engine.Snapshot
	message string
}

type statsMsg struct {
	stats *controlplane.Stats
}

type errMsg struct {
	err error
}

type tickMsg time.Time

func (a *App) fetchState() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.backend.State()
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{snap}
	}
}

func (a *App) fetchStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := a.backend.Stats(7)
		if err != nil {
			return errMsg{err}
		}
		return statsMsg{stats}
	}
}

func (a *App) apply(intent string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.backend.Apply(intent)
		if err != nil {
			return errMsg{err}
		}
		return resultMsg{snap: snap}
	}
}

func (a *App) resolve(fn func() error, message string) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		snap, err := a.backend.State()
		if err != nil {
			return errMsg{err}
		}
		return resultMsg{snap: snap, message: message}
	}
}

func (a *App) patch(p controlplane.SettingsPatch) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.backend.UpdateSettings(p)
		if err != nil {
			return errMsg{err}
		}
		return resultMsg{snap: snap, message: "Settings saved"}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
