package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pomo/internal/controlplane"
	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/history"
	"github.com/fentz26/pomo/internal/models"
	"github.com/fentz26/pomo/internal/notify"
)

type fakeBackend struct {
	snap    engine.Snapshot
	intents []string
	patches []controlplane.SettingsPatch
	acks    int
	dismiss int
	err     error
}

func (f *fakeBackend) State() (engine.Snapshot, error) { return f.snap, f.err }

func (f *fakeBackend) Apply(intent string) (engine.Snapshot, error) {
	f.intents = append(f.intents, intent)
	return f.snap, f.err
}

func (f *fakeBackend) Acknowledge() error {
	f.acks++
	return f.err
}

func (f *fakeBackend) Dismiss() error {
	f.dismiss++
	return f.err
}

func (f *fakeBackend) UpdateSettings(p controlplane.SettingsPatch) (engine.Snapshot, error) {
	f.patches = append(f.patches, p)
	return f.snap, f.err
}

func (f *fakeBackend) Stats(days int) (*controlplane.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &controlplane.Stats{Today: history.Day{Sessions: 3, Level: 1}}, nil
}

func snapshot(phase models.Phase, remaining int) engine.Snapshot {
	s := models.DefaultSettings()
	return engine.Snapshot{
		State: models.MachineState{
			Phase:            phase,
			RemainingSeconds: remaining,
			SessionRound:     1,
			BreakRound:       1,
		},
		Settings:    s,
		PhaseText:   "Focus",
		DisplayTime: "29:00",
		AutoAdvance: true,
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// send feeds msg to the app and runs the resulting command once, feeding
// its message back.
func send(t *testing.T, a *App, msg tea.Msg) {
	t.Helper()
	_, cmd := a.Update(msg)
	if cmd == nil {
		return
	}
	if out := cmd(); out != nil {
		a.Update(out)
	}
}

func loadedApp(b *fakeBackend) *App {
	a := New(b)
	a.applyState(b.snap)
	return a
}

func TestToggleIntent(t *testing.T) {
	assert.Equal(t, "pause", toggleIntent(models.PhaseRunning))
	for _, p := range []models.Phase{models.PhaseBeforeRun, models.PhasePaused, models.PhaseBeforeBreak, models.PhaseBreaking} {
		assert.Equal(t, "start", toggleIntent(p), p)
	}
}

func TestAdjust(t *testing.T) {
	assert.Equal(t, 1860, adjust(1800, 60))
	assert.Equal(t, 60, adjust(90, -60))
	assert.Equal(t, 60, adjust(60, -60))
}

func TestPercent(t *testing.T) {
	s := snapshot(models.PhaseRunning, 900)
	assert.InDelta(t, 0.5, percent(s), 0.001)

	s = snapshot(models.PhaseBreaking, 30)
	assert.InDelta(t, 0.75, percent(s), 0.001)

	s = snapshot(models.PhaseBeforeRun, 1800)
	assert.InDelta(t, 0, percent(s), 0.001)

	s.Settings.SessionDurationSeconds = 0
	assert.Zero(t, percent(s))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45e9))
	assert.Equal(t, "25m", formatDuration(25*60e9))
	assert.Equal(t, "1h30m", formatDuration(90*60e9))
}

func TestToggleKeySendsIntent(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseRunning, 1700)}
	a := loadedApp(b)

	send(t, a, runeKey('p'))
	require.Equal(t, []string{"pause"}, b.intents)

	a.snap.State.Phase = models.PhasePaused
	send(t, a, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Equal(t, []string{"pause", "start"}, b.intents)
}

func TestResetAndSkipKeys(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseRunning, 1700)}
	a := loadedApp(b)

	send(t, a, runeKey('r'))
	send(t, a, runeKey('s'))
	assert.Equal(t, []string{"reset", "skip"}, b.intents)
}

func TestDurationKeysPatchSettings(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseBeforeRun, 1800)}
	a := loadedApp(b)

	send(t, a, runeKey('+'))
	send(t, a, runeKey('['))
	require.Len(t, b.patches, 2)
	require.NotNil(t, b.patches[0].SessionDurationSeconds)
	assert.Equal(t, 1860, *b.patches[0].SessionDurationSeconds)
	require.NotNil(t, b.patches[1].BreakDurationSeconds)
	assert.Equal(t, 60, *b.patches[1].BreakDurationSeconds)
	assert.Equal(t, "Settings saved", a.message)
}

func TestToggleSilentAndAutoAdvance(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseBeforeRun, 1800)}
	a := loadedApp(b)

	send(t, a, runeKey('m'))
	send(t, a, runeKey('a'))
	require.Len(t, b.patches, 2)
	require.NotNil(t, b.patches[0].Silent)
	assert.True(t, *b.patches[0].Silent)
	require.NotNil(t, b.patches[1].AutoAdvance)
	assert.False(t, *b.patches[1].AutoAdvance)
}

func TestNoticeKeysOnlyWithPendingNotice(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseBeforeBreak, 120)}
	a := loadedApp(b)

	send(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Zero(t, b.acks)

	a.snap.Notice = &notify.Notice{ID: "n1", Message: "It's time to take a break!"}
	send(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, b.acks)

	a.snap.Notice = &notify.Notice{ID: "n2"}
	send(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 1, b.dismiss)
	assert.Equal(t, "Dismissed", a.message)
}

func TestApplyStateTracksNotice(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseBeforeBreak, 120)}
	a := loadedApp(b)

	snap := b.snap
	snap.Notice = &notify.Notice{ID: "n1", Silent: true}
	a.applyState(snap)
	assert.Equal(t, "n1", a.lastNoticeID)

	snap.Notice = nil
	a.applyState(snap)
	assert.Equal(t, "n1", a.lastNoticeID)
}

func TestBackendErrorMarksOffline(t *testing.T) {
	b := &fakeBackend{snap: snapshot(models.PhaseBeforeRun, 1800)}
	a := loadedApp(b)
	require.True(t, a.online)

	b.err = errors.New("connection refused")
	send(t, a, runeKey('r'))
	assert.False(t, a.online)
	assert.Contains(t, a.message, "connection refused")
}

func TestStatsMessageUpdatesToday(t *testing.T) {
	a := New(&fakeBackend{})
	a.Update(statsMsg{stats: &controlplane.Stats{Today: history.Day{Sessions: 5, Level: 2}}})
	assert.Equal(t, 5, a.today.Sessions)
	assert.Equal(t, 2, a.today.Level)
}

func TestQuitKey(t *testing.T) {
	a := New(&fakeBackend{})
	_, cmd := a.Update(runeKey('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView(t *testing.T) {
	a := New(&fakeBackend{})
	assert.Contains(t, a.View(), "Connecting to daemon")

	a.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	snap := snapshot(models.PhaseRunning, 1740)
	snap.Notice = &notify.Notice{ID: "n1", Message: "It's time to work!", Silent: true}
	snap.NoticesUnavailable = true
	a.applyState(snap)

	v := a.View()
	assert.Contains(t, v, "Focus")
	assert.Contains(t, v, "29:00")
	assert.Contains(t, v, "It's time to work!")
	assert.Contains(t, v, "Notices are unavailable")
	assert.Contains(t, v, "round 1/1")
}
