package machine

import (
	"fmt"

	"github.com/fentz26/pomo/internal/models"
)

// InSession is false only while idle before a run or paused.
func InSession(s models.MachineState) bool {
	return s.Phase != models.PhaseBeforeRun && s.Phase != models.PhasePaused
}

// PhaseText is the headline shown above the clock.
func PhaseText(s models.MachineState) string {
	switch s.Phase {
	case models.PhaseBeforeRun:
		return "Ready?"
	case models.PhaseRunning, models.PhasePaused:
		return fmt.Sprintf("Session %d", s.SessionRound)
	case models.PhaseBeforeBreak, models.PhaseBreaking:
		return fmt.Sprintf("Break %d", s.BreakRound)
	}
	return "Ready?"
}

// DisplayTime formats the remaining seconds as mm:ss.
func DisplayTime(s models.MachineState) string {
	return FormatClock(s.RemainingSeconds)
}

// FormatClock formats seconds as mm:ss. Minutes are not wrapped at 60.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
