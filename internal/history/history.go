// Package history aggregates stored intervals into per-day summaries.
package history

import (
	"sort"
	"time"

	"github.com/fentz26/pomo/internal/machine"
	"github.com/fentz26/pomo/internal/models"
)

// levelSteps are the session counts a day must exceed to climb a heat level.
var levelSteps = []int{1, 5, 9, 14}

// MaxLevel is the hottest heat level.
const MaxLevel = 3

// Level returns the heat level (0-3) for a day's session count. A day moves
// up one level for each step it exceeds, capped at MaxLevel.
func Level(sessions int) int {
	level := 0
	for _, step := range levelSteps {
		if sessions > step {
			level++
		}
	}
	return min(level, MaxLevel)
}

// Day summarizes the intervals started on one local calendar day.
type Day struct {
	Date        string        `json:"date"` // YYYY-MM-DD, local time
	Sessions    int           `json:"sessions"`
	Breaks      int           `json:"breaks"`
	FocusTime   time.Duration `json:"focus_time"`
	BreakTime   time.Duration `json:"break_time"`
	Level       int           `json:"level"`
	LastEndedAt time.Time     `json:"last_ended_at"`
}

// Summarize groups intervals by the local day they started on. Days are
// returned oldest first.
func Summarize(intervals []models.CompletedInterval) []Day {
	byDate := make(map[string]*Day)
	for _, iv := range intervals {
		key := iv.StartedAt.Local().Format("2006-01-02")
		d, ok := byDate[key]
		if !ok {
			d = &Day{Date: key}
			byDate[key] = d
		}
		switch iv.Kind {
		case models.KindSession:
			d.Sessions++
			d.FocusTime += iv.Elapsed()
		case models.KindBreak:
			d.Breaks++
			d.BreakTime += iv.Elapsed()
		}
		if iv.EndedAt.After(d.LastEndedAt) {
			d.LastEndedAt = iv.EndedAt
		}
	}

	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		d.Level = Level(d.Sessions)
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// Today summarizes the intervals that started on now's local day.
func Today(intervals []models.CompletedInterval, now time.Time) Day {
	start, end := machine.DayBounds(now)
	var todays []models.CompletedInterval
	for _, iv := range intervals {
		if !iv.StartedAt.Before(start) && iv.StartedAt.Before(end) {
			todays = append(todays, iv)
		}
	}
	days := Summarize(todays)
	if len(days) == 0 {
		return Day{Date: now.Local().Format("2006-01-02")}
	}
	return days[0]
}

// Window returns the [start, end) range covering the last n local days
// including now's day.
func Window(now time.Time, n int) (time.Time, time.Time) {
	if n < 1 {
		n = 1
	}
	start, end := machine.DayBounds(now)
	return start.AddDate(0, 0, -(n - 1)), end
}
