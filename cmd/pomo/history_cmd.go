package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/controlplane"
	"github.com/fentz26/pomo/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show completed sessions per day",
	RunE:  runStats,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List recorded intervals",
	RunE:  runLog,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent phase transitions",
	RunE:  runJournal,
}

var (
	statsDays    int
	logFrom      string
	logTo        string
	logClear     bool
	journalLimit int
)

// heat renders levels 0-3.
var heat = []string{"·", "░", "▒", "█"}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days to show, including today")

	logCmd.Flags().StringVar(&logFrom, "from", "", "Start date (YYYY-MM-DD), defaults to today")
	logCmd.Flags().StringVar(&logTo, "to", "", "End date, exclusive (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logClear, "clear", false, "Delete all recorded intervals")

	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of entries to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	body, err := apiGet(fmt.Sprintf("/api/stats?days=%d", statsDays))
	if err != nil {
		return err
	}

	var stats controlplane.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	t := stats.Today
	fmt.Printf("Today: %d sessions, %s focused, %d breaks\n", t.Sessions, t.FocusTime.Round(time.Minute), t.Breaks)
	if !t.LastEndedAt.IsZero() {
		fmt.Printf("Last interval ended %s\n", humanize.Time(t.LastEndedAt))
	}
	if len(stats.Days) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tHEAT\tSESSIONS\tFOCUS\tBREAKS")
	for _, d := range stats.Days {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", d.Date, heat[d.Level], d.Sessions, d.FocusTime.Round(time.Minute), d.Breaks)
	}
	return w.Flush()
}

func runLog(cmd *cobra.Command, args []string) error {
	if logClear {
		body, err := apiDelete("/api/intervals")
		if err != nil {
			return err
		}
		var resp struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		fmt.Printf("Deleted %s intervals\n", humanize.Comma(resp.Deleted))
		return nil
	}

	q := url.Values{}
	if logFrom != "" {
		q.Set("from", logFrom)
	}
	if logTo != "" {
		q.Set("to", logTo)
	}
	path := "/api/intervals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	body, err := apiGet(path)
	if err != nil {
		return err
	}
	var resp struct {
		Intervals []models.CompletedInterval `json:"intervals"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Intervals) == 0 {
		fmt.Println("No intervals recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSTARTED\tLASTED\tPLANNED\tENDED")
	for _, iv := range resp.Intervals {
		planned := time.Duration(iv.ExpectedDurationSeconds) * time.Second
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			iv.Kind,
			iv.StartedAt.Local().Format("2006-01-02 15:04"),
			iv.Elapsed().Round(time.Second),
			planned,
			humanize.Time(iv.EndedAt),
		)
	}
	return w.Flush()
}

func runJournal(cmd *cobra.Command, args []string) error {
	body, err := apiGet(fmt.Sprintf("/api/transitions?limit=%d", journalLimit))
	if err != nil {
		return err
	}
	var resp struct {
		Transitions []models.TransitionEntry `json:"transitions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEVENT\tFROM\tTO\tREMAINING\tINPUTS")
	for _, e := range resp.Transitions {
		hash := e.InputsHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%ds\t%s\n",
			humanize.Time(e.Timestamp),
			e.Event,
			strings.ReplaceAll(string(e.From), "_", " "),
			strings.ReplaceAll(string(e.To), "_", " "),
			e.Remaining,
			hash,
		)
	}
	return w.Flush()
}
