package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/models"
)

var startCmd = intentCmd(models.EventStart, "Start or resume the timer")
var pauseCmd = intentCmd(models.EventPause, "Pause a running session")
var resetCmd = intentCmd(models.EventReset, "Stop the timer and go back to a fresh session")
var skipCmd = intentCmd(models.EventSkip, "Skip ahead to the next phase")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer state",
	RunE:  runStatus,
}

var ackCmd = &cobra.Command{
	Use:   "ack [notice-id]",
	Short: "Acknowledge the pending completion notice",
	Args:  cobra.MaximumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return resolveNotice("ack", args) },
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss [notice-id]",
	Short: "Dismiss the pending completion notice",
	Args:  cobra.MaximumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return resolveNotice("dismiss", args) },
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw snapshot as JSON")
}

func intentCmd(ev models.Event, short string) *cobra.Command {
	return &cobra.Command{
		Use:   ev.Intent(),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := apiPost("/api/"+ev.Intent(), nil)
			if err != nil {
				return err
			}
			snap, err := decodeSnapshot(body)
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	body, err := apiGet("/api/state")
	if err != nil {
		return err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return err
	}
	if statusJSON {
		out, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	printSnapshot(snap)
	return nil
}

func resolveNotice(action string, args []string) error {
	var req interface{}
	if len(args) == 1 {
		req = map[string]string{"id": args[0]}
	}
	if _, err := apiPost("/api/notice/"+action, req); err != nil {
		return err
	}
	if action == "ack" {
		fmt.Println("Notice acknowledged")
	} else {
		fmt.Println("Notice dismissed")
	}
	return nil
}

func printSnapshot(snap engine.Snapshot) {
	st := snap.State
	fmt.Printf("%s  %s\n", snap.PhaseText, snap.DisplayTime)

	var details []string
	details = append(details, strings.ReplaceAll(string(st.Phase), "_", " "))
	details = append(details, fmt.Sprintf("session %d", st.SessionRound))
	details = append(details, fmt.Sprintf("break %d", st.BreakRound))
	if !st.IntervalStartedAt.IsZero() && st.Phase != models.PhaseBeforeRun {
		details = append(details, "started "+humanize.Time(st.IntervalStartedAt))
	}
	fmt.Printf("  %s\n", strings.Join(details, ", "))

	if n := snap.Notice; n != nil {
		fmt.Printf("  Notice: %s (posted %s, id %s)\n", n.Message, humanize.Time(n.PostedAt), n.ID)
	}
	if snap.NoticesUnavailable {
		fmt.Println("  Notices are unavailable; the timer keeps running without them.")
	}
}
