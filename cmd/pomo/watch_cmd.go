package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the timer and ring the terminal bell on completion",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, apiAddr+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var last engine.Snapshot
	lastNotice := ""
	return readEvents(resp.Body, func(snap engine.Snapshot) {
		if n := snap.Notice; n != nil && n.ID != lastNotice {
			lastNotice = n.ID
			if !n.Silent {
				fmt.Print("\a")
			}
			fmt.Printf("\n%s\n", n.Message)
		}
		if snap.State.Phase != last.State.Phase || snap.DisplayTime != last.DisplayTime {
			fmt.Printf("\r%-24s %s ", snap.PhaseText, snap.DisplayTime)
		}
		last = snap
	})
}

// readEvents decodes "state" server-sent events from r until it ends.
func readEvents(r io.Reader, fn func(engine.Snapshot)) error {
	scanner := bufio.NewScanner(r)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if event != "state" {
				continue
			}
			var snap engine.Snapshot
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &snap); err != nil {
				return fmt.Errorf("bad event: %w", err)
			}
			fn(snap)
		case line == "":
			event = ""
		}
	}
	return scanner.Err()
}
