package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive timer",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	if err := ensureDaemon(); err != nil {
		return err
	}

	app := tui.New(tui.NewClient(apiAddr))
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning() bool {
	ok, err := tui.NewClient(apiAddr).CheckHealth()
	return err == nil && ok
}

// ensureDaemon starts "pomo daemon" in the background unless one is already
// answering on apiAddr.
func ensureDaemon() error {
	if isDaemonRunning() {
		return nil
	}
	fmt.Println("pomo daemon not running. Starting background service...")
	if err := startDaemon(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	return nil
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, "daemon", "--config", configPath)
	if logPath != "" {
		cmd.Args = append(cmd.Args, "--log", logPath)
	}
	configureDaemonProc(cmd)

	// Keep the daemon off the terminal the TUI is about to take over.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning() {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
