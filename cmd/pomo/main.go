package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/config"
	"github.com/fentz26/pomo/internal/controlplane"
)

var rootCmd = &cobra.Command{
	Use:   "pomo",
	Short: "pomo - a pomodoro timer for the terminal",
	Long:  `pomo alternates focus sessions and breaks. A small daemon owns the timer; the TUI and CLI commands talk to it over HTTP.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	logPath    string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pomo version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pomo %s\n", controlplane.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://"+config.DefaultListenAddr, "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Write daemon logs to this file instead of stderr")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(startCmd, pauseCmd, resetCmd, skipCmd, statusCmd)
	rootCmd.AddCommand(ackCmd, dismissCmd)
	rootCmd.AddCommand(statsCmd, logCmd, journalCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging sends log output to logFilePath, or stderr when it is empty.
func setupLogging(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
