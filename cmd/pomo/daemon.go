package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/fentz26/pomo/internal/audit"
	"github.com/fentz26/pomo/internal/config"
	"github.com/fentz26/pomo/internal/controlplane"
	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/models"
	"github.com/fentz26/pomo/internal/notify"
	"github.com/fentz26/pomo/internal/store"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the pomo daemon",
	Long:  `Starts the pomo daemon which owns the timer and serves the HTTP API used by the TUI and CLI.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	dest := logPath
	if dest == "" {
		dest = cfg.LogPath
	}
	logFile, logErr := setupLogging(dest)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	log.Println("Starting pomo daemon...")

	// The watcher needs a file to watch.
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(configPath, cfg); err != nil {
			log.Printf("Warning: failed to write default config: %v", err)
		}
	}

	// Initialize store
	s, err := store.New(cfg.DatabasePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	prompt := notify.NewPrompt()
	prompt.SetAvailable(cfg.Notifications)

	eng := engine.New(ctx, s, prompt, engine.Options{
		Settings:    cfg.Timer,
		AutoAdvance: cfg.AutoAdvance,
		Journal:     audit.NewJournal(s),
		OnPersisted: func(iv models.CompletedInterval) {
			log.Printf("Recorded %s interval %s (%s)", iv.Kind, iv.ID, iv.Elapsed().Round(time.Second))
		},
	})

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := eng.Run(ctx); err != nil {
			log.Printf("Engine stopped: %v", err)
		}
	})

	// Create service and server
	var cfgMu sync.Mutex
	service := controlplane.NewService(eng, s)
	service.OnSettingsChanged(func(settings models.Settings, autoAdvance bool) error {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		cfg.Timer = settings
		cfg.AutoAdvance = autoAdvance
		return config.Save(configPath, cfg)
	})
	server := controlplane.NewServer(service, cfg.ListenAddr)

	if err := config.Watch(ctx, configPath, func(next *config.Config) {
		cfgMu.Lock()
		cfg.Timer = next.Timer
		cfg.AutoAdvance = next.AutoAdvance
		cfg.Notifications = next.Notifications
		cfgMu.Unlock()

		prompt.SetAvailable(next.Notifications)
		if _, err := eng.UpdateSettings(ctx, next.Timer); err != nil {
			log.Printf("Config reload: %v", err)
			return
		}
		if _, err := eng.SetAutoAdvance(ctx, next.AutoAdvance); err != nil {
			log.Printf("Config reload: %v", err)
			return
		}
		log.Printf("Config reloaded from %s", configPath)
	}); err != nil {
		log.Printf("Warning: config changes will not be picked up: %v", err)
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			runErr = err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stopping the engine first closes event streams, which Shutdown would
	// otherwise wait on.
	log.Println("Stopping timer...")
	cancel()
	wg.Wait()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return runErr
}
