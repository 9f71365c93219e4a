// Package config loads and saves pomo's configuration file.
package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/pomo/internal/models"
)

// DefaultListenAddr is where the daemon serves its API.
const DefaultListenAddr = "127.0.0.1:7468"

// Config holds pomo configuration.
type Config struct {
	// Timer holds the durations and notice messages used by the state machine.
	Timer models.Settings `yaml:"timer" mapstructure:"timer"`
	// AutoAdvance starts the next interval when a completion notice is acknowledged.
	AutoAdvance bool `yaml:"auto_advance" mapstructure:"auto_advance"`
	// Notifications toggles completion notices on/off.
	Notifications bool `yaml:"notifications" mapstructure:"notifications"`
	// DatabasePath is the SQLite file holding interval history.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
	// ListenAddr is the daemon's API listen address.
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	// LogPath redirects logs to a file when set.
	LogPath string `yaml:"log_path,omitempty" mapstructure:"log_path"`
}

// Dir returns ~/.pomo, or .pomo when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pomo"
	}
	return filepath.Join(home, ".pomo")
}

// DefaultPath returns ~/.pomo/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timer:         models.DefaultSettings(),
		AutoAdvance:   true,
		Notifications: true,
		DatabasePath:  filepath.Join(Dir(), "pomo.db"),
		ListenAddr:    DefaultListenAddr,
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("POMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("timer.session_duration_seconds", d.Timer.SessionDurationSeconds)
	v.SetDefault("timer.break_duration_seconds", d.Timer.BreakDurationSeconds)
	v.SetDefault("timer.session_complete_message", d.Timer.SessionCompleteMessage)
	v.SetDefault("timer.break_complete_message", d.Timer.BreakCompleteMessage)
	v.SetDefault("timer.silent", d.Timer.Silent)
	v.SetDefault("auto_advance", d.AutoAdvance)
	v.SetDefault("notifications", d.Notifications)
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("log_path", "")
	return v
}

// Load reads configuration from path (DefaultPath when empty), layering
// POMO_* environment variables over the file and defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timer.SessionDurationSeconds < 1 {
		return fmt.Errorf("timer.session_duration_seconds must be at least 1")
	}
	if c.Timer.BreakDurationSeconds < 1 {
		return fmt.Errorf("timer.break_duration_seconds must be at least 1")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	return nil
}

// Watch calls onChange with the reloaded configuration whenever the file at
// path is written, until ctx is done. Invalid edits are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Printf("config: ignoring change to %s: %v", ev.Name, err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
