package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// setters maps user-facing keys to field updates.
var setters = map[string]func(c *Config, v string) error{
	"session":         func(c *Config, v string) error { return setSeconds(&c.Timer.SessionDurationSeconds, v) },
	"break":           func(c *Config, v string) error { return setSeconds(&c.Timer.BreakDurationSeconds, v) },
	"session_message": func(c *Config, v string) error { c.Timer.SessionCompleteMessage = v; return nil },
	"break_message":   func(c *Config, v string) error { c.Timer.BreakCompleteMessage = v; return nil },
	"silent":          func(c *Config, v string) error { return setBool(&c.Timer.Silent, v) },
	"auto_advance":    func(c *Config, v string) error { return setBool(&c.AutoAdvance, v) },
	"notifications":   func(c *Config, v string) error { return setBool(&c.Notifications, v) },
	"database_path":   func(c *Config, v string) error { c.DatabasePath = v; return nil },
	"listen_addr":     func(c *Config, v string) error { c.ListenAddr = v; return nil },
	"log_path":        func(c *Config, v string) error { c.LogPath = v; return nil },
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates one field by key. Durations accept whole seconds ("1500") or
// a Go duration ("25m").
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return c.Validate()
}

func setSeconds(dst *int, v string) error {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	*dst = int(d / time.Second)
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}
