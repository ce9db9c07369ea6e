package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration parses one of the config's string duration fields ("30s", "5m").
// Empty and zero values fall back to def; path names the field in errors.
func Duration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Typed accessors so callers never re-spell field paths or defaults.

func (c StorageConfig) BusyWait() (time.Duration, error) {
	return Duration("storage.busy_timeout", c.BusyTimeout, 0)
}

func (c AssetsConfig) FetchWait() (time.Duration, error) {
	return Duration("assets.fetch_timeout", c.FetchTimeout, 3*time.Second)
}

func (c PublisherConfig) PublishWait() (time.Duration, error) {
	return Duration("publisher.publish_timeout", c.PublishTimeout, 3*time.Second)
}

func (c SchedulerConfig) SweepEvery() (time.Duration, error) {
	return Duration("scheduler.sweep_interval", c.SweepInterval, 5*time.Second)
}
