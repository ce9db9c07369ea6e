package config

// Config is the root of the daemon configuration.
//
// File format is YAML or JSON; both are decoded strictly (unknown fields are
// rejected) so typos fail loudly instead of silently doing nothing.
// Durations are strings in Go syntax ("30s", "5m").
type Config struct {
	Log       LogConfig       `json:"log"`
	Storage   StorageConfig   `json:"storage"`
	Assets    AssetsConfig    `json:"assets"`
	Publisher PublisherConfig `json:"publisher"`
	Scheduler SchedulerConfig `json:"scheduler"`
	API       APIConfig       `json:"api"`
}

type LogConfig struct {
	Level   string        `json:"level"`
	Console *bool         `json:"console,omitempty"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ConsoleEnabled defaults to true when unset.
func (c LogConfig) ConsoleEnabled() bool { return c.Console == nil || *c.Console }

// StorageConfig selects the task record store driver.
//
// Driver values:
//   - "file":     dependency-free snapshot+journal files (Path)
//   - "sqlite":   SQLite database file (Path, BusyTimeout)
//   - "postgres": PostgreSQL (DSN)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// AssetsConfig configures the asset data source collaborator.
//
// Driver values:
//   - "redis":  last-value cache keyed per asset property
//   - "static": fixed in-memory values (demo/standalone runs)
type AssetsConfig struct {
	Driver       string `json:"driver"`
	Addr         string `json:"addr,omitempty"`
	KeyPrefix    string `json:"key_prefix,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

// PublisherConfig configures the live-update channel.
//
// Driver values:
//   - "memory": in-process fan-out bus (same-process subscribers only)
//   - "redis":  redis pub/sub channels
//
// Kafka, when enabled, additionally mirrors every relay result to a topic for
// downstream consumers; it is never the live channel itself.
type PublisherConfig struct {
	Driver         string      `json:"driver"`
	Addr           string      `json:"addr,omitempty"`
	ChannelPrefix  string      `json:"channel_prefix,omitempty"`
	PublishTimeout string      `json:"publish_timeout,omitempty"`
	WarnRatePerSec int         `json:"warn_rate_per_sec,omitempty"`
	Kafka          KafkaConfig `json:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers,omitempty"`
	Topic   string   `json:"topic,omitempty"`
}

type SchedulerConfig struct {
	SweepInterval     string `json:"sweep_interval,omitempty"`
	DegradedThreshold int    `json:"degraded_threshold,omitempty"`
}

type APIConfig struct {
	Enabled          *bool  `json:"enabled,omitempty"`
	Addr             string `json:"addr,omitempty"`
	CreateRatePerSec int    `json:"create_rate_per_sec,omitempty"`
}

func (c APIConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }
