package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log:
  level: debug
storage:
  driver: sqlite
  path: /tmp/assetlink.db
  busy_timeout: 5s
assets:
  driver: redis
  addr: 127.0.0.1:6379
  fetch_timeout: 2s
publisher:
  driver: redis
  addr: 127.0.0.1:6379
  channel_prefix: iot.live
scheduler:
  sweep_interval: 10s
  degraded_threshold: 5
api:
  addr: ":9090"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/tmp/assetlink.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Publisher.ChannelPrefix != "iot.live" {
		t.Fatalf("channel prefix = %q", cfg.Publisher.ChannelPrefix)
	}
	if cfg.Scheduler.DegradedThreshold != 5 {
		t.Fatalf("degraded threshold = %d", cfg.Scheduler.DegradedThreshold)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	d, err := cfg.Scheduler.SweepEvery()
	if err != nil || d != 10*time.Second {
		t.Fatalf("sweep interval = %v, %v", d, err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "log": {"level": "info", "console": false},
  "storage": {"driver": "file", "path": "/tmp/tasks.db"},
  "assets": {"driver": "static"},
  "publisher": {"driver": "memory"},
  "scheduler": {},
  "api": {"enabled": false}
}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.ConsoleEnabled() {
		t.Fatal("console explicitly disabled")
	}
	if cfg.API.IsEnabled() {
		t.Fatal("api explicitly disabled")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
storage:
  driver: file
  path: /tmp/tasks.db
  flush_inteval: 5s
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("typo'd key must be rejected")
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: "file", Path: "/tmp/t.db"},
		}
	}

	cfg := base()
	cfg.Storage.Driver = "mongodb"
	if err := Validate(cfg); err == nil {
		t.Fatal("unknown storage driver must fail")
	}

	cfg = base()
	cfg.Assets.FetchTimeout = "soonish"
	if err := Validate(cfg); err == nil {
		t.Fatal("bad duration must fail")
	}

	cfg = base()
	cfg.Publisher.Kafka.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("kafka without brokers must fail")
	}
	cfg.Publisher.Kafka.Brokers = []string{"localhost:9092"}
	if err := Validate(cfg); err == nil {
		t.Fatal("kafka without topic must fail")
	}
	cfg.Publisher.Kafka.Topic = "assetlink.relay"
	if err := Validate(cfg); err != nil {
		t.Fatalf("valid kafka config rejected: %v", err)
	}

	if err := Validate(nil); err == nil {
		t.Fatal("nil config must fail")
	}
}

func TestDurationField(t *testing.T) {
	if d, err := Duration("x", "", time.Second); err != nil || d != time.Second {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := Duration("x", "0s", time.Second); err != nil || d != time.Second {
		t.Fatalf("zero = %v, %v", d, err)
	}
	if d, err := Duration("x", "2m", 0); err != nil || d != 2*time.Minute {
		t.Fatalf("parsed = %v, %v", d, err)
	}
	if _, err := Duration("x", "-5s", 0); err == nil {
		t.Fatal("negative must fail")
	}
	if _, err := Duration("x", "soon", 0); err == nil {
		t.Fatal("garbage must fail")
	}
}

func TestDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	if !cfg.Log.ConsoleEnabled() {
		t.Fatal("console defaults on")
	}
	if !cfg.API.IsEnabled() {
		t.Fatal("api defaults on")
	}
	d, err := cfg.Scheduler.SweepEvery()
	if err != nil || d != 5*time.Second {
		t.Fatalf("default sweep = %v, %v", d, err)
	}
}
