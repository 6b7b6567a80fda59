// Package config loads and validates the kernel configuration.
//
// Config files are YAML, validated against an embedded CUE schema
// before unmarshalling so malformed files fail with field-level errors
// instead of silently producing zero values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the full kernel configuration. Durations are carried as
// millisecond integers so files stay plain YAML scalars.
type Config struct {
	PeerID         string `yaml:"peer_id"`
	DataPath       string `yaml:"data_path"`
	QueueCapacity  int    `yaml:"queue_capacity"`
	RetryThreshold int    `yaml:"retry_threshold"`
	ActiveLimit    int    `yaml:"active_limit"`
	TickIntervalMS int    `yaml:"tick_interval_ms"`
	JoinTimeoutMS  int    `yaml:"join_timeout_ms"`

	Memory   MemoryConfig   `yaml:"memory"`
	Plugins  PluginConfig   `yaml:"plugins"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

// MemoryConfig tunes the resource-pressure monitor. The level is
// Warning or Critical when available memory falls below EITHER the
// absolute MiB floor or the percentage of total.
type MemoryConfig struct {
	SampleIntervalMS int    `yaml:"sample_interval_ms"`
	WarningMiB       uint64 `yaml:"warning_mib"`
	WarningPercent   uint64 `yaml:"warning_percent"`
	CriticalMiB      uint64 `yaml:"critical_mib"`
	CriticalPercent  uint64 `yaml:"critical_percent"`
}

// PluginConfig tunes the plugin loader.
type PluginConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// PrefetchConfig tunes the background prefetch scheduler.
type PrefetchConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMS int  `yaml:"interval_ms"`
	WarmLimit  int  `yaml:"warm_limit"`
}

// Default returns the configuration used when no file is given.
// PeerID is freshly generated; persist the config to keep a stable
// identity across restarts.
func Default() Config {
	return Config{
		PeerID:         newPeerID(),
		DataPath:       "loom.db",
		QueueCapacity:  256,
		RetryThreshold: 3,
		ActiveLimit:    12,
		TickIntervalMS: 16,
		JoinTimeoutMS:  5000,
		Memory: MemoryConfig{
			SampleIntervalMS: 2000,
			WarningMiB:       1024,
			WarningPercent:   15,
			CriticalMiB:      512,
			CriticalPercent:  8,
		},
		Plugins: PluginConfig{
			Dir:   "plugins",
			Watch: true,
		},
		Prefetch: PrefetchConfig{
			Enabled:    true,
			IntervalMS: 500,
			WarmLimit:  4,
		},
	}
}

// Load reads, schema-validates, and unmarshals a YAML config file.
// Fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates and unmarshals raw YAML config bytes.
func Parse(raw []byte) (Config, error) {
	if err := validateSchema(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.PeerID == "" {
		cfg.PeerID = newPeerID()
	}
	return cfg, nil
}

// TickInterval returns the tick pacing as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// JoinTimeout returns the shutdown worker join bound as a duration.
func (c Config) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMS) * time.Millisecond
}

// SampleInterval returns the memory sampling cadence as a duration.
func (m MemoryConfig) SampleInterval() time.Duration {
	return time.Duration(m.SampleIntervalMS) * time.Millisecond
}

// Interval returns the prefetch cadence as a duration.
func (p PrefetchConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// newPeerID mints a UUIDv7 replica identity. UUIDv7 keeps peer ids
// roughly time-ordered, which makes clock-tie resolution favor newer
// replicas deterministically.
func newPeerID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}
