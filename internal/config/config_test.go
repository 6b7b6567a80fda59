package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultGeneratesPeerID(t *testing.T) {
	cfg := Default()

	id, err := uuid.Parse(cfg.PeerID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	assert.NotEqual(t, cfg.PeerID, Default().PeerID)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, 3, cfg.RetryThreshold)
	assert.Equal(t, 12, cfg.ActiveLimit)
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 5*time.Second, cfg.JoinTimeout())
	assert.Equal(t, uint64(512), cfg.Memory.CriticalMiB)
	assert.True(t, cfg.Prefetch.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
peer_id: "replica-a"
data_path: "/var/lib/loom/loom.db"
queue_capacity: 64
tick_interval_ms: 8
memory:
  critical_mib: 256
plugins:
  watch: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "replica-a", cfg.PeerID)
	assert.Equal(t, "/var/lib/loom/loom.db", cfg.DataPath)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, 8*time.Millisecond, cfg.TickInterval())

	// Unset fields keep defaults.
	assert.Equal(t, 3, cfg.RetryThreshold)
	assert.Equal(t, uint64(256), cfg.Memory.CriticalMiB)
	assert.Equal(t, uint64(15), cfg.Memory.WarningPercent)
	assert.False(t, cfg.Plugins.Watch)
	assert.Equal(t, "plugins", cfg.Plugins.Dir)
}

func TestLoadGeneratesPeerIDWhenOmitted(t *testing.T) {
	path := writeConfig(t, `queue_capacity: 32`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.PeerID)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative capacity", `queue_capacity: -1`},
		{"zero tick", `tick_interval_ms: 0`},
		{"percent over 100", "memory:\n  warning_percent: 150"},
		{"wrong type", `retry_threshold: "three"`},
		{"empty peer id", `peer_id: ""`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "queue_capacity: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
