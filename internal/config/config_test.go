package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
database: /var/lib/recurd/mirror.db
program_address: "0x0100000000000000000000000000000000000000"
operator_address: "0x0200000000000000000000000000000000000000"
submitter_address: "0x0200000000000000000000000000000000000000"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/recurd/mirror.db", cfg.Database)
	assert.Equal(t, 15*time.Second, cfg.Interval())
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffMin())
	assert.Equal(t, 30*time.Second, cfg.BackoffMax())
	assert.False(t, cfg.IdempotentToggle)
	assert.Empty(t, cfg.MetricsListen)

	addr, err := cfg.Program()
	require.NoError(t, err)
	assert.Equal(t, "0x0100000000000000000000000000000000000000", addr.String())
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(validYAML + `
credential: keyfile:/etc/recurd/submitter.key
interval_seconds: 60
backoff_min_ms: 100
backoff_max_ms: 5000
idempotent_toggle: true
metrics_listen: "127.0.0.1:9464"
`))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Interval())
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffMin())
	assert.Equal(t, 5*time.Second, cfg.BackoffMax())
	assert.True(t, cfg.IdempotentToggle)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsListen)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"missing database", `
program_address: "0x0100000000000000000000000000000000000000"
operator_address: "0x0200000000000000000000000000000000000000"
submitter_address: "0x0200000000000000000000000000000000000000"
`},
		{"empty database", `
database: ""
program_address: "0x0100000000000000000000000000000000000000"
operator_address: "0x0200000000000000000000000000000000000000"
submitter_address: "0x0200000000000000000000000000000000000000"
`},
		{"malformed address", `
database: /tmp/mirror.db
program_address: "not-an-address"
operator_address: "0x0200000000000000000000000000000000000000"
submitter_address: "0x0200000000000000000000000000000000000000"
`},
		{"short address", `
database: /tmp/mirror.db
program_address: "0x0100"
operator_address: "0x0200000000000000000000000000000000000000"
submitter_address: "0x0200000000000000000000000000000000000000"
`},
		{"zero interval", validYAML + "interval_seconds: 0"},
		{"negative backoff", validYAML + "backoff_min_ms: -1"},
		{"not yaml", ":\n  - ["},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_BackoffBoundsOrdered(t *testing.T) {
	_, err := Parse([]byte(validYAML + `
backoff_min_ms: 5000
backoff_max_ms: 100
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoff_max_ms")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recurd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/recurd/mirror.db", cfg.Database)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
