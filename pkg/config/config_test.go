// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Load("")
	require.NoError(err)
	require.Equal(":8080", cfg.ListenAddr)
	require.Equal(":9090", cfg.AdminAddr)
	require.Equal("production", cfg.SDK.Environment)
	require.Equal(1024, cfg.Events.Buffer)
	require.Equal(256, cfg.Events.SubscriberBuffer)
	require.Equal([]string{"*"}, cfg.API.CORSOrigins)
	require.Equal(0.9, cfg.Simulated.FillRate)
	require.True(cfg.IsLocalDevelopment())
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "adbridge.yaml")
	require.NoError(os.WriteFile(path, []byte(`
listen_addr: ":7000"
environment: production
app_key: file-key
event_buffer: 64
cors_origins:
  - https://a.example
  - https://b.example
simulated:
  latency: 15ms
  fill_rate: 3
`), 0o600))

	t.Setenv("ADBRIDGE_APP_KEY", "env-key")
	t.Setenv("ADBRIDGE_RATE_BURST", "0")

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal(":7000", cfg.ListenAddr)
	require.Equal("env-key", cfg.SDK.AppKey)
	require.Equal(64, cfg.Events.Buffer)
	require.Equal([]string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	require.Equal(15*time.Millisecond, cfg.Simulated.Latency)
	require.Equal(1.0, cfg.Simulated.FillRate)
	require.Equal(1, cfg.API.RateBurst)
	require.False(cfg.IsLocalDevelopment())
}

func TestLoadCommaSeparatedOrigins(t *testing.T) {
	t.Setenv("ADBRIDGE_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
