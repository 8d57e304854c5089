package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Door.PollInterval.Duration)
	assert.Equal(t, 60*time.Second, cfg.Weight.Interval.Duration)
	assert.Equal(t, 15.0, cfg.Weight.Threshold)
	assert.Equal(t, 3, cfg.Photo.Count)
	assert.Equal(t, 3*time.Second, cfg.Photo.Interval.Duration)
	assert.Equal(t, 5*time.Second, cfg.Notify.Cooldown.Duration)
	assert.Equal(t, 10*1024*1024, cfg.Camera.MaxUpload)
	assert.True(t, cfg.Door.ActiveLow)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mailguard.toml")
	data := `
heartbeat = "1m"

[device]
serial = "MG_042"

[backend]
base_url = "http://backend.local"
api_key = "iot_secret"
require_registration = true

[photo]
count = 5
interval = "2s"

[serial]
legacy = true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MG_042", cfg.Device.Serial)
	assert.Equal(t, "http://backend.local", cfg.Backend.BaseURL)
	assert.Equal(t, "iot_secret", cfg.Backend.APIKey)
	assert.True(t, cfg.Backend.RequireRegistration)
	assert.Equal(t, 5, cfg.Photo.Count)
	assert.Equal(t, 2*time.Second, cfg.Photo.Interval.Duration)
	assert.Equal(t, time.Minute, cfg.Heartbeat.Duration)
	assert.True(t, cfg.Serial.Legacy)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15.0, cfg.Weight.Threshold)
	assert.Equal(t, "/api/iot/event", cfg.Backend.EventPath)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[door]\npoll_interval = \"soon\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty serial", func(c *Config) { c.Device.Serial = "" }},
		{"no photos", func(c *Config) { c.Photo.Count = 0 }},
		{"zero poll", func(c *Config) { c.Door.PollInterval.Duration = 0 }},
		{"slow loop", func(c *Config) { c.LoopTick.Duration = 5 * time.Second }},
		{"no boundary", func(c *Config) { c.Camera.Boundary = "" }},
		{"zero threshold", func(c *Config) { c.Weight.Threshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
