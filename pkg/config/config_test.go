// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notifyd.yml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, defaultSocketPath, cfg.SocketPath)
	assert.Equal(t, uint32(0o666), cfg.SocketMode)
	assert.Equal(t, 18003, cfg.StatusServerPort)
	assert.False(t, cfg.StatusServerEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 512, cfg.MaxNameLength)
	assert.Equal(t, 1024, cfg.StateRetention)
	assert.Equal(t, time.Second, cfg.DeliveryTimeout)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
socket_path: /tmp/test-notifyd.sock
socket_mode: 0600
status_server_enabled: true
status_server_port: 8080
log_level: warn
delivery_timeout: 250ms
state_retention: 10
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-notifyd.sock", cfg.SocketPath)
	assert.Equal(t, uint32(0o600), cfg.SocketMode)
	assert.True(t, cfg.StatusServerEnabled)
	assert.Equal(t, 8080, cfg.StatusServerPort)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.DeliveryTimeout)
	assert.Equal(t, 10, cfg.StateRetention)
	assert.Equal(t, path, cfg.ConfigFilePath)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "socket_path: /tmp/from-file.sock\n")
	t.Setenv("NOTIFYD_SOCKET_PATH", "/tmp/from-env.sock")
	t.Setenv("NOTIFYD_VERBOSE", "1")
	t.Setenv("NOTIFYD_DELIVERY_TIMEOUT", "3s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.sock", cfg.SocketPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.DeliveryTimeout)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_NOTIFYD_SOCKET", "/tmp/expanded.sock")
	path := writeConfig(t, "socket_path: {{TEST_NOTIFYD_SOCKET}}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.sock", cfg.SocketPath)
}

func TestLoadConfig_Unparseable(t *testing.T) {
	path := writeConfig(t, "socket_path: [oops")

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrUnableToParseConfigFile)
}

func TestNormalizeConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "zero values get defaults",
			cfg:  Config{},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, defaultSocketPath, cfg.SocketPath)
				assert.Equal(t, defaultMaxNameLength, cfg.MaxNameLength)
				assert.Equal(t, defaultDeliveryTimeout, cfg.DeliveryTimeout)
				assert.Equal(t, "text", cfg.LogFormat)
			},
		},
		{
			name:    "unknown log format",
			cfg:     Config{LogFormat: "xml"},
			wantErr: true,
		},
		{
			name:    "status port out of range",
			cfg:     Config{StatusServerEnabled: true, StatusServerPort: 70000},
			wantErr: true,
		},
		{
			name: "negative retention disables it",
			cfg:  Config{StateRetention: -4},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 0, cfg.StateRetention)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := NormalizeConfig(&cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
