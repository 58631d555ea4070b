package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
	assert.False(t, cfg.Sync.AutoSync)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid https url",
			mutate: func(c *Config) { c.Server.URL = "https://issues.example.com/webissues" },
		},
		{
			name:    "ftp url rejected",
			mutate:  func(c *Config) { c.Server.URL = "ftp://issues.example.com" },
			wantErr: "unsupported scheme",
		},
		{
			name:    "url without host rejected",
			mutate:  func(c *Config) { c.Server.URL = "http://" },
			wantErr: "missing host",
		},
		{
			name:    "unknown log level rejected",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "unknown level",
		},
		{
			name:    "otlp exporter needs endpoint",
			mutate:  func(c *Config) { c.Tracing.Exporter = "otlp" },
			wantErr: "tracing.endpoint is required",
		},
		{
			name: "otlp exporter with endpoint",
			mutate: func(c *Config) {
				c.Tracing.Exporter = "otlp"
				c.Tracing.Endpoint = "localhost:4317"
			},
		},
		{
			name:    "negative timeout rejected",
			mutate:  func(c *Config) { c.Sync.Timeout = -time.Second },
			wantErr: "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server:")
	assert.Contains(t, string(data), "auto_sync: false")
}

func TestWatch_InvokesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0600))

	changed := make(chan struct{}, 1)
	w, err := Watch(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}
