// Package config provides configuration types and defaults for the
// WebIssues client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ServerConfig identifies the WebIssues server and account.
type ServerConfig struct {
	URL   string `mapstructure:"url"`
	Login string `mapstructure:"login"`
	// Password may be left empty, in which case it is prompted for on
	// the first authentication challenge.
	Password string `mapstructure:"password"`
}

// SyncConfig controls synchronization behavior.
type SyncConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	AutoSync         bool          `mapstructure:"auto_sync"`
	AutoSyncInterval time.Duration `mapstructure:"auto_sync_interval"`
}

// LogConfig controls the diagnostic log output.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// File receives the log output; empty discards it.
	File string `mapstructure:"file"`
}

// TracingConfig controls the trace exporter.
type TracingConfig struct {
	// Exporter is one of "none", "stdout", "otlp".
	Exporter string `mapstructure:"exporter"`
	// Endpoint is the OTLP collector address, used when Exporter is
	// "otlp".
	Endpoint string `mapstructure:"endpoint"`
}

// Config holds all configuration options for the client.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DataDir string        `mapstructure:"data_dir"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Defaults returns a Config with sensible default values. The server
// URL has no default and must come from the config file or flags.
func Defaults() Config {
	return Config{
		Sync: SyncConfig{
			Timeout:          30 * time.Second,
			AutoSync:         false,
			AutoSyncInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}

// DefaultDataDir returns the default location for cached snapshots and
// session files.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".webissues"
	}
	return filepath.Join(home, ".webissues")
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil {
			return fmt.Errorf("server.url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server.url: unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("server.url: missing host")
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required with the otlp exporter")
		}
	default:
		return fmt.Errorf("tracing.exporter: unknown exporter %q", c.Tracing.Exporter)
	}
	if c.Sync.Timeout < 0 {
		return fmt.Errorf("sync.timeout must not be negative")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string
// with comments.
func DefaultConfigTemplate() string {
	return `# WebIssues client configuration

# Server connection
server:
  # Base URL of the WebIssues server
  # url: https://issues.example.com/webissues
  # login: alice
  #
  # Leave password unset to be prompted when the server asks:
  # password: s3cret

# Where snapshots and session files are stored
# (default: ~/.webissues)
# data_dir: /path/to/data

# Synchronization
sync:
  timeout: 30s
  auto_sync: false
  auto_sync_interval: 5m

# Diagnostic logging
log:
  level: info          # debug, info, warn, error
  # file: /tmp/webissues.log

# Tracing
tracing:
  exporter: none       # none, stdout, otlp
  # endpoint: localhost:4317
`
}

// WriteDefaultConfig creates a config file at the given path with
// default settings and comments. Creates the parent directory if it
// doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
