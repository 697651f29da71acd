// Package config loads the taskchat gateway configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full gateway configuration. Loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	// Listen is the HTTP listen address for the gateway API.
	Listen string `yaml:"listen"`
	// JWTSecret is the base64-encoded HS256 secret shared with the
	// task-management service. Override with TASKCHAT_JWT_SECRET.
	JWTSecret string `yaml:"jwt_secret"`
	// Backend configures the AI backend dispatch.
	Backend BackendConfig `yaml:"backend"`
	// Store configures the task data provider.
	Store StoreConfig `yaml:"store"`
}

// BackendConfig configures the call-with-fallback dispatch to the
// generative backend.
type BackendConfig struct {
	// BaseURL is the backend API root.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates backend calls. Override with TASKCHAT_API_KEY.
	APIKey string `yaml:"api_key"`
	// Candidates is the ordered fallback list of model identifiers.
	// Order is priority, not load balancing.
	Candidates []string `yaml:"candidates"`
	// CallTimeoutSec bounds each individual backend call.
	CallTimeoutSec int `yaml:"call_timeout_sec"`
	// BackoffSec is the fixed wait after a not-found or rate-limited reply.
	BackoffSec int `yaml:"backoff_sec"`
}

// StoreConfig selects and configures the task data provider backend.
type StoreConfig struct {
	// Driver is "sqlite" or "mysql".
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// SQLiteConfig configures the embedded SQLite provider.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig configures the MySQL provider, optionally reached through an
// SSH tunnel.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	// Password can be overridden with TASKCHAT_MYSQL_PASSWORD.
	Password string       `yaml:"password"`
	Tunnel   TunnelConfig `yaml:"tunnel"`
}

// TunnelConfig configures the SSH tunnel used to reach a remote database.
type TunnelConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	KeyPath string `yaml:"key_path"`
}

// DefaultConfig returns a configuration that works out of the box with a
// local SQLite store.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Listen: "127.0.0.1:5001",
		Backend: BackendConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Candidates: []string{
				"gemini-2.5-flash",
				"gemini-flash-latest",
				"gemini-2.0-flash-lite",
				"gemini-2.0-flash",
				"gemini-pro-latest",
			},
			CallTimeoutSec: 15,
			BackoffSec:     1,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: filepath.Join(home, ".taskchat", "taskchat.db"),
			},
			MySQL: MySQLConfig{
				Host:     "127.0.0.1",
				Port:     3306,
				Database: "job_management",
				Tunnel:   TunnelConfig{Port: 22},
			},
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskchat", "config.yaml")
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TASKCHAT_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("TASKCHAT_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("TASKCHAT_MYSQL_PASSWORD"); v != "" {
		c.Store.MySQL.Password = v
	}
}

// Validate checks the fields the serving path cannot run without.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (or set TASKCHAT_JWT_SECRET)")
	}
	if len(c.Backend.Candidates) == 0 {
		return fmt.Errorf("backend.candidates must list at least one model")
	}
	if c.Backend.CallTimeoutSec <= 0 {
		return fmt.Errorf("backend.call_timeout_sec must be positive")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required")
		}
	case "mysql":
		m := c.Store.MySQL
		if m.Host == "" || m.Database == "" || m.User == "" {
			return fmt.Errorf("store.mysql requires host, database and user")
		}
		if m.Tunnel.Enabled && (m.Tunnel.Host == "" || m.Tunnel.User == "" || m.Tunnel.KeyPath == "") {
			return fmt.Errorf("store.mysql.tunnel requires host, user and key_path")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// CallTimeout returns the per-call backend timeout as a duration.
func (c *BackendConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// Backoff returns the fixed retry backoff as a duration.
func (c *BackendConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSec) * time.Second
}
