// Package config handles reading and writing the clicat configuration file
// (~/.clicat/config.toml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Defaults applied when a key is unset.
const (
	DefaultListenAddr = ":7274"
	DefaultStaleAfter = 30 * 24 * time.Hour
	DefaultLogLevel   = "info"
)

// Config holds clicat configuration settings. Empty fields mean "use the
// default"; the accessor methods resolve them.
type Config struct {
	DBPath        string `toml:"db_path,omitempty" json:"db_path,omitempty"`
	DefaultFormat string `toml:"default_format,omitempty" json:"default_format,omitempty"`
	LogLevel      string `toml:"log_level,omitempty" json:"log_level,omitempty"`
	Workers       int    `toml:"workers,omitempty" json:"workers,omitempty"`
	StaleAfter    string `toml:"stale_after,omitempty" json:"stale_after,omitempty"`
	ListenAddr    string `toml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
	StoreMode     string `toml:"store_mode,omitempty" json:"store_mode,omitempty"`
	RemoteURL     string `toml:"remote_url,omitempty" json:"remote_url,omitempty"`
}

// keys lists the allowed configuration keys in sorted order.
var keys = []string{
	"db_path", "default_format", "listen_addr", "log_level",
	"remote_url", "stale_after", "store_mode", "workers",
}

// ValidKeys returns the sorted list of valid configuration keys.
func ValidKeys() []string {
	return append([]string(nil), keys...)
}

func validKey(key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Dir returns the clicat home directory (~/.clicat).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".clicat")
	}
	return filepath.Join(home, ".clicat")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// DefaultDBPath returns the catalog database path used when db_path is unset.
func DefaultDBPath() string {
	return filepath.Join(Dir(), "catalog.db")
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config from a specific path. Returns an empty Config if
// the file does not exist.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for _, k := range keys {
		v, _ := cfg.Get(k)
		if err := validate(k, v); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return &cfg, nil
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to a specific path, creating parent directories as needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Get returns the string value of a configuration key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "default_format":
		return c.DefaultFormat, nil
	case "log_level":
		return c.LogLevel, nil
	case "workers":
		if c.Workers == 0 {
			return "", nil
		}
		return strconv.Itoa(c.Workers), nil
	case "stale_after":
		return c.StaleAfter, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "store_mode":
		return c.StoreMode, nil
	case "remote_url":
		return c.RemoteURL, nil
	}
	return "", unknownKey(key)
}

// Set assigns a value to a configuration key.
func (c *Config) Set(key, value string) error {
	if !validKey(key) {
		return unknownKey(key)
	}
	if err := validate(key, value); err != nil {
		return err
	}
	switch key {
	case "db_path":
		c.DBPath = value
	case "default_format":
		c.DefaultFormat = value
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "workers":
		c.Workers = 0
		if value != "" {
			c.Workers, _ = strconv.Atoi(value)
		}
	case "stale_after":
		c.StaleAfter = value
	case "listen_addr":
		c.ListenAddr = value
	case "store_mode":
		c.StoreMode = value
	case "remote_url":
		c.RemoteURL = value
	}
	return nil
}

func validate(key, value string) error {
	if value == "" {
		return nil
	}
	switch key {
	case "default_format":
		if value != "table" && value != "json" {
			return fmt.Errorf("default_format must be \"table\" or \"json\", got %q", value)
		}
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", value)
		}
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("workers must be a non-negative integer, got %q", value)
		}
	case "stale_after":
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("stale_after: %w", err)
		}
	case "store_mode":
		if value != "local" && value != "remote" {
			return fmt.Errorf("store_mode must be \"local\" or \"remote\", got %q", value)
		}
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(keys, ", "))
}

// DB returns the database path, falling back to DefaultDBPath.
func (c *Config) DB() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return DefaultDBPath()
}

// Listen returns the serve address.
func (c *Config) Listen() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return DefaultListenAddr
}

// Remote reports whether read commands should go to remote_url.
func (c *Config) Remote() bool {
	return c.StoreMode == "remote" && c.RemoteURL != ""
}

// Staleness returns how long a compatibility record stays fresh.
func (c *Config) Staleness() time.Duration {
	if d, err := ParseDuration(c.StaleAfter); err == nil && d > 0 {
		return d
	}
	return DefaultStaleAfter
}

// ParseDuration accepts Go durations plus a day suffix ("30d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
