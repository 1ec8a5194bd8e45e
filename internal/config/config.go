// Package config handles TOML-based configuration loading and validation.
// TOML is parsed as data only; nothing in the file is executed.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"vidframe/internal/log"
	"vidframe/internal/provider"
)

const appName = "vidframe"

// Config holds all application configuration.
type Config struct {
	Provider    string        `toml:"provider"`
	TMDBBaseURL string        `toml:"tmdb_base_url"`
	TMDBAPIKey  string        `toml:"tmdb_api_key"`
	Listen      string        `toml:"listen"`
	DBPath      string        `toml:"db_path"`
	ReloadDelay time.Duration `toml:"reload_delay"`
	History     bool          `toml:"history"`
	Browser     string        `toml:"browser"`
	LogLevel    string        `toml:"log_level"`
	Debug       bool          `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider:    provider.DefaultID,
		TMDBBaseURL: "https://api.themoviedb.org/3",
		Listen:      "127.0.0.1:8787",
		ReloadDelay: 100 * time.Millisecond,
		History:     true,
		LogLevel:    "info",
		Debug:       false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
// TMDB_API_KEY in the environment overrides the file.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if key := os.Getenv("TMDB_API_KEY"); key != "" {
		cfg.TMDBAPIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if !provider.Default().Has(c.Provider) {
		return fmt.Errorf("unknown provider %q (see `vidframe providers`)", c.Provider)
	}

	if c.TMDBBaseURL == "" {
		return fmt.Errorf("tmdb_base_url cannot be empty")
	}
	if u, err := url.Parse(c.TMDBBaseURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("tmdb_base_url must be an https URL, got %q", c.TMDBBaseURL)
	}

	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if c.ReloadDelay <= 0 {
		return fmt.Errorf("reload_delay must be positive, got %s", c.ReloadDelay)
	}

	if c.LogLevel != "" && !log.ValidLevel(strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}

	return nil
}

// Level returns the effective log level; debug wins over log_level.
func (c *Config) Level() string {
	if c.Debug {
		return "debug"
	}
	return strings.ToLower(c.LogLevel)
}

// DatabasePath returns db_path with ~ expanded, or the default location
// under the XDG data directory.
func (c *Config) DatabasePath() (string, error) {
	dir := c.DBPath
	if dir == "" {
		return DefaultDBPath()
	}
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// DefaultDBPath returns the path to the SQLite database.
func DefaultDBPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, appName, appName+".db"), nil
}
