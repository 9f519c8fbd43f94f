// Package config loads muxpass settings.
//
// Values are applied in order: built-in defaults, the YAML config file,
// a .env file in the working directory, then MUXPASS_* environment
// variables. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/muxpass/pkg/session"
	"github.com/forest6511/muxpass/pkg/vault"
)

// Storage backends.
const (
	BackendFlatFile = "flatfile"
	BackendSQLite   = "sqlite"
)

// Defaults.
const (
	DefaultDirName   = ".muxpass"
	DefaultKeyFile   = "secret.key"
	DefaultStoreFile = "passwords.csv"
	DefaultSQLite    = "passwords.db"
	DefaultConfig    = "config.yaml"
	lockFileName     = "store.lock"
)

// Config holds the application configuration.
type Config struct {
	DataDir     string        `yaml:"data_dir" env:"MUXPASS_DATA_DIR"`
	KeyFile     string        `yaml:"key_file" env:"MUXPASS_KEY_FILE"`
	StoreFile   string        `yaml:"store_file" env:"MUXPASS_STORE_FILE"`
	Backend     string        `yaml:"backend" env:"MUXPASS_BACKEND"`
	LockTimeout time.Duration `yaml:"lock_timeout" env:"MUXPASS_LOCK_TIMEOUT"`
	PINBackoff  bool          `yaml:"pin_backoff" env:"MUXPASS_PIN_BACKOFF"`
	ParseMode   string        `yaml:"parse_mode" env:"MUXPASS_PARSE_MODE"`
	LogLevel    string        `yaml:"log_level" env:"MUXPASS_LOG_LEVEL"`
	LogFormat   string        `yaml:"log_format" env:"MUXPASS_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:     filepath.Join(home, DefaultDirName),
		KeyFile:     DefaultKeyFile,
		Backend:     BackendFlatFile,
		LockTimeout: session.DefaultTimeout,
		ParseMode:   string(vault.ParseStrict),
		LogLevel:    "warn",
		LogFormat:   "console",
	}
}

// Load builds a Config. An empty path means <data dir>/config.yaml, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	// The data dir may itself come from the environment, so resolve it
	// before looking for the default config file.
	_ = godotenv.Load()
	if dir, ok := os.LookupEnv("MUXPASS_DATA_DIR"); ok && dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(expandHome(cfg.DataDir), DefaultConfig)
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the rest of muxpass cannot act on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	if c.KeyFile == "" {
		return errors.New("config: key_file must not be empty")
	}
	switch c.Backend {
	case BackendFlatFile, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q (want %s or %s)", c.Backend, BackendFlatFile, BackendSQLite)
	}
	if !vault.ParseMode(c.ParseMode).Valid() {
		return fmt.Errorf("config: unknown parse_mode %q", c.ParseMode)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("config: lock_timeout must not be negative, got %v", c.LockTimeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// KeyPath returns the key file location.
func (c *Config) KeyPath() string {
	return c.resolve(c.KeyFile)
}

// StorePath returns the credential store location for the configured
// backend.
func (c *Config) StorePath() string {
	name := c.StoreFile
	if name == "" {
		name = DefaultStoreFile
		if c.Backend == BackendSQLite {
			name = DefaultSQLite
		}
	}
	return c.resolve(name)
}

// LockPath returns the advisory lock file used around store writes.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, lockFileName)
}

func (c *Config) resolve(name string) string {
	name = expandHome(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
