package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MUXPASS_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, BackendFlatFile, cfg.Backend)
	assert.Equal(t, 60*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.PINBackoff)
	assert.Equal(t, "strict", cfg.ParseMode)
	assert.Equal(t, filepath.Join(dir, "secret.key"), cfg.KeyPath())
	assert.Equal(t, filepath.Join(dir, "passwords.csv"), cfg.StorePath())
	assert.Equal(t, filepath.Join(dir, "store.lock"), cfg.LockPath())
}

func TestLoadYAMLFromDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MUXPASS_DATA_DIR", dir)
	writeFile(t, filepath.Join(dir, "config.yaml"), `
backend: sqlite
lock_timeout: 5m
pin_backoff: true
parse_mode: lenient
log_level: debug
`)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 5*time.Minute, cfg.LockTimeout)
	assert.True(t, cfg.PINBackoff)
	assert.Equal(t, "lenient", cfg.ParseMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "passwords.db"), cfg.StorePath())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "muxpass.yaml")
	writeFile(t, path, "data_dir: "+dir+"\nlock_timeout: 5m\nbackend: sqlite\n")

	t.Setenv("MUXPASS_LOCK_TIMEOUT", "0s")
	t.Setenv("MUXPASS_BACKEND", "flatfile")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.LockTimeout)
	assert.Equal(t, BackendFlatFile, cfg.Backend)
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "backend: [unclosed\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestAbsoluteFilesIgnoreDataDir(t *testing.T) {
	other := t.TempDir()
	cfg := Default()
	cfg.DataDir = t.TempDir()
	cfg.KeyFile = filepath.Join(other, "k.bin")
	cfg.StoreFile = filepath.Join(other, "store.csv")

	assert.Equal(t, filepath.Join(other, "k.bin"), cfg.KeyPath())
	assert.Equal(t, filepath.Join(other, "store.csv"), cfg.StorePath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty key file", func(c *Config) { c.KeyFile = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }},
		{"unknown parse mode", func(c *Config) { c.ParseMode = "forgiving" }},
		{"negative timeout", func(c *Config) { c.LockTimeout = -time.Second }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".muxpass"), expandHome("~/.muxpass"))
	assert.Equal(t, "/tmp/x", expandHome("/tmp/x"))
	assert.Equal(t, "rel", expandHome("rel"))
}
