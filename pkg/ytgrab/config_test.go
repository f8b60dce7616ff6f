package ytgrab

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	return f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func missingEnvFile(t *testing.T) string {
	return "-" + envFileOption + "=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, LoadConfig(newFlagSet(), []string{missingEnvFile(t)}, &cfg))

	assert.Equal(t, []string{All}, []string(cfg.Target))
	assert.Equal(t, ":8000", cfg.Server.ListenAddress)
	assert.Equal(t, []string{"http://localhost:3000"}, []string(cfg.Server.AllowedOrigins))
	assert.Equal(t, "uploads", cfg.Downloader.Dir)
	assert.Equal(t, 3, cfg.Downloader.MaxConcurrent)
	assert.Equal(t, time.Hour, cfg.Downloader.Fetcher.MaxDuration)
	assert.Equal(t, int64(100*1024*1024), cfg.Downloader.Fetcher.MaxFileSize)
	assert.Equal(t, 10*time.Minute, cfg.Downloader.Fetcher.Timeout)
	assert.False(t, cfg.Downloader.Fetcher.TestMode)
	assert.Empty(t, cfg.Downloader.Fallback.Sources)
	assert.Equal(t, 2*time.Second, cfg.Downloader.Fallback.Delay)
	assert.Equal(t, time.Duration(0), cfg.Janitor.Retention)
	assert.Less(t, cfg.Server.MetadataTimeout, cfg.Server.WriteTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigPriority(t *testing.T) {
	configFile := writeFile(t, "config.yaml", `
server:
  listen_address: ":9000"
downloader:
  dir: /from/file
  max_concurrent: 5
  fetcher:
    test_mode: false
`)
	t.Setenv("YTGRAB_DOWNLOAD_DIR", "/from/env")
	t.Setenv("YTGRAB_TEST_MODE", "true")

	var cfg Config
	args := []string{
		"-" + configFileOption + "=" + configFile,
		missingEnvFile(t),
		"-downloader.max-concurrent=7",
	}
	require.NoError(t, LoadConfig(newFlagSet(), args, &cfg))

	// File over defaults.
	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	// Env over file.
	assert.Equal(t, "/from/env", cfg.Downloader.Dir)
	assert.True(t, cfg.Downloader.Fetcher.TestMode)
	// Args over everything.
	assert.Equal(t, 7, cfg.Downloader.MaxConcurrent)
}

func TestLoadConfigEnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "YTGRAB_LISTEN_ADDRESS=:7000\n")
	t.Cleanup(func() { _ = os.Unsetenv("YTGRAB_LISTEN_ADDRESS") })

	var cfg Config
	require.NoError(t, LoadConfig(newFlagSet(), []string{"-" + envFileOption + "=" + envFile}, &cfg))

	assert.Equal(t, ":7000", cfg.Server.ListenAddress)
}

func TestLoadConfigStrictFile(t *testing.T) {
	configFile := writeFile(t, "config.yaml", "downloader:\n  no_such_option: 1\n")

	var cfg Config
	err := LoadConfig(newFlagSet(), []string{"-" + configFileOption + "=" + configFile, missingEnvFile(t)}, &cfg)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg Config
	err := LoadConfig(newFlagSet(), []string{"-" + configFileOption + "=/no/such/file.yaml", missingEnvFile(t)}, &cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.RegisterFlags(newFlagSet())
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty dir", func(c *Config) { c.Downloader.Dir = "" }},
		{"zero concurrency", func(c *Config) { c.Downloader.MaxConcurrent = 0 }},
		{"negative timeout", func(c *Config) { c.Downloader.Fetcher.Timeout = -time.Second }},
		{"metadata timeout above write timeout", func(c *Config) {
			c.Server.MetadataTimeout = 3 * time.Minute
		}},
		{"janitor without interval", func(c *Config) {
			c.Janitor.Retention = time.Hour
			c.Janitor.Interval = 0
		}},
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
