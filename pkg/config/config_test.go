package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(&cfg))
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, 500000, cfg.Output.FlushRows)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[output]
dir = "/data/parquet"
flush_rows = 1000

[logging]
level = "debug"
output = ["console", "file"]
file = "handler.log"

[metadata]
cube_patterns = ['MyBoard\s+(\S+)']
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/parquet", cfg.Output.Dir)
	assert.Equal(t, 1000, cfg.Output.FlushRows)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"console", "file"}, cfg.Logging.Output)
	assert.Equal(t, "handler.log", cfg.Logging.File)
	assert.Equal(t, []string{`MyBoard\s+(\S+)`}, cfg.Metadata.CubePatterns)
	// Untouched sections keep their defaults.
	assert.Equal(t, "registry", cfg.Registry.Dir)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
output:
  dir: exports
registry:
  enabled: true
  dir: /var/lib/aploghandler
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.Output.Dir)
	assert.True(t, cfg.Registry.Enabled)
	assert.Equal(t, "/var/lib/aploghandler", cfg.Registry.Dir)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[logging]
level = "loud"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsZeroFlushRows(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[output]
flush_rows = 0
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
