package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, "mem", cfg.Backing)
	assert.Equal(t, 4, cfg.Workers)
	assert.NoError(t, cfg.Validate())
}

// YAML settings survive the env pass when the SIMFS_* variables are
// unset; only the fields the file omits keep their defaults.
func TestLoadConfigFileWins(t *testing.T) {
	path := writeConfig(t, "addr: 0.0.0.0:9999\nworkers: 8\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "mem", cfg.Backing)
	assert.Equal(t, "simfs.img", cfg.DiskPath)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "addr: 0.0.0.0:9999\nworkers: 8\n")
	t.Setenv("SIMFS_WORKERS", "2")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr, "untouched fields keep the file's value")
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfig(t, "addr: x\nbogus: 1\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Backing = "floppy"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Backing = "file"
	cfg.DiskPath = ""
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}
