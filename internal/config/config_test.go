package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 1500*time.Millisecond, cfg.SynthesisDebounce())
	assert.Equal(t, 30*time.Second, cfg.AutosavePeriod())
	assert.Equal(t, 2, cfg.Library.SynthesisThreshold)
	assert.False(t, cfg.RemoteGeneration())
	require.Len(t, cfg.Library.Folders, 3)
	assert.Equal(t, FolderSeed{ID: "quantum", Name: "Quantum Physics"}, cfg.Library.Folders[1])
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
port = 9000

[library]
autosave_seconds = 10
persist = true
folders = [{ id = "default", name = "General" }, { id = "bio", name = "Biology" }]

[mysql]
host = "db"
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("LIBRARY_PERSIST", "false")
	t.Setenv("GENERATION_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.AutosavePeriod())
	assert.False(t, cfg.Library.Persist)
	assert.Equal(t, 0.5, cfg.Generation.RequestsPerSecond)
	assert.Equal(t, []FolderSeed{{ID: "default", Name: "General"}, {ID: "bio", Name: "Biology"}}, cfg.Library.Folders)
	assert.Contains(t, cfg.MySQL.DSN(), "@tcp(db:3306)/lumina_research?")
}

func TestLoad_InvalidEnvValueKeepsFallback(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("APP_PORT", "not-a-port")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_RejectsBadGenerationMode(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	t.Setenv("GENERATION_MODE", "remote")
	_, err := Load()
	assert.ErrorContains(t, err, "remote_url")

	t.Setenv("GENERATION_REMOTE_URL", "http://peer:8080")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RemoteGeneration())

	t.Setenv("GENERATION_MODE", "carrier-pigeon")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_BrokenFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "[app\nport ="))
	_, err := Load()
	assert.ErrorContains(t, err, "decode config file failed")
}
