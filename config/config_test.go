package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir so no stray .env is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, ":8000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "./data", cfg.Storage.Path)
	assert.Equal(t, "session", cfg.Session.Cookie)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_PATH", "/var/lib/ledger.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/ledger.db", cfg.Storage.Path)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_DRIVER=memory\nSERVER_PORT=7000\n"), 0o644))
	// godotenv sets process variables; make sure they are restored.
	t.Setenv("STORAGE_DRIVER", "")
	os.Unsetenv("STORAGE_DRIVER")
	t.Setenv("SERVER_PORT", "7500")

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)

	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 7500, cfg.Server.Port, "the environment wins over the file")
}

func TestValidate_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FORMAT", "xml")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestValidate_AfterOverride(t *testing.T) {
	// GIVEN: a bad driver in the environment
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	// WHEN: a flag-style override replaces it
	cfg.Storage.Driver = DriverMemory

	// THEN
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UnparseableValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SESSION_TTL", "forever")

	_, err := Load()

	assert.Error(t, err)
}
