package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/identity"
)

func TestLoad_DefaultsMatchEngine(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultSettings(), cfg.Settings())
	assert.Equal(t, identity.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draftkeep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: badger
  path: /var/lib/draftkeep
timing:
  save_debounce_ms: 1000
identity:
  phone_digits: 8
`), 0o644))
	t.Setenv("DRAFTKEEP_TIMING_RECOVERY_WINDOW_MIN", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/draftkeep", cfg.Storage.Path)
	assert.Equal(t, time.Second, cfg.Settings().SaveDebounce)
	assert.Equal(t, 30*time.Minute, cfg.Settings().RecoveryWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Settings().ValidateDebounce)
	assert.Equal(t, 8, cfg.Policy().PhoneDigits)
	assert.Equal(t, 2, cfg.Policy().MinNameRunes)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Storage.Backend")
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "draftkeep.yaml")
	want := Default()
	want.Storage.Path = "drafts.db"
	want.Identity.MinNameRunes = 3
	want.Log.Level = "debug"

	require.NoError(t, WriteFile(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteFile_Errors(t *testing.T) {
	assert.Error(t, WriteFile("", Default()))
	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "x.yaml"), nil))
}

func TestReports(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.Reports())

	cfg.Storage.Backend = BackendBadger
	cfg.Storage.Path = "/var/lib/draftkeep"
	assert.Equal(t, "/var/lib/draftkeep.reports.db", cfg.Reports())

	cfg.Storage.ReportsPath = "/srv/reports.db"
	assert.Equal(t, "/srv/reports.db", cfg.Reports())
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
