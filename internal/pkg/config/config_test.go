package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 12, cfg.Dashboard.BarWidth)
	assert.Equal(t, 5, cfg.Dashboard.TopContributors)
	assert.False(t, cfg.Dashboard.ShowUpdatedAt)
	assert.True(t, filepath.IsAbs(cfg.Storage.DBPath))
	assert.Empty(t, cfg.Path())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  db_path: ":memory:"
discord:
  token: "${TALLY_TEST_TOKEN}"
dashboard:
  bar_width: 20
`), 0o600))

	t.Setenv("TALLY_TEST_TOKEN", "secret")
	t.Setenv("TALLY_DASHBOARD_TITLE", "Org Progress")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Storage.DBPath)
	assert.Equal(t, "secret", cfg.Discord.Token)
	assert.Equal(t, 20, cfg.Dashboard.BarWidth)
	assert.Equal(t, "Org Progress", cfg.Dashboard.Title)
	assert.Equal(t, path, cfg.Path())
}

func TestValidateRejectsBadCombos(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Dashboard.BarWidth = 2
	assert.Error(t, cfg.Validate())
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config", "config.yaml")

	cfg := Default()
	cfg.Storage.DBPath = ":memory:"
	cfg.Reconcile.AutoFix = true
	cfg.Report.CheckIntervalSec = 30
	require.NoError(t, WriteFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Reconcile.AutoFix)
	assert.Equal(t, 30, loaded.Report.CheckIntervalSec)

	assert.Error(t, WriteFile("", cfg))
	assert.Error(t, WriteFile(path, nil))
}

func TestLocationFallsBack(t *testing.T) {
	assert.Equal(t, "UTC", AppConfig{Timezone: "UTC"}.Location().String())
	assert.Equal(t, "Local", AppConfig{Timezone: "Not/AZone"}.Location().String())
	assert.Equal(t, "Local", AppConfig{}.Location().String())
}

func TestSetupLoggerLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "tally.log")
	closer, err := SetupLogger(LoggerOptions{Level: "warn", Path: path, Component: "test"})
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	SetLogLevel("debug")
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	slog.Debug("hello")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "component=test")

	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
