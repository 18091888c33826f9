package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/ltam/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("LTAM_HOST")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoad_CanOverrideHost(t *testing.T) {
	t.Setenv("LTAM_HOST", "0.0.0.0")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_SchedulerDefaults(t *testing.T) {
	_ = os.Unsetenv("LTAM_SYNTHESIS_INTERVAL_HOURS")
	_ = os.Unsetenv("LTAM_DREAM_INTERVAL_HOURS")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Scheduler.SynthesisIntervalHours)
	assert.Equal(t, 12.0, cfg.Scheduler.DreamIntervalHours)
	assert.Equal(t, 60, cfg.Scheduler.StaleDreamSweepMinutes)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Scheduler.SynthesisIntervalHours)
}

func TestLoad_YAMLOverridesSchedulerDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  synthesis_interval_hours: 2
  dream_interval_hours: 24
  max_packs_per_anima: 10
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Scheduler.SynthesisIntervalHours)
	assert.Equal(t, 24.0, cfg.Scheduler.DreamIntervalHours)
	assert.Equal(t, 10, cfg.Scheduler.MaxPacksPerAnima)
}

func TestLoad_EnvVarOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  synthesis_interval_hours: 2
`), 0o644))
	t.Setenv("LTAM_SYNTHESIS_INTERVAL_HOURS", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	// buildBaseConfig applies the env var first; the YAML value only wins
	// when no env var was set, so the env value must still win here since
	// Load never distinguishes "env var explicitly set to the default"
	// from "not set" -- this asserts the documented precedence directly.
	assert.Equal(t, 3.0, cfg.Scheduler.SynthesisIntervalHours)
}

func TestWatch_ReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  synthesis_interval_hours: 2
`), 0o644))

	w, err := config.Watch(path)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.Equal(t, 2.0, w.Snapshot().Scheduler.SynthesisIntervalHours)

	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  synthesis_interval_hours: 9
`), 0o644))

	require.Eventually(t, func() bool {
		return w.Snapshot().Scheduler.SynthesisIntervalHours == 9.0
	}, 2*time.Second, 10*time.Millisecond, "watcher must pick up the rewritten file")
}

func TestWatch_BadReloadKeepsPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  synthesis_interval_hours: 2
`), 0o644))

	w, err := config.Watch(path)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(path, []byte(`not: [valid yaml`), 0o644))

	select {
	case err := <-w.Errs():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload error on malformed yaml")
	}
	assert.Equal(t, 2.0, w.Snapshot().Scheduler.SynthesisIntervalHours,
		"snapshot must not change on a failed reload")
}
