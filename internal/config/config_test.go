package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "RAID", cfg.LVM.VG)
	assert.Equal(t, 6, cfg.LVM.SyncStallRuns)
	assert.Equal(t, int64(10), cfg.Smart.Thresholds.ReallocWarn)
	assert.Equal(t, int64(0), cfg.Smart.Thresholds.PendingCrit)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, 90, cfg.History.RetentionDaysMetrics)
	assert.Equal(t, 21600, cfg.Alerts.DedupeCooldownSeconds)
	assert.Equal(t, 6*time.Hour, cfg.Alerts.Cooldown())
	assert.True(t, cfg.Alerts.SendRecovery)
	assert.Equal(t, 900, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 8088, cfg.Dashboard.BindPort)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
target:
  hostname_label: nas01
lvm:
  vg: vg0
  lv: data
filesystem:
  mountpoints:
    - path: /data
      warn_pct: 85
      crit_pct: 95
alerts:
  dedupe_cooldown_seconds: 3600
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/services/T/B/X
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nas01", cfg.Target.Hostname())
	assert.Equal(t, "vg0", cfg.LVM.VG)
	assert.Equal(t, "data", cfg.LVM.LV)
	require.Len(t, cfg.Filesystem.Mountpoints, 1)
	assert.Equal(t, "/data", cfg.Filesystem.Mountpoints[0].Path)
	assert.Equal(t, 95.0, cfg.Filesystem.Mountpoints[0].CritPct)
	assert.Equal(t, time.Hour, cfg.Alerts.Cooldown())
	assert.True(t, cfg.Alerts.Slack.Enabled)

	// File values override only what they name; defaults survive.
	assert.Equal(t, 6, cfg.LVM.SyncStallRuns)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	assert.Error(t, err)
}

func TestHostnameFallback(t *testing.T) {
	target := TargetConfig{}
	assert.NotEmpty(t, target.Hostname())
}
