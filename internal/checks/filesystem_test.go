package checks

import (
	"context"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fsCheck(t *testing.T, usedPct float64, warn, crit float64) (*FilesystemCheck, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewFilesystemCheck(config.FilesystemConfig{
		Enabled: true,
		Mountpoints: []config.MountpointConfig{
			{Path: dir, WarnPct: warn, CritPct: crit},
		},
	})
	c.usage = func(path string) (*disk.UsageStat, error) {
		total := uint64(1000 * 1024 * 1024 * 1024)
		used := uint64(float64(total) * usedPct / 100)
		return &disk.UsageStat{
			Path:        path,
			Total:       total,
			Used:        used,
			Free:        total - used,
			UsedPercent: usedPct,
		}, nil
	}
	return c, dir
}

func TestFilesystemOK(t *testing.T) {
	c, dir := fsCheck(t, 50.0, 85, 95)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityOK, results[0].Status)
	assert.Equal(t, dir, results[0].Identifier)
	assert.Contains(t, results[0].Summary, "50.0% used")

	require.Len(t, c.Metrics(), 3)
	assert.Equal(t, "fs_usage_pct", c.Metrics()[0].Name)
	assert.Equal(t, 50.0, *c.Metrics()[0].ValueNum)
}

func TestFilesystemWarnAtThreshold(t *testing.T) {
	c, _ := fsCheck(t, 85.0, 85, 95)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityWarn, results[0].Status)
}

func TestFilesystemCrit(t *testing.T) {
	c, _ := fsCheck(t, 96.5, 85, 95)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
}

func TestFilesystemMissingMountpoint(t *testing.T) {
	c := NewFilesystemCheck(config.FilesystemConfig{
		Enabled: true,
		Mountpoints: []config.MountpointConfig{
			{Path: "/no/such/mountpoint", WarnPct: 85, CritPct: 95},
		},
	})

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityUnknown, results[0].Status)
	assert.Contains(t, results[0].Summary, "not found")
}

func TestFilesystemStatFailure(t *testing.T) {
	c, _ := fsCheck(t, 50, 85, 95)
	c.usage = func(path string) (*disk.UsageStat, error) {
		return nil, assert.AnError
	}

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityUnknown, results[0].Status)
}

func TestFilesystemMultipleMounts(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	c := NewFilesystemCheck(config.FilesystemConfig{
		Enabled: true,
		Mountpoints: []config.MountpointConfig{
			{Path: dirA, WarnPct: 85, CritPct: 95},
			{Path: dirB, WarnPct: 85, CritPct: 95},
		},
	})
	c.usage = func(path string) (*disk.UsageStat, error) {
		pct := 50.0
		if path == dirB {
			pct = 90.0
		}
		return &disk.UsageStat{Path: path, Total: 100, Used: uint64(pct), Free: 100 - uint64(pct), UsedPercent: pct}, nil
	}

	results := c.Run(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, models.SeverityOK, results[0].Status)
	assert.Equal(t, models.SeverityWarn, results[1].Status)
	assert.NotEqual(t, results[0].Identifier, results[1].Identifier)
}
