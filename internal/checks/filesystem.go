package checks

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

const filesystemCheckName = "filesystem"

// FilesystemCheck reports capacity for each configured mountpoint, one
// result per mount.
type FilesystemCheck struct {
	cfg     config.FilesystemConfig
	usage   func(path string) (*disk.UsageStat, error)
	metrics []models.Metric
}

func NewFilesystemCheck(cfg config.FilesystemConfig) *FilesystemCheck {
	return &FilesystemCheck{cfg: cfg, usage: disk.Usage}
}

func (c *FilesystemCheck) Name() string { return filesystemCheckName }

func (c *FilesystemCheck) Metrics() []models.Metric { return c.metrics }

func (c *FilesystemCheck) Run(ctx context.Context) []models.CheckResult {
	c.metrics = nil

	if !c.cfg.Enabled {
		return nil
	}

	results := make([]models.CheckResult, 0, len(c.cfg.Mountpoints))
	for _, mp := range c.cfg.Mountpoints {
		results = append(results, c.checkMountpoint(mp))
	}
	return results
}

func (c *FilesystemCheck) checkMountpoint(mp config.MountpointConfig) models.CheckResult {
	info, err := os.Stat(mp.Path)
	if err != nil {
		return models.CheckResult{
			CheckName:  filesystemCheckName,
			Status:     models.SeverityUnknown,
			Summary:    fmt.Sprintf("Mount path not found: %s", mp.Path),
			Details:    datatypes.JSONMap{"path": mp.Path, "error": "not found"},
			Identifier: mp.Path,
		}
	}
	if !info.IsDir() {
		return models.CheckResult{
			CheckName:  filesystemCheckName,
			Status:     models.SeverityUnknown,
			Summary:    fmt.Sprintf("Path is not a directory: %s", mp.Path),
			Details:    datatypes.JSONMap{"path": mp.Path, "error": "not a directory"},
			Identifier: mp.Path,
		}
	}

	stat, err := c.usage(mp.Path)
	if err != nil {
		slog.Warn("Failed to stat filesystem", "path", mp.Path, "error", err)
		return models.CheckResult{
			CheckName:  filesystemCheckName,
			Status:     models.SeverityUnknown,
			Summary:    fmt.Sprintf("Failed to check %s: %v", mp.Path, err),
			Details:    datatypes.JSONMap{"path": mp.Path, "error": err.Error()},
			Identifier: mp.Path,
		}
	}

	usagePct := stat.UsedPercent

	labels := map[string]interface{}{"mount": mp.Path}
	c.metrics = append(c.metrics,
		models.NumMetric("fs_usage_pct", usagePct, labels),
		models.NumMetric("fs_free_bytes", float64(stat.Free), labels),
		models.NumMetric("fs_total_bytes", float64(stat.Total), labels),
	)

	details := datatypes.JSONMap{
		"path":        mp.Path,
		"total_bytes": stat.Total,
		"free_bytes":  stat.Free,
		"used_bytes":  stat.Used,
		"usage_pct":   usagePct,
		"warn_pct":    mp.WarnPct,
		"crit_pct":    mp.CritPct,
	}

	summary := fmt.Sprintf("%s: %.1f%% used (%s free of %s)",
		mp.Path, usagePct, humanize.IBytes(stat.Free), humanize.IBytes(stat.Total))

	status := models.SeverityOK
	switch {
	case usagePct >= mp.CritPct:
		status = models.SeverityCrit
	case usagePct >= mp.WarnPct:
		status = models.SeverityWarn
	}

	return models.CheckResult{
		CheckName:  filesystemCheckName,
		Status:     status,
		Summary:    summary,
		Details:    details,
		Identifier: mp.Path,
	}
}
