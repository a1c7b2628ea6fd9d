package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

const lvmCheckName = "lvm_raid"

// LvmCheck watches an LVM RAID1 mirror: degraded state, sync progress,
// and sync stalls (same percentage across several runs).
type LvmCheck struct {
	cfg     config.LVMConfig
	history History
	execCmd execFunc
	metrics []models.Metric
}

func NewLvmCheck(cfg config.LVMConfig, history History) *LvmCheck {
	return &LvmCheck{cfg: cfg, history: history, execCmd: runCommand}
}

func (c *LvmCheck) Name() string { return lvmCheckName }

func (c *LvmCheck) Metrics() []models.Metric { return c.metrics }

func (c *LvmCheck) Run(ctx context.Context) []models.CheckResult {
	c.metrics = nil

	if !c.cfg.Enabled {
		return nil
	}

	ident := c.cfg.VG + "/" + c.cfg.LV

	entries, err := c.queryLVs(ctx)
	if err != nil {
		slog.Warn("Failed to query LVM", "error", err)
		return []models.CheckResult{{
			CheckName:  lvmCheckName,
			Status:     models.SeverityUnknown,
			Summary:    fmt.Sprintf("Failed to query LVM: %v", err),
			Details:    datatypes.JSONMap{"error": err.Error()},
			Identifier: ident,
		}}
	}

	target := findLV(entries, c.cfg.VG, c.cfg.LV)
	if target == nil {
		return []models.CheckResult{{
			CheckName:  lvmCheckName,
			Status:     models.SeverityCrit,
			Summary:    fmt.Sprintf("LV %s not found", ident),
			Details:    datatypes.JSONMap{"vg": c.cfg.VG, "lv": c.cfg.LV},
			Identifier: ident,
		}}
	}

	return []models.CheckResult{c.analyze(*target)}
}

type lvEntry struct {
	VGName         string `json:"vg_name"`
	LVName         string `json:"lv_name"`
	Segtype        string `json:"segtype"`
	LVAttr         string `json:"lv_attr"`
	CopyPercent    string `json:"copy_percent"`
	Devices        string `json:"devices"`
	LVHealthStatus string `json:"lv_health_status"`
}

type lvsOutput struct {
	Report []struct {
		LV []lvEntry `json:"lv"`
	} `json:"report"`
}

func (c *LvmCheck) queryLVs(ctx context.Context) ([]lvEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stdout, stderr, exitCode, err := c.execCmd(ctx, "lvs",
		"-a",
		"-o", "vg_name,lv_name,segtype,lv_attr,copy_percent,devices,lv_health_status",
		"--reportformat", "json",
		"--units", "b",
	)
	if err != nil {
		return nil, err
	}
	// lvs exits non-zero with empty stderr when no LVM is configured.
	if exitCode != 0 {
		if stderr != "" {
			return nil, fmt.Errorf("lvs failed: %s", stderr)
		}
		return nil, nil
	}
	if stdout == "" {
		return nil, nil
	}
	return parseLVSOutput([]byte(stdout))
}

func parseLVSOutput(data []byte) ([]lvEntry, error) {
	var out lvsOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse lvs output: %w", err)
	}
	if len(out.Report) == 0 {
		return nil, nil
	}
	return out.Report[0].LV, nil
}

func findLV(entries []lvEntry, vg, lv string) *lvEntry {
	for i := range entries {
		if entries[i].VGName == vg && entries[i].LVName == lv {
			return &entries[i]
		}
	}
	return nil
}

func (c *LvmCheck) analyze(lv lvEntry) models.CheckResult {
	ident := c.cfg.VG + "/" + c.cfg.LV
	details := datatypes.JSONMap{
		"vg":           c.cfg.VG,
		"lv":           c.cfg.LV,
		"segtype":      lv.Segtype,
		"lv_attr":      lv.LVAttr,
		"copy_percent": lv.CopyPercent,
		"lv_health":    lv.LVHealthStatus,
		"devices":      lv.Devices,
	}

	if lv.Segtype != "raid1" && lv.Segtype != "mirror" {
		return models.CheckResult{
			CheckName:  lvmCheckName,
			Status:     models.SeverityCrit,
			Summary:    fmt.Sprintf("LV %s is not RAID1 (type: %s)", ident, lv.Segtype),
			Details:    details,
			Identifier: ident,
		}
	}

	copyPct := 100.0
	if lv.CopyPercent != "" {
		if parsed, err := strconv.ParseFloat(lv.CopyPercent, 64); err == nil {
			copyPct = parsed
		}
	}

	labels := map[string]interface{}{"vg": c.cfg.VG, "lv": c.cfg.LV}
	c.metrics = append(c.metrics, models.NumMetric("lvm_sync_pct", copyPct, labels))

	// lv_attr position 8: 'p' marks a partial LV (missing PV).
	degraded := false
	reason := ""
	if len(lv.LVAttr) > 8 && lv.LVAttr[8] == 'p' {
		degraded = true
		reason = "partial (missing PV)"
	}
	if lv.LVHealthStatus != "" {
		degraded = true
		reason = lv.LVHealthStatus
	}

	degradedVal := 0.0
	if degraded {
		degradedVal = 1.0
	}
	c.metrics = append(c.metrics, models.NumMetric("lvm_degraded", degradedVal, labels))

	details["is_degraded"] = degraded
	details["degraded_reason"] = reason

	if degraded {
		return models.CheckResult{
			CheckName:  lvmCheckName,
			Status:     models.SeverityCrit,
			Summary:    fmt.Sprintf("LV %s is DEGRADED: %s", ident, reason),
			Details:    details,
			Identifier: ident,
		}
	}

	if copyPct < 100.0 {
		stalled := c.syncStalled(copyPct)

		if err := c.history.SaveSyncPct(c.cfg.VG, c.cfg.LV, copyPct); err != nil {
			slog.Error("Failed to save sync history", "error", err)
		}

		if stalled {
			details["stalled"] = true
			details["stall_runs"] = c.cfg.SyncStallRuns
			return models.CheckResult{
				CheckName:  lvmCheckName,
				Status:     models.SeverityCrit,
				Summary:    fmt.Sprintf("LV %s sync STALLED at %.1f%%", ident, copyPct),
				Details:    details,
				Identifier: ident,
			}
		}

		return models.CheckResult{
			CheckName:  lvmCheckName,
			Status:     models.SeverityWarn,
			Summary:    fmt.Sprintf("LV %s syncing: %.1f%%", ident, copyPct),
			Details:    details,
			Identifier: ident,
		}
	}

	return models.CheckResult{
		CheckName:  lvmCheckName,
		Status:     models.SeverityOK,
		Summary:    fmt.Sprintf("LV %s healthy (RAID1, 100%% synced)", ident),
		Details:    details,
		Identifier: ident,
	}
}

// syncStalled reports whether the sync percentage has been unchanged
// for the configured number of runs.
func (c *LvmCheck) syncStalled(currentPct float64) bool {
	recent, err := c.history.RecentSyncPcts(c.cfg.VG, c.cfg.LV, c.cfg.SyncStallRuns)
	if err != nil {
		slog.Error("Failed to load sync history", "error", err)
		return false
	}
	if len(recent) < c.cfg.SyncStallRuns-1 {
		return false
	}
	// Unchanged means the delta is strictly below the 0.01 epsilon; a
	// move of exactly 0.01 is progress.
	for _, pct := range recent {
		if pct-currentPct >= 0.01 || currentPct-pct >= 0.01 {
			return false
		}
	}
	return true
}
