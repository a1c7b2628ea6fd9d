package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

const smartCheckName = "smart"

// Monitored ATA attributes:
//
//	5   Reallocated_Sector_Ct    warn above threshold, CRIT on increase
//	187 Reported_Uncorrect       CRIT above threshold
//	197 Current_Pending_Sector   CRIT above threshold
//	198 Offline_Uncorrectable    CRIT above threshold
//	199 UDMA_CRC_Error_Count     warn on delta (usually cabling)

// SmartCheck reads SMART health for each configured disk, one result
// per disk. Previous attribute values from history feed the delta rules.
type SmartCheck struct {
	cfg     config.SmartConfig
	history History
	execCmd execFunc
	metrics []models.Metric
}

func NewSmartCheck(cfg config.SmartConfig, history History) *SmartCheck {
	return &SmartCheck{cfg: cfg, history: history, execCmd: runCommand}
}

func (c *SmartCheck) Name() string { return smartCheckName }

func (c *SmartCheck) Metrics() []models.Metric { return c.metrics }

func (c *SmartCheck) Run(ctx context.Context) []models.CheckResult {
	c.metrics = nil

	if !c.cfg.Enabled || len(c.cfg.Disks) == 0 {
		return nil
	}

	results := make([]models.CheckResult, 0, len(c.cfg.Disks))
	for _, disk := range c.cfg.Disks {
		results = append(results, c.checkDisk(ctx, disk))
	}
	return results
}

func (c *SmartCheck) checkDisk(ctx context.Context, disk string) models.CheckResult {
	data, err := c.querySmart(ctx, disk)
	if err != nil {
		slog.Warn("Failed to read SMART data", "disk", disk, "error", err)
		return models.CheckResult{
			CheckName:  smartCheckName,
			Status:     models.SeverityUnknown,
			Summary:    fmt.Sprintf("%s: failed to read SMART data", disk),
			Details:    datatypes.JSONMap{"disk": disk, "error": err.Error()},
			Identifier: disk,
		}
	}
	return c.analyze(disk, data)
}

type smartAttr struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Value  int    `json:"value"`
	Worst  int    `json:"worst"`
	Thresh int    `json:"thresh"`
	Raw    struct {
		Value  int64  `json:"value"`
		String string `json:"string"`
	} `json:"raw"`
}

type nvmeHealthLog struct {
	CriticalWarning         int64 `json:"critical_warning"`
	PercentageUsed          int64 `json:"percentage_used"`
	MediaErrors             int64 `json:"media_errors"`
	AvailableSpare          int64 `json:"available_spare"`
	AvailableSpareThreshold int64 `json:"available_spare_threshold"`
}

type smartData struct {
	ModelName       string `json:"model_name"`
	ModelFamily     string `json:"model_family"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	RotationRate    int    `json:"rotation_rate"`
	UserCapacity    struct {
		Bytes int64 `json:"bytes"`
	} `json:"user_capacity"`
	PowerOnTime struct {
		Hours int64 `json:"hours"`
	} `json:"power_on_time"`
	SmartStatus struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	SmartSupport struct {
		Available bool `json:"available"`
		Enabled   bool `json:"enabled"`
	} `json:"smart_support"`
	ATASmartAttributes struct {
		Table []smartAttr `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeHealth *nvmeHealthLog `json:"nvme_smart_health_information_log"`
}

func (c *SmartCheck) querySmart(ctx context.Context, disk string) (*smartData, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	// -i for device info, -H overall health, -A attributes, -j JSON.
	stdout, _, _, err := c.execCmd(ctx, "smartctl", "-i", "-H", "-A", "-j", disk)
	if err != nil {
		return nil, err
	}

	// smartctl exits non-zero for various warnings; parse anyway.
	var data smartData
	if jsonErr := json.Unmarshal([]byte(stdout), &data); jsonErr != nil {
		// Older smartctl without JSON support.
		return parseSmartctlText(stdout), nil
	}
	return &data, nil
}

var smartAttrLine = regexp.MustCompile(
	`^\s*(\d+)\s+(\S+)\s+\S+\s+(\d+)\s+(\d+)\s+(\d+)\s+\S+\s+\S+\s+\S+\s+(\d+)`)

// parseSmartctlText recovers status and attribute table from the
// traditional text output.
func parseSmartctlText(output string) *smartData {
	data := &smartData{}
	data.SmartStatus.Passed = !strings.Contains(output, "FAILED")

	for _, line := range strings.Split(output, "\n") {
		m := smartAttrLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		value, _ := strconv.Atoi(m[3])
		worst, _ := strconv.Atoi(m[4])
		thresh, _ := strconv.Atoi(m[5])
		raw, _ := strconv.ParseInt(m[6], 10, 64)

		attr := smartAttr{ID: id, Name: m[2], Value: value, Worst: worst, Thresh: thresh}
		attr.Raw.Value = raw
		data.ATASmartAttributes.Table = append(data.ATASmartAttributes.Table, attr)
	}
	return data
}

func (c *SmartCheck) analyze(disk string, data *smartData) models.CheckResult {
	labels := map[string]interface{}{"disk": disk}
	thresholds := c.cfg.Thresholds

	var issues, warnings []string
	details := datatypes.JSONMap{
		"disk":       disk,
		"attributes": map[string]interface{}{},
	}

	info := deviceInfo(data)
	details["device"] = info
	if infoJSON, err := json.Marshal(info); err == nil {
		c.metrics = append(c.metrics, models.TextMetric("disk_info", string(infoJSON), labels))
	}

	passed := data.SmartStatus.Passed
	passedVal := 0.0
	if passed {
		passedVal = 1.0
	}
	c.metrics = append(c.metrics, models.NumMetric("smart_overall_pass", passedVal, labels))

	if !passed {
		issues = append(issues, "SMART overall health: FAILED")
	}

	table := data.ATASmartAttributes.Table
	if len(table) == 0 && data.NVMeHealth != nil {
		return c.analyzeNVMe(disk, data.NVMeHealth, passed)
	}

	lastAttrs, err := c.history.LastSmartAttrs(disk)
	if err != nil {
		slog.Error("Failed to load SMART history", "disk", disk, "error", err)
		lastAttrs = map[int]int64{}
	}
	currentAttrs := make(map[int]int64, len(table))
	attrDetails := details["attributes"].(map[string]interface{})

	for _, attr := range table {
		raw := attr.Raw.Value

		// Temperature and spin-up raw values pack extra data in the
		// higher bytes; decode before exporting as a metric.
		display := raw
		switch attr.ID {
		case 190, 194:
			display = decodeTemperature(raw)
		case 3:
			display = decodeSpinupTime(raw)
		}

		currentAttrs[attr.ID] = raw
		c.metrics = append(c.metrics, models.NumMetric("smart_attr_raw", float64(display),
			map[string]interface{}{"disk": disk, "attr": strconv.Itoa(attr.ID)}))

		attrDetails[strconv.Itoa(attr.ID)] = map[string]interface{}{
			"name":   attr.Name,
			"raw":    raw,
			"value":  attr.Value,
			"worst":  attr.Worst,
			"thresh": attr.Thresh,
		}

		switch attr.ID {
		case 5: // Reallocated Sector Count
			if raw > thresholds.ReallocWarn {
				warnings = append(warnings, fmt.Sprintf("Reallocated sectors: %d", raw))
			}
			if prev, ok := lastAttrs[5]; ok && raw > prev {
				issues = append(issues, fmt.Sprintf("Reallocated sectors increased by %d", raw-prev))
			}
		case 187: // Reported Uncorrectable
			if raw > thresholds.ReportedUncorrCrit {
				issues = append(issues, fmt.Sprintf("Uncorrectable errors: %d", raw))
			}
		case 197: // Current Pending Sector
			if raw > thresholds.PendingCrit {
				issues = append(issues, fmt.Sprintf("Pending sectors: %d", raw))
			}
		case 198: // Offline Uncorrectable
			if raw > thresholds.OfflineUncorrCrit {
				issues = append(issues, fmt.Sprintf("Offline uncorrectable: %d", raw))
			}
		case 199: // UDMA CRC Error Count
			if prev, ok := lastAttrs[199]; ok {
				if delta := raw - prev; delta >= thresholds.CRCWarnDelta {
					warnings = append(warnings, fmt.Sprintf("CRC errors increased by %d (cabling issue?)", delta))
				}
			}
		}
	}

	if len(currentAttrs) > 0 {
		if err := c.history.SaveSmartAttrs(disk, currentAttrs); err != nil {
			slog.Error("Failed to save SMART history", "disk", disk, "error", err)
		}
	}

	details["issues"] = issues
	details["warnings"] = warnings

	return verdict(disk, issues, warnings, details, "SMART healthy")
}

func (c *SmartCheck) analyzeNVMe(disk string, health *nvmeHealthLog, passed bool) models.CheckResult {
	labels := map[string]interface{}{"disk": disk}

	var issues, warnings []string
	details := datatypes.JSONMap{
		"disk": disk,
		"type": "nvme",
		"health": map[string]interface{}{
			"critical_warning": health.CriticalWarning,
			"percentage_used":  health.PercentageUsed,
			"media_errors":     health.MediaErrors,
			"available_spare":  health.AvailableSpare,
		},
	}

	if !passed {
		issues = append(issues, "SMART overall health: FAILED")
	}
	if health.CriticalWarning != 0 {
		issues = append(issues, fmt.Sprintf("NVMe critical warning: %d", health.CriticalWarning))
	}

	c.metrics = append(c.metrics, models.NumMetric("nvme_pct_used", float64(health.PercentageUsed), labels))
	if health.PercentageUsed >= 100 {
		warnings = append(warnings, fmt.Sprintf("NVMe wear: %d%% used", health.PercentageUsed))
	} else if health.PercentageUsed >= 90 {
		warnings = append(warnings, fmt.Sprintf("NVMe wear high: %d%% used", health.PercentageUsed))
	}

	c.metrics = append(c.metrics, models.NumMetric("nvme_media_errors", float64(health.MediaErrors), labels))
	if health.MediaErrors > 0 {
		issues = append(issues, fmt.Sprintf("NVMe media errors: %d", health.MediaErrors))
	}

	c.metrics = append(c.metrics, models.NumMetric("nvme_available_spare", float64(health.AvailableSpare), labels))
	if health.AvailableSpare < health.AvailableSpareThreshold {
		issues = append(issues, fmt.Sprintf("NVMe spare below threshold: %d%%", health.AvailableSpare))
	}

	details["issues"] = issues
	details["warnings"] = warnings

	return verdict(disk, issues, warnings, details, "NVMe healthy")
}

func verdict(disk string, issues, warnings []string, details datatypes.JSONMap, okText string) models.CheckResult {
	switch {
	case len(issues) > 0:
		return models.CheckResult{
			CheckName:  smartCheckName,
			Status:     models.SeverityCrit,
			Summary:    summarize(disk, issues),
			Details:    details,
			Identifier: disk,
		}
	case len(warnings) > 0:
		return models.CheckResult{
			CheckName:  smartCheckName,
			Status:     models.SeverityWarn,
			Summary:    summarize(disk, warnings),
			Details:    details,
			Identifier: disk,
		}
	default:
		return models.CheckResult{
			CheckName:  smartCheckName,
			Status:     models.SeverityOK,
			Summary:    fmt.Sprintf("%s: %s", disk, okText),
			Details:    details,
			Identifier: disk,
		}
	}
}

func summarize(disk string, findings []string) string {
	summary := fmt.Sprintf("%s: %s", disk, findings[0])
	if len(findings) > 1 {
		summary += fmt.Sprintf(" (+%d more)", len(findings)-1)
	}
	return summary
}

func deviceInfo(data *smartData) map[string]interface{} {
	model := data.ModelName
	if model == "" {
		model = data.ModelFamily
	}
	capacity := "unknown"
	if data.UserCapacity.Bytes > 0 {
		capacity = humanize.Bytes(uint64(data.UserCapacity.Bytes))
	}
	return map[string]interface{}{
		"model":          model,
		"family":         data.ModelFamily,
		"serial":         data.SerialNumber,
		"firmware":       data.FirmwareVersion,
		"capacity_bytes": data.UserCapacity.Bytes,
		"capacity_human": capacity,
		"is_ssd":         data.RotationRate == 0,
		"power_on_hours": data.PowerOnTime.Hours,
		"smart_enabled":  data.SmartSupport.Enabled,
	}
}

// decodeTemperature extracts the current temperature from a raw value
// that may pack min/max/lifetime temps in higher bytes.
func decodeTemperature(raw int64) int64 {
	if temp := raw & 0xFF; temp <= 100 {
		return temp
	}
	if temp := (raw >> 8) & 0xFF; temp <= 100 {
		return temp
	}
	return raw & 0xFF
}

// decodeSpinupTime extracts spin-up milliseconds; vendors pack the
// average in the upper 16 bits.
func decodeSpinupTime(raw int64) int64 {
	if spinup := raw & 0xFFFF; spinup <= 60000 {
		return spinup
	}
	return raw & 0xFF
}
