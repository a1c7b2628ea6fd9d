package checks

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

const journalCheckName = "journal"

type logPattern struct {
	name     string
	re       *regexp.Regexp
	severity models.Severity
	desc     string
}

// Kernel log patterns. Filesystem and block-layer errors mean possible
// data corruption and rate CRIT; link flakiness rates WARN.
var errorPatterns = []logPattern{
	{"ext4_error", regexp.MustCompile(`(?i)EXT4-fs.*error`), models.SeverityCrit, "ext4 filesystem error"},
	{"jbd2_error", regexp.MustCompile(`(?i)JBD2.*error`), models.SeverityCrit, "Journal (JBD2) error"},
	{"io_error", regexp.MustCompile(`(?i)I/O error`), models.SeverityCrit, "I/O error"},
	{"blk_update", regexp.MustCompile(`(?i)blk_update_request.*error`), models.SeverityCrit, "Block device error"},
	{"buffer_io_error", regexp.MustCompile(`(?i)Buffer I/O error`), models.SeverityCrit, "Buffer I/O error"},
	{"xfs_error", regexp.MustCompile(`(?i)XFS.*error`), models.SeverityCrit, "XFS filesystem error"},
	{"btrfs_error", regexp.MustCompile(`(?i)BTRFS.*error`), models.SeverityCrit, "BTRFS filesystem error"},
	{"ata_reset", regexp.MustCompile(`(?i)ata.*reset`), models.SeverityWarn, "ATA bus reset"},
	{"link_slow", regexp.MustCompile(`(?i)link is slow to respond`), models.SeverityWarn, "Slow SATA link"},
	{"sata_down", regexp.MustCompile(`(?i)SATA link down`), models.SeverityWarn, "SATA link down"},
	{"medium_error", regexp.MustCompile(`(?i)medium error`), models.SeverityWarn, "Medium error"},
	{"sense_error", regexp.MustCompile(`(?i)sense.*error`), models.SeverityWarn, "SCSI sense error"},
}

// JournalCheck scans kernel logs since the previous run for storage
// error signatures, preferring journald with a plain-file fallback.
type JournalCheck struct {
	cfg         config.JournalConfig
	execCmd     execFunc
	metrics     []models.Metric
	lastCheckAt time.Time
}

func NewJournalCheck(cfg config.JournalConfig) *JournalCheck {
	return &JournalCheck{cfg: cfg, execCmd: runCommand}
}

func (c *JournalCheck) Name() string { return journalCheckName }

func (c *JournalCheck) Metrics() []models.Metric { return c.metrics }

func (c *JournalCheck) Run(ctx context.Context) []models.CheckResult {
	c.metrics = nil

	if !c.cfg.Enabled {
		return nil
	}

	since := c.lastCheckAt
	if since.IsZero() {
		since = time.Now().Add(-1 * time.Hour)
	}
	c.lastCheckAt = time.Now()

	lines, err := c.readLogs(ctx, since)
	if err != nil {
		return []models.CheckResult{{
			CheckName: journalCheckName,
			Status:    models.SeverityUnknown,
			Summary:   fmt.Sprintf("Failed to read logs: %v", err),
			Details:   datatypes.JSONMap{"error": err.Error()},
		}}
	}

	return []models.CheckResult{c.analyze(lines)}
}

func (c *JournalCheck) readLogs(ctx context.Context, since time.Time) ([]string, error) {
	if c.cfg.UseJournald {
		lines, err := c.readJournald(ctx, since)
		if err == nil {
			return lines, nil
		}
		slog.Warn("journald read failed, falling back to log files", "error", err)
	}
	return c.readLogFiles()
}

func (c *JournalCheck) readJournald(ctx context.Context, since time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stdout, stderr, exitCode, err := c.execCmd(ctx, "journalctl",
		"-k",
		"--since", since.Format("2006-01-02 15:04:05"),
		"--no-pager",
		"-q",
	)
	if err != nil {
		return nil, err
	}
	// Exit code 1 can mean "no entries".
	if exitCode != 0 && exitCode != 1 {
		return nil, fmt.Errorf("journalctl failed: %s", stderr)
	}
	if stdout == "" {
		return nil, nil
	}
	return splitLines(stdout), nil
}

func (c *JournalCheck) readLogFiles() ([]string, error) {
	var lines []string
	var lastErr error

	for _, path := range c.cfg.FallbackLogPaths {
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		f.Close()
	}

	if lines == nil && lastErr != nil {
		return nil, lastErr
	}
	return lines, nil
}

func (c *JournalCheck) analyze(lines []string) models.CheckResult {
	counts := map[string]int{}
	samples := map[string][]string{}
	worst := models.SeverityOK

	for _, line := range lines {
		if line == "" {
			continue
		}
		for _, p := range errorPatterns {
			if p.re.MatchString(line) {
				counts[p.name]++
				if len(samples[p.name]) < 3 {
					samples[p.name] = append(samples[p.name], line)
				}
				worst = models.Worse(worst, p.severity)
			}
		}
	}

	ioErrors := counts["io_error"] + counts["blk_update"] + counts["buffer_io_error"]
	fsErrors := counts["ext4_error"] + counts["jbd2_error"]
	c.metrics = append(c.metrics,
		models.NumMetric("kernel_io_error_count", float64(ioErrors), nil),
		models.NumMetric("ext4_error_count", float64(fsErrors), nil),
	)

	countDetails := map[string]interface{}{}
	sampleDetails := map[string]interface{}{}
	for name, count := range counts {
		countDetails[name] = count
		sampleDetails[name] = samples[name]
	}
	details := datatypes.JSONMap{
		"lines_scanned":  len(lines),
		"error_counts":   countDetails,
		"sample_matches": sampleDetails,
	}

	if len(counts) == 0 {
		return models.CheckResult{
			CheckName: journalCheckName,
			Status:    models.SeverityOK,
			Summary:   fmt.Sprintf("No errors in kernel logs (%d lines scanned)", len(lines)),
			Details:   details,
		}
	}

	return models.CheckResult{
		CheckName: journalCheckName,
		Status:    worst,
		Summary:   buildSummary(counts),
		Details:   details,
	}
}

// buildSummary lists matched pattern descriptions worst-first.
func buildSummary(counts map[string]int) string {
	type finding struct {
		desc  string
		count int
		rank  int
	}
	var findings []finding
	for _, p := range errorPatterns {
		if count, ok := counts[p.name]; ok {
			findings = append(findings, finding{p.desc, count, p.severity.Rank()})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].rank > findings[j].rank })

	summary := ""
	shown := len(findings)
	if shown > 3 {
		shown = 3
	}
	for i := 0; i < shown; i++ {
		if i > 0 {
			summary += "; "
		}
		summary += fmt.Sprintf("%s: %d", findings[i].desc, findings[i].count)
	}
	if len(findings) > 3 {
		summary += fmt.Sprintf(" (+%d more types)", len(findings)-3)
	}
	return summary
}

func splitLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
