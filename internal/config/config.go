package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type TargetConfig struct {
	HostnameLabel string `mapstructure:"hostname_label"`
}

// Hostname returns the configured label, falling back to the OS hostname.
func (t TargetConfig) Hostname() string {
	if t.HostnameLabel != "" {
		return t.HostnameLabel
	}
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

type LVMConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	VG      string `mapstructure:"vg"`
	LV      string `mapstructure:"lv"`
	// CRIT if the sync percentage is unchanged for this many runs.
	SyncStallRuns int `mapstructure:"sync_stall_runs"`
}

type SmartThresholds struct {
	ReallocWarn        int64 `mapstructure:"realloc_warn"`         // attr 5
	CRCWarnDelta       int64 `mapstructure:"crc_warn_delta"`       // attr 199 delta
	PendingCrit        int64 `mapstructure:"pending_crit"`         // attr 197
	OfflineUncorrCrit  int64 `mapstructure:"offline_uncorr_crit"`  // attr 198
	ReportedUncorrCrit int64 `mapstructure:"reported_uncorr_crit"` // attr 187
}

type SmartConfig struct {
	Enabled    bool            `mapstructure:"enabled"`
	Disks      []string        `mapstructure:"disks"`
	Thresholds SmartThresholds `mapstructure:"thresholds"`
}

type JournalConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	UseJournald      bool     `mapstructure:"use_journald"`
	FallbackLogPaths []string `mapstructure:"fallback_log_paths"`
}

type MountpointConfig struct {
	Path    string  `mapstructure:"path"`
	WarnPct float64 `mapstructure:"warn_pct"`
	CritPct float64 `mapstructure:"crit_pct"`
}

type FilesystemConfig struct {
	Enabled     bool               `mapstructure:"enabled"`
	Mountpoints []MountpointConfig `mapstructure:"mountpoints"`
}

type HistoryConfig struct {
	Driver               string `mapstructure:"driver"` // sqlite or postgres
	Path                 string `mapstructure:"path"`   // sqlite file
	DSN                  string `mapstructure:"dsn"`    // postgres DSN
	RetentionDaysMetrics int    `mapstructure:"retention_days_metrics"`
	RetentionDaysEvents  int    `mapstructure:"retention_days_events"`
}

type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

type EmailConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	SMTPHost    string   `mapstructure:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	FromAddr    string   `mapstructure:"from_addr"`
	ToAddrs     []string `mapstructure:"to_addrs"`
	UseStartTLS bool     `mapstructure:"use_starttls"`
	UseSSL      bool     `mapstructure:"use_ssl"`
}

type AlertsConfig struct {
	DedupeCooldownSeconds int         `mapstructure:"dedupe_cooldown_seconds"`
	SendRecovery          bool        `mapstructure:"send_recovery"`
	Slack                 SlackConfig `mapstructure:"slack"`
	Email                 EmailConfig `mapstructure:"email"`
}

// Cooldown returns the repeat-alert window as a duration.
func (a AlertsConfig) Cooldown() time.Duration {
	return time.Duration(a.DedupeCooldownSeconds) * time.Second
}

type SchedulerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type DashboardConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	BindHost     string `mapstructure:"bind_host"`
	BindPort     int    `mapstructure:"bind_port"`
	AuthEnabled  bool   `mapstructure:"auth_enabled"`
	AuthUsername string `mapstructure:"auth_username"`
	// bcrypt hash of the operator password; empty disables login.
	AuthPasswordHash string `mapstructure:"auth_password_hash"`
	JWTSecret        string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty = stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type Config struct {
	Target     TargetConfig     `mapstructure:"target"`
	LVM        LVMConfig        `mapstructure:"lvm"`
	Smart      SmartConfig      `mapstructure:"smart"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	History    HistoryConfig    `mapstructure:"history"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Log        LogConfig        `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lvm.enabled", true)
	v.SetDefault("lvm.vg", "RAID")
	v.SetDefault("lvm.lv", "RAID")
	v.SetDefault("lvm.sync_stall_runs", 6)

	v.SetDefault("smart.enabled", true)
	v.SetDefault("smart.thresholds.realloc_warn", 10)
	v.SetDefault("smart.thresholds.crc_warn_delta", 1)
	v.SetDefault("smart.thresholds.pending_crit", 0)
	v.SetDefault("smart.thresholds.offline_uncorr_crit", 0)
	v.SetDefault("smart.thresholds.reported_uncorr_crit", 0)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.use_journald", true)
	v.SetDefault("journal.fallback_log_paths", []string{"/var/log/kern.log", "/var/log/syslog"})

	v.SetDefault("filesystem.enabled", true)

	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", "/var/lib/stormon/stormon.sqlite")
	v.SetDefault("history.retention_days_metrics", 90)
	v.SetDefault("history.retention_days_events", 180)

	v.SetDefault("alerts.dedupe_cooldown_seconds", 21600) // 6 hours
	v.SetDefault("alerts.send_recovery", true)
	v.SetDefault("alerts.email.smtp_port", 587)
	v.SetDefault("alerts.email.use_starttls", true)

	v.SetDefault("scheduler.interval_seconds", 900) // 15 minutes

	v.SetDefault("dashboard.base_url", "http://localhost:8088")
	v.SetDefault("dashboard.bind_host", "0.0.0.0")
	v.SetDefault("dashboard.bind_port", 8088)
	v.SetDefault("dashboard.auth_username", "admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads configuration from the given file, or searches the usual
// locations when path is empty. Environment variables prefixed with
// STORMON_ override file values (STORMON_HISTORY_PATH, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STORMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/config")
		v.AddConfigPath("/etc/stormon")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing file is fine, defaults plus env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
