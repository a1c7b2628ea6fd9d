package alerts

import (
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
)

// Notifier delivers one notification to one backend. Send returns an
// error on delivery failure; backends never panic the caller.
type Notifier interface {
	Name() string
	Send(n *models.Notification) error
}

// FromConfig builds the enabled notifiers in dispatch order.
func FromConfig(cfg config.AlertsConfig, hostname string) []Notifier {
	var notifiers []Notifier
	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, NewSlackNotifier(cfg.Slack, hostname))
	}
	if cfg.Email.Enabled && cfg.Email.SMTPHost != "" && len(cfg.Email.ToAddrs) > 0 {
		notifiers = append(notifiers, NewEmailNotifier(cfg.Email, hostname))
	}
	return notifiers
}

func problemResults(results []models.CheckResult) []models.CheckResult {
	var out []models.CheckResult
	for _, r := range results {
		if r.Status.IsProblem() {
			out = append(out, r)
		}
	}
	return out
}

func statusEmoji(s models.Severity) string {
	switch s {
	case models.SeverityOK:
		return ":white_check_mark:"
	case models.SeverityWarn:
		return ":warning:"
	case models.SeverityCrit:
		return ":rotating_light:"
	default:
		return ":grey_question:"
	}
}

// actionHint maps a check to the first thing an operator should run.
func actionHint(checkName string) string {
	switch checkName {
	case "lvm_raid":
		return "Check 'lvs -a -o +devices' and 'dmesg | tail' for the failing leg."
	case "smart":
		return "Run 'smartctl -a <disk>' and plan a disk replacement if counts grow."
	case "filesystem":
		return "Free space or grow the volume; check large files with 'du -xh --max-depth=2'."
	case "journal":
		return "Inspect 'journalctl -k -p err' for the affected device."
	default:
		return ""
	}
}
