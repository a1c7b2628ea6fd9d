package models

// Severity is a check health level, ordered from healthy to unknown.
type Severity string

const (
	SeverityOK      Severity = "OK"
	SeverityWarn    Severity = "WARN"
	SeverityCrit    Severity = "CRIT"
	SeverityUnknown Severity = "UNKNOWN"
)

// Rank returns the numeric rank for worse-than comparison. Higher is worse.
// Unrecognized values rank as UNKNOWN.
func (s Severity) Rank() int {
	switch s {
	case SeverityOK:
		return 0
	case SeverityWarn:
		return 1
	case SeverityCrit:
		return 2
	default:
		return 3
	}
}

// IsProblem reports whether the severity indicates a confirmed problem.
// UNKNOWN is not a problem: it means the probe failed, not the hardware.
func (s Severity) IsProblem() bool {
	return s == SeverityWarn || s == SeverityCrit
}

// Worse returns the severity with the higher rank.
func Worse(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
