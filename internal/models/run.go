package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run is one complete execution of all registered checks.
type Run struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Hostname      string        `gorm:"not null" json:"hostname"`
	StartedAt     time.Time     `gorm:"not null;index" json:"started_at"`
	FinishedAt    time.Time     `gorm:"not null" json:"finished_at"`
	OverallStatus Severity      `gorm:"not null" json:"overall_status"`
	Version       string        `gorm:"not null" json:"version"`
	Results       []CheckResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"results"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Overall computes the worst severity across all results,
// UNKNOWN when the run produced no results at all.
func (r *Run) Overall() Severity {
	if len(r.Results) == 0 {
		return SeverityUnknown
	}
	worst := SeverityOK
	for _, res := range r.Results {
		worst = Worse(worst, res.Status)
	}
	return worst
}

// CheckResult is one probe's verdict for one monitored entity.
type CheckResult struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	RunID      uuid.UUID         `gorm:"type:uuid;index" json:"run_id"`
	CheckName  string            `gorm:"not null" json:"name"`
	Status     Severity          `gorm:"not null" json:"status"`
	Summary    string            `gorm:"not null" json:"summary"`
	Details    datatypes.JSONMap `json:"details"`
	Identifier string            `gorm:"default:''" json:"identifier"`
}

// DedupKey returns the stable identity used to correlate this result
// across runs: "name" alone, or "name:identifier" when an entity
// identifier (disk path, mountpoint) is present.
func (r CheckResult) DedupKey() string {
	if r.Identifier != "" {
		return r.CheckName + ":" + r.Identifier
	}
	return r.CheckName
}

// Metric is a single numeric or text observation captured during a run.
type Metric struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null;index:idx_metrics_name_ts" json:"name"`
	ValueNum  *float64          `json:"value_num"`
	ValueText *string           `json:"value_text"`
	Labels    datatypes.JSONMap `json:"labels"`
	Ts        time.Time         `gorm:"not null;index:idx_metrics_name_ts" json:"ts"`
}

// NumMetric builds a numeric metric stamped with the current time.
func NumMetric(name string, value float64, labels map[string]interface{}) Metric {
	return Metric{Name: name, ValueNum: &value, Labels: labels, Ts: time.Now()}
}

// TextMetric builds a text metric stamped with the current time.
func TextMetric(name, value string, labels map[string]interface{}) Metric {
	return Metric{Name: name, ValueText: &value, Labels: labels, Ts: time.Now()}
}
