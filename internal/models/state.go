package models

import (
	"time"

	"gorm.io/datatypes"
)

// IssueState is the persisted alerting memory for one dedup key.
// last_change_at moves only when the severity actually changes value;
// alert_count never decreases.
type IssueState struct {
	Key           string     `gorm:"primaryKey" json:"key"`
	CurrentStatus Severity   `gorm:"not null" json:"current_status"`
	LastAlertAt   *time.Time `json:"last_alert_at"`
	LastChangeAt  time.Time  `gorm:"not null" json:"last_change_at"`
	AlertCount    int        `gorm:"default:0" json:"alert_count"`
}

// NewIssueState returns the lazy default for a key seen for the first
// time: OK, never alerted.
func NewIssueState(key string, now time.Time) *IssueState {
	return &IssueState{
		Key:           key,
		CurrentStatus: SeverityOK,
		LastChangeAt:  now,
	}
}

// EventType classifies rows in the events table.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventAlertSent   EventType = "alert_sent"
	EventRecovery    EventType = "recovery"
	EventError       EventType = "error"
)

// Event records a state change, alert dispatch, or internal error.
type Event struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	Ts       time.Time         `gorm:"not null;index:idx_events_ts_severity" json:"ts"`
	Type     EventType         `gorm:"column:event_type;not null" json:"event_type"`
	Severity Severity          `gorm:"not null;index:idx_events_ts_severity" json:"severity"`
	Source   string            `gorm:"not null" json:"source"`
	Message  string            `gorm:"not null" json:"message"`
	Payload  datatypes.JSONMap `json:"payload"`
}

// SyncHistory keeps LVM sync percentages for stall detection.
type SyncHistory struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	Ts      time.Time `gorm:"not null;index:idx_sync_history_vg_lv" json:"ts"`
	VG      string    `gorm:"not null;index:idx_sync_history_vg_lv" json:"vg"`
	LV      string    `gorm:"not null;index:idx_sync_history_vg_lv" json:"lv"`
	SyncPct float64   `gorm:"not null" json:"sync_pct"`
}

// SmartHistory keeps raw SMART attribute values for delta detection.
type SmartHistory struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Ts       time.Time `gorm:"not null;index:idx_smart_history_disk" json:"ts"`
	Disk     string    `gorm:"not null;index:idx_smart_history_disk" json:"disk"`
	AttrID   int       `gorm:"not null;index:idx_smart_history_disk" json:"attr_id"`
	RawValue int64     `gorm:"not null" json:"raw_value"`
}

// Acknowledgment suppresses alerting for one dedup key. It is a filter
// applied before outcomes reach the state engine, not an engine state.
type Acknowledgment struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	Key     string    `gorm:"not null;uniqueIndex" json:"key"`
	AckedBy string    `gorm:"not null" json:"acked_by"`
	AckedAt time.Time `gorm:"not null" json:"acked_at"`
	Note    string    `json:"note"`
}

// NotificationKind distinguishes alert payload flavors.
type NotificationKind string

const (
	NotifyProblem  NotificationKind = "problem"
	NotifyRecovery NotificationKind = "recovery"
	NotifyTest     NotificationKind = "test"
)

// Notification is a pending alert for one or more outcomes. Problem
// notifications carry the full run snapshot for context; recovery
// notifications carry only the recovered results.
type Notification struct {
	Kind         NotificationKind
	Run          *Run
	Results      []CheckResult
	DashboardURL string
}
