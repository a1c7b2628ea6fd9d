package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/gorm"
)

// Store wraps the gorm handle with the read/write operations the rest
// of the system needs. All writes are single-row (or single run+results)
// upserts; the run loop serializes access so no extra isolation is
// required.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ─── Runs ────────────────────────────────────────────────────────────

// SaveRun persists a run together with its check results.
func (s *Store) SaveRun(run *models.Run) error {
	if err := s.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run with results, or nil when no
// run has been recorded yet.
func (s *Store) LatestRun() (*models.Run, error) {
	var run models.Run
	err := s.db.Preload("Results").Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs returns recent runs without their results.
func (s *Store) Runs(limit, offset int) ([]models.Run, error) {
	var runs []models.Run
	err := s.db.Order("started_at DESC").Limit(limit).Offset(offset).Find(&runs).Error
	return runs, err
}

func (s *Store) RunByID(id uuid.UUID) (*models.Run, error) {
	var run models.Run
	err := s.db.Preload("Results").First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ─── Metrics ─────────────────────────────────────────────────────────

func (s *Store) SaveMetrics(metrics []models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	if err := s.db.Create(&metrics).Error; err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

// Metrics queries samples for one metric name, newest first.
func (s *Store) Metrics(name string, from, to *time.Time, limit int) ([]models.Metric, error) {
	q := s.db.Where("name = ?", name)
	if from != nil {
		q = q.Where("ts >= ?", *from)
	}
	if to != nil {
		q = q.Where("ts <= ?", *to)
	}
	var metrics []models.Metric
	err := q.Order("ts DESC").Limit(limit).Find(&metrics).Error
	return metrics, err
}

// ─── Events ──────────────────────────────────────────────────────────

func (s *Store) SaveEvent(event *models.Event) error {
	if event.Ts.IsZero() {
		event.Ts = time.Now()
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// EventFilter narrows an event query; zero values mean no filter.
type EventFilter struct {
	From     *time.Time
	To       *time.Time
	Severity models.Severity
	Type     models.EventType
	Limit    int
}

func (s *Store) Events(f EventFilter) ([]models.Event, error) {
	q := s.db.Model(&models.Event{})
	if f.From != nil {
		q = q.Where("ts >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("ts <= ?", *f.To)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Type != "" {
		q = q.Where("event_type = ?", f.Type)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var events []models.Event
	err := q.Order("ts DESC").Limit(limit).Find(&events).Error
	return events, err
}

// ─── Issue state ─────────────────────────────────────────────────────

// IssueState returns the state for a dedup key, nil when the key has
// never been observed.
func (s *Store) IssueState(key string) (*models.IssueState, error) {
	var state models.IssueState
	err := s.db.First(&state, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveIssueState upserts by key.
func (s *Store) SaveIssueState(state *models.IssueState) error {
	if err := s.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to save issue state %s: %w", state.Key, err)
	}
	return nil
}

// OpenIssues returns all issues with a non-OK status, newest change first.
func (s *Store) OpenIssues() ([]models.IssueState, error) {
	var states []models.IssueState
	err := s.db.Where("current_status != ?", models.SeverityOK).
		Order("last_change_at DESC").Find(&states).Error
	return states, err
}

// ─── LVM sync history ────────────────────────────────────────────────

func (s *Store) SaveSyncPct(vg, lv string, pct float64) error {
	return s.db.Create(&models.SyncHistory{
		Ts:      time.Now(),
		VG:      vg,
		LV:      lv,
		SyncPct: pct,
	}).Error
}

// RecentSyncPcts returns the latest sync percentages for a volume,
// newest first.
func (s *Store) RecentSyncPcts(vg, lv string, limit int) ([]float64, error) {
	var rows []models.SyncHistory
	err := s.db.Where("vg = ? AND lv = ?", vg, lv).
		Order("ts DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	pcts := make([]float64, 0, len(rows))
	for _, row := range rows {
		pcts = append(pcts, row.SyncPct)
	}
	return pcts, nil
}

// ─── SMART attribute history ─────────────────────────────────────────

func (s *Store) SaveSmartAttrs(disk string, attrs map[int]int64) error {
	if len(attrs) == 0 {
		return nil
	}
	ts := time.Now()
	rows := make([]models.SmartHistory, 0, len(attrs))
	for id, value := range attrs {
		rows = append(rows, models.SmartHistory{Ts: ts, Disk: disk, AttrID: id, RawValue: value})
	}
	return s.db.Create(&rows).Error
}

// LastSmartAttrs returns the most recent attribute snapshot for a disk,
// empty when the disk has no history yet.
func (s *Store) LastSmartAttrs(disk string) (map[int]int64, error) {
	var last models.SmartHistory
	err := s.db.Where("disk = ?", disk).Order("ts DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[int]int64{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []models.SmartHistory
	if err := s.db.Where("disk = ? AND ts = ?", disk, last.Ts).Find(&rows).Error; err != nil {
		return nil, err
	}
	attrs := make(map[int]int64, len(rows))
	for _, row := range rows {
		attrs[row.AttrID] = row.RawValue
	}
	return attrs, nil
}

// ─── Acknowledgments ─────────────────────────────────────────────────

// SaveAck upserts the acknowledgment for a dedup key.
func (s *Store) SaveAck(key, ackedBy, note string) error {
	var existing models.Acknowledgment
	err := s.db.First(&existing, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&models.Acknowledgment{
			Key:     key,
			AckedBy: ackedBy,
			AckedAt: time.Now(),
			Note:    note,
		}).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&existing).Updates(map[string]interface{}{
		"acked_by": ackedBy,
		"acked_at": time.Now(),
		"note":     note,
	}).Error
}

func (s *Store) Acks() ([]models.Acknowledgment, error) {
	var acks []models.Acknowledgment
	err := s.db.Order("acked_at DESC").Find(&acks).Error
	return acks, err
}

// AckedKeys returns the set of currently acknowledged dedup keys.
func (s *Store) AckedKeys() (map[string]bool, error) {
	acks, err := s.Acks()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(acks))
	for _, ack := range acks {
		keys[ack.Key] = true
	}
	return keys, nil
}

// DeleteAck removes the acknowledgment for a key. Returns true when a
// row was actually deleted.
func (s *Store) DeleteAck(key string) (bool, error) {
	res := s.db.Delete(&models.Acknowledgment{}, "key = ?", key)
	return res.RowsAffected > 0, res.Error
}

// ─── Retention ───────────────────────────────────────────────────────

// RunRetention deletes rows older than the configured cutoffs and
// returns per-table deletion counts.
func (s *Store) RunRetention(cfg *config.Config) (map[string]int64, error) {
	now := time.Now()
	metricsCutoff := now.AddDate(0, 0, -cfg.History.RetentionDaysMetrics)
	eventsCutoff := now.AddDate(0, 0, -cfg.History.RetentionDaysEvents)

	deleted := map[string]int64{}

	steps := []struct {
		table string
		run   func() *gorm.DB
	}{
		{"metrics", func() *gorm.DB { return s.db.Where("ts < ?", metricsCutoff).Delete(&models.Metric{}) }},
		{"events", func() *gorm.DB { return s.db.Where("ts < ?", eventsCutoff).Delete(&models.Event{}) }},
		{"runs", func() *gorm.DB { return s.db.Where("started_at < ?", metricsCutoff).Delete(&models.Run{}) }},
		{"sync_history", func() *gorm.DB { return s.db.Where("ts < ?", metricsCutoff).Delete(&models.SyncHistory{}) }},
		{"smart_history", func() *gorm.DB { return s.db.Where("ts < ?", metricsCutoff).Delete(&models.SmartHistory{}) }},
	}

	for _, step := range steps {
		res := step.run()
		if res.Error != nil {
			return deleted, fmt.Errorf("retention cleanup of %s failed: %w", step.table, res.Error)
		}
		deleted[step.table] = res.RowsAffected
	}

	slog.Info("Retention cleanup complete",
		"metrics", deleted["metrics"],
		"events", deleted["events"],
		"runs", deleted["runs"],
	)
	return deleted, nil
}

// Vacuum reclaims space after deletions.
func (s *Store) Vacuum() error {
	return s.db.Exec("VACUUM").Error
}
