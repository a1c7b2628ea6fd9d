package engine

import (
	"testing"
	"time"

	"github.com/stormon/stormon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	states map[string]*models.IssueState
	events []*models.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: map[string]*models.IssueState{}}
}

func (s *fakeStore) IssueState(key string) (*models.IssueState, error) {
	if st, ok := s.states[key]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveIssueState(state *models.IssueState) error {
	copied := *state
	s.states[state.Key] = &copied
	return nil
}

func (s *fakeStore) SaveEvent(event *models.Event) error {
	s.events = append(s.events, event)
	return nil
}

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestShouldAlertDecisionTable(t *testing.T) {
	now := ts(t, "2025-06-01T12:00:00Z")
	cooldown := 6 * time.Hour
	recent := now.Add(-1 * time.Hour)
	stale := now.Add(-7 * time.Hour)

	tests := []struct {
		name       string
		prev, next models.Severity
		lastAlert  *time.Time
		wantAlert  bool
		wantReason string
	}{
		{"ok to ok", models.SeverityOK, models.SeverityOK, nil, false, ""},
		{"ok to warn", models.SeverityOK, models.SeverityWarn, nil, true, ReasonNewProblem},
		{"ok to crit", models.SeverityOK, models.SeverityCrit, nil, true, ReasonNewProblem},
		{"warn to crit", models.SeverityWarn, models.SeverityCrit, nil, true, ReasonEscalation},
		{"warn to ok", models.SeverityWarn, models.SeverityOK, nil, true, ReasonRecovery},
		{"crit to ok", models.SeverityCrit, models.SeverityOK, nil, true, ReasonRecovery},
		{"crit to warn", models.SeverityCrit, models.SeverityWarn, &recent, false, ""},
		{"warn to warn never repeats", models.SeverityWarn, models.SeverityWarn, &stale, false, ""},
		{"warn to warn no last alert", models.SeverityWarn, models.SeverityWarn, nil, false, ""},
		{"crit to crit within cooldown", models.SeverityCrit, models.SeverityCrit, &recent, false, ""},
		{"crit to crit past cooldown", models.SeverityCrit, models.SeverityCrit, &stale, true, ReasonCooldownRepeat},
		{"crit to crit no last alert", models.SeverityCrit, models.SeverityCrit, nil, false, ""},
		{"ok to unknown", models.SeverityOK, models.SeverityUnknown, nil, false, ""},
		{"unknown to ok", models.SeverityUnknown, models.SeverityOK, nil, false, ""},
		{"unknown to crit", models.SeverityUnknown, models.SeverityCrit, nil, false, ""},
		{"crit to unknown", models.SeverityCrit, models.SeverityUnknown, &stale, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, reason := ShouldAlert(tt.prev, tt.next, tt.lastAlert, cooldown, now)
			assert.Equal(t, tt.wantAlert, alert)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestShouldAlertCooldownBoundary(t *testing.T) {
	now := ts(t, "2025-06-01T12:00:00Z")
	cooldown := 21600 * time.Second

	sevenHoursAgo := now.Add(-7 * time.Hour)
	alert, reason := ShouldAlert(models.SeverityCrit, models.SeverityCrit, &sevenHoursAgo, cooldown, now)
	assert.True(t, alert)
	assert.Equal(t, ReasonCooldownRepeat, reason)

	oneHourAgo := now.Add(-1 * time.Hour)
	alert, reason = ShouldAlert(models.SeverityCrit, models.SeverityCrit, &oneHourAgo, cooldown, now)
	assert.False(t, alert)
	assert.Empty(t, reason)

	exactlyCooldown := now.Add(-cooldown)
	alert, _ = ShouldAlert(models.SeverityCrit, models.SeverityCrit, &exactlyCooldown, cooldown, now)
	assert.True(t, alert)
}

func TestProcessNewProblemCreatesState(t *testing.T) {
	store := newFakeStore()
	eng := New(store, 6*time.Hour)
	now := ts(t, "2025-06-01T12:00:00Z")
	eng.now = func() time.Time { return now }

	alert, reason := eng.Process(models.CheckResult{
		CheckName:  "smart",
		Identifier: "/dev/sda",
		Status:     models.SeverityCrit,
		Summary:    "Pending sectors: 4",
	})

	assert.True(t, alert)
	assert.Equal(t, ReasonNewProblem, reason)

	state := store.states["smart:/dev/sda"]
	require.NotNil(t, state)
	assert.Equal(t, models.SeverityCrit, state.CurrentStatus)
	assert.Equal(t, now, state.LastChangeAt)
	require.NotNil(t, state.LastAlertAt)
	assert.Equal(t, now, *state.LastAlertAt)
	assert.Equal(t, 1, state.AlertCount)

	require.Len(t, store.events, 1)
	assert.Equal(t, models.EventStateChange, store.events[0].Type)
	assert.Equal(t, models.SeverityCrit, store.events[0].Severity)
}

func TestProcessOKResultLeavesCleanState(t *testing.T) {
	store := newFakeStore()
	eng := New(store, 6*time.Hour)
	now := ts(t, "2025-06-01T12:00:00Z")
	eng.now = func() time.Time { return now }

	alert, reason := eng.Process(models.CheckResult{
		CheckName: "lvm_raid",
		Status:    models.SeverityOK,
		Summary:   "healthy",
	})

	assert.False(t, alert)
	assert.Empty(t, reason)

	state := store.states["lvm_raid"]
	require.NotNil(t, state)
	assert.Equal(t, models.SeverityOK, state.CurrentStatus)
	assert.Nil(t, state.LastAlertAt)
	assert.Zero(t, state.AlertCount)
	assert.Empty(t, store.events)
}

func TestProcessRecoveryClearsProblem(t *testing.T) {
	store := newFakeStore()
	now := ts(t, "2025-06-01T12:00:00Z")
	alertedAt := now.Add(-2 * time.Hour)
	store.states["filesystem:/data"] = &models.IssueState{
		Key:           "filesystem:/data",
		CurrentStatus: models.SeverityWarn,
		LastAlertAt:   &alertedAt,
		LastChangeAt:  alertedAt,
		AlertCount:    1,
	}

	eng := New(store, 6*time.Hour)
	eng.now = func() time.Time { return now }

	alert, reason := eng.Process(models.CheckResult{
		CheckName:  "filesystem",
		Identifier: "/data",
		Status:     models.SeverityOK,
		Summary:    "/data: 70.0% used",
	})

	assert.True(t, alert)
	assert.Equal(t, ReasonRecovery, reason)

	state := store.states["filesystem:/data"]
	assert.Equal(t, models.SeverityOK, state.CurrentStatus)
	assert.Equal(t, now, state.LastChangeAt)
	assert.Equal(t, 2, state.AlertCount)

	require.Len(t, store.events, 1)
	assert.Equal(t, models.EventRecovery, store.events[0].Type)
}

func TestProcessUnchangedSeverityKeepsChangeTimestamp(t *testing.T) {
	store := newFakeStore()
	now := ts(t, "2025-06-01T12:00:00Z")
	changedAt := now.Add(-3 * time.Hour)
	alertedAt := now.Add(-1 * time.Hour)
	store.states["smart:/dev/sdb"] = &models.IssueState{
		Key:           "smart:/dev/sdb",
		CurrentStatus: models.SeverityCrit,
		LastAlertAt:   &alertedAt,
		LastChangeAt:  changedAt,
		AlertCount:    1,
	}

	eng := New(store, 6*time.Hour)
	eng.now = func() time.Time { return now }

	alert, _ := eng.Process(models.CheckResult{
		CheckName:  "smart",
		Identifier: "/dev/sdb",
		Status:     models.SeverityCrit,
		Summary:    "still failing",
	})

	assert.False(t, alert)

	state := store.states["smart:/dev/sdb"]
	assert.Equal(t, changedAt, state.LastChangeAt)
	assert.Equal(t, alertedAt, *state.LastAlertAt)
	assert.Equal(t, 1, state.AlertCount)
	assert.Empty(t, store.events)
}

func TestProcessCooldownRepeatBumpsAlertTimestamp(t *testing.T) {
	store := newFakeStore()
	now := ts(t, "2025-06-01T12:00:00Z")
	alertedAt := now.Add(-7 * time.Hour)
	store.states["journal"] = &models.IssueState{
		Key:           "journal",
		CurrentStatus: models.SeverityCrit,
		LastAlertAt:   &alertedAt,
		LastChangeAt:  alertedAt,
		AlertCount:    1,
	}

	eng := New(store, 6*time.Hour)
	eng.now = func() time.Time { return now }

	alert, reason := eng.Process(models.CheckResult{
		CheckName: "journal",
		Status:    models.SeverityCrit,
		Summary:   "I/O error: 12",
	})

	assert.True(t, alert)
	assert.Equal(t, ReasonCooldownRepeat, reason)

	state := store.states["journal"]
	assert.Equal(t, now, *state.LastAlertAt)
	assert.Equal(t, 2, state.AlertCount)
	assert.Equal(t, alertedAt, state.LastChangeAt)
}

func TestProcessSameOKResultIsIdempotent(t *testing.T) {
	store := newFakeStore()
	eng := New(store, 6*time.Hour)
	now := ts(t, "2025-06-01T12:00:00Z")
	eng.now = func() time.Time { return now }

	result := models.CheckResult{CheckName: "lvm_raid", Status: models.SeverityOK}

	alert1, _ := eng.Process(result)
	first := *store.states["lvm_raid"]

	eng.now = func() time.Time { return now.Add(15 * time.Minute) }
	alert2, _ := eng.Process(result)
	second := *store.states["lvm_raid"]

	assert.False(t, alert1)
	assert.False(t, alert2)
	assert.Equal(t, first.CurrentStatus, second.CurrentStatus)
	assert.Equal(t, first.LastChangeAt, second.LastChangeAt)
	assert.Equal(t, first.AlertCount, second.AlertCount)
	assert.Empty(t, store.events)
}

func TestRecordAlertSent(t *testing.T) {
	store := newFakeStore()
	eng := New(store, 6*time.Hour)
	now := ts(t, "2025-06-01T12:00:00Z")
	eng.now = func() time.Time { return now }

	eng.RecordAlertSent([]models.CheckResult{
		{CheckName: "smart", Identifier: "/dev/sda", Status: models.SeverityCrit, Summary: "Pending sectors: 4"},
		{CheckName: "lvm_raid", Status: models.SeverityOK, Summary: "healthy"},
	}, "slack", true)

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, models.EventAlertSent, event.Type)
	assert.Equal(t, models.SeverityCrit, event.Severity)
	assert.Equal(t, "slack", event.Source)
	assert.Equal(t, true, event.Payload["success"])
}
