package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

// Alert reasons, also recorded in event payloads.
const (
	ReasonRecovery       = "recovery"
	ReasonNewProblem     = "new_problem"
	ReasonEscalation     = "escalation"
	ReasonCooldownRepeat = "cooldown_repeat"
)

// ShouldAlert decides whether a severity transition warrants notifying
// a human. Rules are evaluated in precedence order, first match wins:
//
//  1. recovery:        problem -> OK
//  2. new_problem:     OK -> problem
//  3. escalation:      WARN -> CRIT
//  4. cooldown_repeat: sustained CRIT re-alerted after the cooldown
//
// CRIT->WARN and WARN->WARN never fire, so a flapping WARN/CRIT pair
// cannot alert on every transition, while rule 4 keeps a sustained
// CRIT from silently falling off an operator's radar. UNKNOWN is a
// probe failure, not a confirmed condition, and alerts in neither
// direction.
func ShouldAlert(prev, next models.Severity, lastAlert *time.Time, cooldown time.Duration, now time.Time) (bool, string) {
	if prev.IsProblem() && next == models.SeverityOK {
		return true, ReasonRecovery
	}
	if prev == models.SeverityOK && next.IsProblem() {
		return true, ReasonNewProblem
	}
	if prev == models.SeverityWarn && next == models.SeverityCrit {
		return true, ReasonEscalation
	}
	if next == models.SeverityCrit && lastAlert != nil && now.Sub(*lastAlert) >= cooldown {
		return true, ReasonCooldownRepeat
	}
	return false, ""
}

// StateStore is the keyed persistence the engine consumes: issue state
// by dedup key plus best-effort event recording.
type StateStore interface {
	IssueState(key string) (*models.IssueState, error)
	SaveIssueState(state *models.IssueState) error
	SaveEvent(event *models.Event) error
}

// Engine applies the alert decision to check results and owns the
// issue-state lifecycle. It is the only writer of issue state.
type Engine struct {
	store    StateStore
	cooldown time.Duration
	now      func() time.Time
}

func New(store StateStore, cooldown time.Duration) *Engine {
	return &Engine{store: store, cooldown: cooldown, now: time.Now}
}

// Process runs one check result through the decision function, records
// a state-change event when the severity moved, and persists the
// updated state unconditionally. Returns the alert decision and reason.
func (e *Engine) Process(result models.CheckResult) (bool, string) {
	key := result.DedupKey()
	now := e.now()

	state, err := e.store.IssueState(key)
	if err != nil {
		// Stale state is a correctness risk: the next run will
		// redecide from whatever was last persisted.
		slog.Error("Failed to load issue state", "key", key, "error", err)
	}
	if state == nil {
		state = models.NewIssueState(key, now)
	}

	alert, reason := ShouldAlert(state.CurrentStatus, result.Status, state.LastAlertAt, e.cooldown, now)

	if result.Status != state.CurrentStatus {
		e.recordStateChange(result, state.CurrentStatus)
		state.LastChangeAt = now
	}
	state.CurrentStatus = result.Status
	if alert {
		alertedAt := now
		state.LastAlertAt = &alertedAt
		state.AlertCount++
	}

	if err := e.store.SaveIssueState(state); err != nil {
		slog.Error("Failed to persist issue state", "key", key, "error", err)
	}

	return alert, reason
}

func (e *Engine) recordStateChange(result models.CheckResult, oldStatus models.Severity) {
	var eventType models.EventType
	var message string

	switch {
	case result.Status == models.SeverityOK && oldStatus.IsProblem():
		eventType = models.EventRecovery
		message = fmt.Sprintf("Recovered: %s", result.CheckName)
	case result.Status.IsProblem() && oldStatus == models.SeverityOK:
		eventType = models.EventStateChange
		message = fmt.Sprintf("New issue: %s - %s", result.CheckName, result.Summary)
	default:
		eventType = models.EventStateChange
		message = fmt.Sprintf("Status change: %s %s -> %s", result.CheckName, oldStatus, result.Status)
	}

	event := &models.Event{
		Ts:       e.now(),
		Type:     eventType,
		Severity: result.Status,
		Source:   result.CheckName,
		Message:  message,
		Payload: datatypes.JSONMap{
			"check_name": result.CheckName,
			"identifier": result.Identifier,
			"old_status": string(oldStatus),
			"new_status": string(result.Status),
			"summary":    result.Summary,
		},
	}

	if err := e.store.SaveEvent(event); err != nil {
		slog.Error("Failed to record state change event", "key", result.DedupKey(), "error", err)
	}
}

// RecordAlertSent logs the outcome of one backend's dispatch attempt.
func (e *Engine) RecordAlertSent(results []models.CheckResult, backend string, success bool) {
	worst := models.SeverityOK
	summaries := make([]interface{}, 0, len(results))
	for _, r := range results {
		worst = models.Worse(worst, r.Status)
		if r.Status.IsProblem() {
			summaries = append(summaries, fmt.Sprintf("[%s] %s: %s", r.Status, r.CheckName, r.Summary))
		}
	}

	message := fmt.Sprintf("Alert sent via %s", backend)
	if !success {
		message = fmt.Sprintf("Alert failed via %s", backend)
	}

	event := &models.Event{
		Ts:       e.now(),
		Type:     models.EventAlertSent,
		Severity: worst,
		Source:   backend,
		Message:  message,
		Payload: datatypes.JSONMap{
			"backend":   backend,
			"success":   success,
			"summaries": summaries,
		},
	}

	if err := e.store.SaveEvent(event); err != nil {
		slog.Error("Failed to record alert event", "backend", backend, "error", err)
	}
}
