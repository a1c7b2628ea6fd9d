package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stormon/stormon/internal/alerts"
	"github.com/stormon/stormon/internal/checks"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/engine"
	"github.com/stormon/stormon/internal/models"
	"gorm.io/datatypes"
)

// RunStore is the persistence the coordinator needs beyond what the
// engine already owns.
type RunStore interface {
	SaveRun(run *models.Run) error
	SaveMetrics(metrics []models.Metric) error
	AckedKeys() (map[string]bool, error)
}

// RunHook observes completed runs, e.g. to push summaries to dashboard
// websocket clients. Hooks must not block.
type RunHook func(run *models.Run)

// Runner executes all checks, persists the run, feeds outcomes through
// the state engine, and fans alerts out to the notifiers.
type Runner struct {
	cfg       *config.Config
	store     RunStore
	engine    *engine.Engine
	checks    []checks.Check
	notifiers []alerts.Notifier
	hooks     []RunHook
	version   string
}

func New(cfg *config.Config, store RunStore, eng *engine.Engine, checkList []checks.Check, notifiers []alerts.Notifier, version string) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     store,
		engine:    eng,
		checks:    checkList,
		notifiers: notifiers,
		version:   version,
	}
}

// AddHook registers an observer for completed runs.
func (r *Runner) AddHook(hook RunHook) {
	r.hooks = append(r.hooks, hook)
}

// RunOnce executes a full monitoring cycle and returns the persisted
// run. Check failures, storage failures, and alert failures never
// abort the cycle.
func (r *Runner) RunOnce(ctx context.Context) *models.Run {
	started := time.Now()
	slog.Info("Starting monitoring run", "checks", len(r.checks))

	var results []models.CheckResult
	var metrics []models.Metric
	for _, check := range r.checks {
		checkResults := r.runCheck(ctx, check)
		results = append(results, checkResults...)
		metrics = append(metrics, check.Metrics()...)
	}

	run := &models.Run{
		Hostname:   r.cfg.Target.Hostname(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Version:    r.version,
		Results:    results,
	}
	run.OverallStatus = run.Overall()

	if err := r.store.SaveRun(run); err != nil {
		slog.Error("Failed to persist run", "error", err)
	}
	if len(metrics) > 0 {
		if err := r.store.SaveMetrics(metrics); err != nil {
			slog.Error("Failed to persist metrics", "error", err)
		}
	}

	r.processAlerts(run)

	for _, hook := range r.hooks {
		hook(run)
	}

	slog.Info("Monitoring run finished",
		"overall", run.OverallStatus,
		"results", len(results),
		"duration_ms", time.Since(started).Milliseconds())
	return run
}

// runCheck isolates one check: a panic becomes a single UNKNOWN result
// so the remaining checks still execute.
func (r *Runner) runCheck(ctx context.Context, check checks.Check) (results []models.CheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Check panicked", "check", check.Name(), "panic", rec)
			results = []models.CheckResult{{
				CheckName: check.Name(),
				Status:    models.SeverityUnknown,
				Summary:   fmt.Sprintf("Check crashed: %v", rec),
				Details:   datatypes.JSONMap{"panic": fmt.Sprint(rec)},
			}}
		}
	}()
	return check.Run(ctx)
}

// processAlerts feeds each outcome through the state engine and sends
// at most one problem notification and one recovery notification per
// run. Acknowledged keys are filtered out before the engine sees them,
// so their persisted state does not drift while muted.
func (r *Runner) processAlerts(run *models.Run) {
	acked, err := r.store.AckedKeys()
	if err != nil {
		slog.Error("Failed to load acknowledgments", "error", err)
		acked = map[string]bool{}
	}

	var problems, recoveries []models.CheckResult
	for _, result := range run.Results {
		if acked[result.DedupKey()] {
			slog.Debug("Skipping acknowledged issue", "key", result.DedupKey())
			continue
		}

		alert, reason := r.engine.Process(result)
		if !alert {
			continue
		}
		slog.Info("Alert decision",
			"key", result.DedupKey(), "status", result.Status, "reason", reason)

		if reason == engine.ReasonRecovery {
			recoveries = append(recoveries, result)
		} else {
			problems = append(problems, result)
		}
	}

	if len(problems) > 0 {
		// Problem alerts carry the whole run so the reader sees what
		// is still healthy alongside what broke.
		r.dispatch(&models.Notification{
			Kind:         models.NotifyProblem,
			Run:          run,
			Results:      run.Results,
			DashboardURL: r.cfg.Dashboard.BaseURL,
		})
	}
	if len(recoveries) > 0 && r.cfg.Alerts.SendRecovery {
		r.dispatch(&models.Notification{
			Kind:         models.NotifyRecovery,
			Run:          run,
			Results:      recoveries,
			DashboardURL: r.cfg.Dashboard.BaseURL,
		})
	}
}

func (r *Runner) dispatch(n *models.Notification) {
	for _, notifier := range r.notifiers {
		err := notifier.Send(n)
		if err != nil {
			slog.Error("Notification failed", "backend", notifier.Name(), "kind", n.Kind, "error", err)
		} else {
			slog.Info("Notification sent", "backend", notifier.Name(), "kind", n.Kind)
		}
		r.engine.RecordAlertSent(n.Results, notifier.Name(), err == nil)
	}
}

// SendTest pushes a test notification through the named backends, or
// every backend when none are named, and reports per-backend success.
func (r *Runner) SendTest(backends ...string) map[string]error {
	wanted := map[string]bool{}
	for _, name := range backends {
		wanted[name] = true
	}

	outcome := make(map[string]error, len(r.notifiers))
	for _, notifier := range r.notifiers {
		if len(wanted) > 0 && !wanted[notifier.Name()] {
			continue
		}
		outcome[notifier.Name()] = notifier.Send(&models.Notification{Kind: models.NotifyTest})
	}
	return outcome
}

// Loop runs cycles at the configured interval until ctx is cancelled.
// The first cycle starts immediately.
func (r *Runner) Loop(ctx context.Context) {
	interval := time.Duration(r.cfg.Scheduler.IntervalSeconds) * time.Second
	for {
		r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-time.After(interval):
		}
	}
}
