package checks

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/stormon/stormon/internal/models"
)

// Check is one health probe. Run executes a single polling cycle and
// returns one result per monitored entity; expected failure modes
// (missing tool, unreachable device) surface as UNKNOWN results, never
// as panics. Metrics returns the observations captured by the most
// recent Run.
type Check interface {
	Name() string
	Run(ctx context.Context) []models.CheckResult
	Metrics() []models.Metric
}

// History is the slice of storage the delta-based probes need: last
// known attribute values and sync progress from previous runs. Probes
// never touch issue state; that belongs to the state engine.
type History interface {
	SaveSyncPct(vg, lv string, pct float64) error
	RecentSyncPcts(vg, lv string, limit int) ([]float64, error)
	SaveSmartAttrs(disk string, attrs map[int]int64) error
	LastSmartAttrs(disk string) (map[int]int64, error)
}

// execFunc runs an external command and returns stdout, stderr and the
// exit code. Checks hold one so tests can substitute canned output.
type execFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

func runCommand(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return outBuf.String(), errBuf.String(), exitCode, err
}
