package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	syncPcts   []float64
	savedSyncs []float64
	smartAttrs map[string]map[int]int64
	savedSmart map[string]map[int]int64
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		smartAttrs: map[string]map[int]int64{},
		savedSmart: map[string]map[int]int64{},
	}
}

func (h *fakeHistory) SaveSyncPct(vg, lv string, pct float64) error {
	h.savedSyncs = append(h.savedSyncs, pct)
	return nil
}

func (h *fakeHistory) RecentSyncPcts(vg, lv string, limit int) ([]float64, error) {
	return h.syncPcts, nil
}

func (h *fakeHistory) SaveSmartAttrs(disk string, attrs map[int]int64) error {
	h.savedSmart[disk] = attrs
	return nil
}

func (h *fakeHistory) LastSmartAttrs(disk string) (map[int]int64, error) {
	if attrs, ok := h.smartAttrs[disk]; ok {
		return attrs, nil
	}
	return map[int]int64{}, nil
}

func cannedExec(stdout, stderr string, exitCode int, err error) execFunc {
	return func(ctx context.Context, name string, args ...string) (string, string, int, error) {
		return stdout, stderr, exitCode, err
	}
}

func lvsJSON(segtype, attr, copyPct, health string) string {
	return `{"report":[{"lv":[{"vg_name":"RAID","lv_name":"RAID","segtype":"` + segtype +
		`","lv_attr":"` + attr + `","copy_percent":"` + copyPct +
		`","devices":"RAID_rimage_0(0),RAID_rimage_1(0)","lv_health_status":"` + health + `"}]}]}`
}

func lvmTestConfig() config.LVMConfig {
	return config.LVMConfig{Enabled: true, VG: "RAID", LV: "RAID", SyncStallRuns: 6}
}

func TestLvmHealthyMirror(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "100.00", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityOK, results[0].Status)
	assert.Equal(t, "RAID/RAID", results[0].Identifier)
	assert.Contains(t, results[0].Summary, "healthy")

	require.Len(t, c.Metrics(), 2)
	assert.Equal(t, "lvm_sync_pct", c.Metrics()[0].Name)
	assert.Equal(t, 100.0, *c.Metrics()[0].ValueNum)
	assert.Equal(t, 0.0, *c.Metrics()[1].ValueNum)
}

func TestLvmSyncing(t *testing.T) {
	history := newFakeHistory()
	history.syncPcts = []float64{41.0, 39.5}

	c := NewLvmCheck(lvmTestConfig(), history)
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "42.50", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityWarn, results[0].Status)
	assert.Contains(t, results[0].Summary, "42.5%")
	assert.Equal(t, []float64{42.5}, history.savedSyncs)
}

func TestLvmSyncStalled(t *testing.T) {
	history := newFakeHistory()
	// Five prior runs at the same percentage, one short of the stall
	// threshold of six runs; the current run makes it six.
	history.syncPcts = []float64{42.5, 42.5, 42.5, 42.5, 42.5}

	c := NewLvmCheck(lvmTestConfig(), history)
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "42.50", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
	assert.Contains(t, results[0].Summary, "STALLED")
}

func TestLvmSyncEpsilonDeltaIsProgress(t *testing.T) {
	history := newFakeHistory()
	// Enough history to trip the stall window, but each prior sample
	// sits exactly the 0.01 epsilon away from the current percentage.
	history.syncPcts = []float64{42.51, 42.51, 42.51, 42.51, 42.51}

	c := NewLvmCheck(lvmTestConfig(), history)
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "42.50", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityWarn, results[0].Status)
	assert.NotContains(t, results[0].Summary, "STALLED")
}

func TestLvmSyncNotStalledWithShortHistory(t *testing.T) {
	history := newFakeHistory()
	history.syncPcts = []float64{42.5, 42.5}

	c := NewLvmCheck(lvmTestConfig(), history)
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "42.50", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityWarn, results[0].Status)
}

func TestLvmDegradedPartial(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor-p-", "100.00", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
	assert.Contains(t, results[0].Summary, "DEGRADED")
	assert.Contains(t, results[0].Summary, "missing PV")
}

func TestLvmDegradedHealthStatus(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec(lvsJSON("raid1", "rwi-aor---", "100.00", "refresh needed"), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
	assert.Contains(t, results[0].Summary, "refresh needed")
}

func TestLvmNotMirrored(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec(lvsJSON("linear", "-wi-ao----", "", ""), "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
	assert.Contains(t, results[0].Summary, "not RAID1")
}

func TestLvmLVMissing(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec(`{"report":[{"lv":[]}]}`, "", 0, nil)

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityCrit, results[0].Status)
	assert.Contains(t, results[0].Summary, "not found")
}

func TestLvmCommandFailure(t *testing.T) {
	c := NewLvmCheck(lvmTestConfig(), newFakeHistory())
	c.execCmd = cannedExec("", "", 0, errors.New("exec: \"lvs\": executable file not found"))

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.SeverityUnknown, results[0].Status)
}

func TestLvmDisabled(t *testing.T) {
	cfg := lvmTestConfig()
	cfg.Enabled = false
	c := NewLvmCheck(cfg, newFakeHistory())

	assert.Empty(t, c.Run(context.Background()))
}
