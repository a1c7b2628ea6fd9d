package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 0, SeverityOK.Rank())
	assert.Equal(t, 1, SeverityWarn.Rank())
	assert.Equal(t, 2, SeverityCrit.Rank())
	assert.Equal(t, 3, SeverityUnknown.Rank())

	// Anything unrecognized sorts worst.
	assert.Equal(t, 3, Severity("bogus").Rank())
}

func TestSeverityIsProblem(t *testing.T) {
	assert.False(t, SeverityOK.IsProblem())
	assert.True(t, SeverityWarn.IsProblem())
	assert.True(t, SeverityCrit.IsProblem())
	assert.False(t, SeverityUnknown.IsProblem())
}

func TestWorse(t *testing.T) {
	assert.Equal(t, SeverityCrit, Worse(SeverityWarn, SeverityCrit))
	assert.Equal(t, SeverityCrit, Worse(SeverityCrit, SeverityOK))
	assert.Equal(t, SeverityWarn, Worse(SeverityOK, SeverityWarn))
	assert.Equal(t, SeverityUnknown, Worse(SeverityUnknown, SeverityCrit))
	assert.Equal(t, SeverityOK, Worse(SeverityOK, SeverityOK))
}

func TestDedupKey(t *testing.T) {
	withID := CheckResult{CheckName: "smart", Identifier: "/dev/sda"}
	assert.Equal(t, "smart:/dev/sda", withID.DedupKey())

	withoutID := CheckResult{CheckName: "journal"}
	assert.Equal(t, "journal", withoutID.DedupKey())
}

func TestRunOverall(t *testing.T) {
	empty := &Run{}
	assert.Equal(t, SeverityUnknown, empty.Overall())

	mixed := &Run{Results: []CheckResult{
		{Status: SeverityOK},
		{Status: SeverityCrit},
		{Status: SeverityWarn},
	}}
	assert.Equal(t, SeverityCrit, mixed.Overall())

	allOK := &Run{Results: []CheckResult{{Status: SeverityOK}, {Status: SeverityOK}}}
	assert.Equal(t, SeverityOK, allOK.Overall())

	withUnknown := &Run{Results: []CheckResult{{Status: SeverityUnknown}, {Status: SeverityCrit}}}
	assert.Equal(t, SeverityUnknown, withUnknown.Overall())
}

func TestNewIssueStateDefaults(t *testing.T) {
	now := time.Now()
	state := NewIssueState("smart:/dev/sda", now)
	assert.Equal(t, SeverityOK, state.CurrentStatus)
	assert.Nil(t, state.LastAlertAt)
	assert.Equal(t, now, state.LastChangeAt)
	assert.Zero(t, state.AlertCount)
}
