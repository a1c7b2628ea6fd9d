package main

import (
	"testing"

	"github.com/stormon/stormon/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		overall models.Severity
		want    int
	}{
		{models.SeverityCrit, 2},
		{models.SeverityWarn, 1},
		{models.SeverityOK, 0},
		{models.SeverityUnknown, 0},
		{models.Severity("bogus"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.overall), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.overall))
		})
	}
}
