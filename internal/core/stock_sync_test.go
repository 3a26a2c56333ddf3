package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithinSyncTolerance(t *testing.T) {
	tests := []struct {
		diff string
		want bool
	}{
		{"0", true},
		{"1", true},
		{"-1", true},
		{"2", false},
		{"-2", false},
		{"0.5", true},
		{"1.001", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withinSyncTolerance(d(tt.diff)), "diff %s", tt.diff)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name    string
		current string
		reorder string
		want    AlertSeverity
	}{
		{"empty shelf", "0", "20", SeverityCritical},
		{"negative after drift", "-3", "20", SeverityCritical},
		{"at half the reorder level", "10", "20", SeverityHigh},
		{"below half", "4", "20", SeverityHigh},
		{"between half and reorder", "15", "20", SeverityMedium},
		{"at reorder level", "20", "20", SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tierFor(d(tt.current), d(tt.reorder)))
		})
	}
}
