package models

import (
	"regexp"
	"testing"
	"time"
)

func TestNewExecutionID(t *testing.T) {
	at := time.Unix(1700000000, 0)
	pattern := regexp.MustCompile(`^etl_1700000000_[0-9a-f]{8}$`)

	a := NewExecutionID(RunPrefix, at)
	b := NewExecutionID(RunPrefix, at)

	if !pattern.MatchString(a) {
		t.Errorf("NewExecutionID() = %q, want match for %s", a, pattern)
	}
	if a == b {
		t.Errorf("NewExecutionID() returned %q twice for the same second", a)
	}
}

func TestRunLogIsCleanup(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewExecutionID(CleanupPrefix, time.Now()), true},
		{NewExecutionID(RunPrefix, time.Now()), false},
		{"cleanupish", false},
	}
	for _, tt := range tests {
		if got := (RunLog{ExecutionID: tt.id}).IsCleanup(); got != tt.want {
			t.Errorf("IsCleanup(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
