package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RunPrefix     = "etl"
	CleanupPrefix = "cleanup"
)

// NewExecutionID returns "<prefix>_<unix seconds>_<8 hex>". The suffix keeps
// ids unique when two runs start within the same second.
func NewExecutionID(prefix string, t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, t.Unix(), suffix)
}

// IsCleanup reports whether a run log row is a retention cleanup audit entry.
func (r RunLog) IsCleanup() bool {
	return strings.HasPrefix(r.ExecutionID, CleanupPrefix+"_")
}
