package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"weatheretl/internal/database"
	"weatheretl/internal/models"
)

const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// CityResult is the outcome for one city: either a stored Reading or the
// Stage that failed and its Err.
type CityResult struct {
	City    string
	Stage   string
	Reading *models.WeatherReading
	Err     error
}

func (c CityResult) OK() bool {
	return c.Err == nil
}

type RunSummary struct {
	ExecutionID     string
	Status          models.RunStatus
	StartedAt       time.Time
	FinishedAt      time.Time
	Results         []CityResult
	CitiesProcessed int
	RecordsInserted int
	RecordsDeleted  int64
	CleanupErr      error
}

// Failures returns the cities that did not produce a stored reading.
func (s *RunSummary) Failures() []CityResult {
	var failed []CityResult
	for _, r := range s.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err joins every per-city error and a cleanup error, if any. It returns nil
// for a clean run.
func (s *RunSummary) Err() error {
	var result *multierror.Error
	for _, r := range s.Failures() {
		result = multierror.Append(result, fmt.Errorf("%s (%s): %w", r.City, r.Stage, r.Err))
	}
	if s.CleanupErr != nil {
		result = multierror.Append(result, fmt.Errorf("cleanup: %w", s.CleanupErr))
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = joinErrors
	return result
}

// RunLog is the etl_logs row describing this run.
func (s *RunSummary) RunLog() *models.RunLog {
	run := &models.RunLog{
		ExecutionID:     s.ExecutionID,
		StartTime:       s.StartedAt,
		Status:          s.Status,
		CitiesProcessed: s.CitiesProcessed,
		RecordsInserted: s.RecordsInserted,
	}
	if !s.FinishedAt.IsZero() {
		end := s.FinishedAt
		run.EndTime = &end
	}
	if err := s.Err(); err != nil {
		msg := err.Error()
		run.ErrorMessage = &msg
	}
	return run
}

// storeUnreachable is true when at least one insert was attempted and every
// attempted insert failed to reach the store. Rows rejected by the schema do
// not count.
func (s *RunSummary) storeUnreachable() bool {
	attempted := 0
	for _, r := range s.Results {
		if r.Stage != StageLoad {
			continue
		}
		attempted++
		if r.OK() || !database.IsConnection(r.Err) {
			return false
		}
	}
	return attempted > 0
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
