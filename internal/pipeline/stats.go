package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"weatheretl/internal/logger"
	"weatheretl/internal/models"
)

// HealthWindow is how recent the last run must be for the pipeline to count
// as healthy.
const HealthWindow = 2 * time.Hour

// Stats counts outcomes across runs of one Runner.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

type StatsSnapshot struct {
	TotalRuns             int        `json:"total_runs"`
	SuccessfulExtractions int        `json:"successful_extractions"`
	FailedExtractions     int        `json:"failed_extractions"`
	SuccessfulLoads       int        `json:"successful_loads"`
	FailedLoads           int        `json:"failed_loads"`
	LastRun               *time.Time `json:"last_run"`
	LastSuccess           *time.Time `json:"last_success"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Stats) runStarted(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TotalRuns++
	s.snap.LastRun = &t
}

func (s *Stats) runSucceeded(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastSuccess = &t
}

func (s *Stats) extracted(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.FailedExtractions++
	} else {
		s.snap.SuccessfulExtractions++
	}
}

func (s *Stats) loaded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.FailedLoads++
	} else {
		s.snap.SuccessfulLoads++
	}
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Healthy           bool          `json:"healthy"`
	DatabaseConnected bool          `json:"database_connected"`
	LastRunRecent     bool          `json:"last_run_recent"`
	Statistics        StatsSnapshot `json:"statistics"`
	Timestamp         time.Time     `json:"timestamp"`
}

// Health is healthy when the store answers a ping and the last run started
// within HealthWindow. A runner that has not run yet is not healthy.
func (r *Runner) Health(ctx context.Context, store Pinger) Health {
	now := r.now().UTC()
	snap := r.Stats()

	h := Health{
		DatabaseConnected: store.Ping(ctx) == nil,
		LastRunRecent:     snap.LastRun != nil && now.Sub(*snap.LastRun) < HealthWindow,
		Statistics:        snap,
		Timestamp:         now,
	}
	h.Healthy = h.DatabaseConnected && h.LastRunRecent
	return h
}

// HealthHandler serves Health as JSON, with 503 when unhealthy.
func (r *Runner) HealthHandler(store Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h := r.Health(req.Context(), store)

		status := http.StatusOK
		if !h.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(h); err != nil {
			logger.Errorf("Failed to encode health response: %v", err)
		}
	})
}

// RunIsRecent reports whether a persisted run started within HealthWindow of
// now.
func RunIsRecent(run *models.RunLog, now time.Time) bool {
	return run != nil && now.Sub(run.StartTime) < HealthWindow
}
