// Package pipeline runs one extract, transform and load pass over the
// configured cities and records the outcome in the run log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weatheretl/internal/api"
	"weatheretl/internal/config"
	"weatheretl/internal/logger"
	"weatheretl/internal/metrics"
	"weatheretl/internal/models"
	"weatheretl/internal/stream"
)

// Transformer maps a provider payload to a storable reading.
type Transformer interface {
	Transform(raw *models.RawWeather) (*models.WeatherReading, error)
}

// Repository is the subset of the store the runner writes to.
type Repository interface {
	InsertReading(ctx context.Context, r *models.WeatherReading) error
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
	RecordRunStart(ctx context.Context, executionID string, startedAt time.Time) error
	RecordRunEnd(ctx context.Context, run *models.RunLog) error
}

type Runner struct {
	provider    api.Provider
	transformer Transformer
	repo        Repository
	publisher   stream.Publisher

	cities        []string
	retentionDays int
	cityPause     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	stats *Stats
}

func NewRunner(provider api.Provider, transformer Transformer, repo Repository, cfg config.ETLConfig) *Runner {
	return &Runner{
		provider:      provider,
		transformer:   transformer,
		repo:          repo,
		cities:        cfg.Cities,
		retentionDays: cfg.CleanupDays,
		cityPause:     cfg.CityPause,
		now:           time.Now,
		sleep:         sleepContext,
		stats:         &Stats{},
	}
}

// SetPublisher makes the runner forward every stored reading. A nil
// publisher disables forwarding.
func (r *Runner) SetPublisher(p stream.Publisher) {
	r.publisher = p
}

func (r *Runner) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// Run processes every city once, purges expired readings and closes the run
// log row. The returned error is non-nil only when the run itself failed;
// per-city failures are reported in the summary.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	startedAt := r.now().UTC()
	summary := &RunSummary{
		ExecutionID: models.NewExecutionID(models.RunPrefix, startedAt),
		StartedAt:   startedAt,
		Status:      models.RunStatusRunning,
	}
	r.stats.runStarted(startedAt)

	logger.Infof("Starting ETL run %s for %d cities", summary.ExecutionID, len(r.cities))

	if err := r.repo.RecordRunStart(ctx, summary.ExecutionID, startedAt); err != nil {
		summary.Status = models.RunStatusFailed
		summary.FinishedAt = r.now().UTC()
		metrics.RecordRun(string(summary.Status), summary.FinishedAt.Sub(startedAt), summary.FinishedAt)
		return summary, fmt.Errorf("failed to record start of run %s: %w", summary.ExecutionID, err)
	}

	var runErr error
	for i, city := range r.cities {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted before %s: %w", city, err)
			break
		}

		result := r.processCity(ctx, city)
		summary.Results = append(summary.Results, result)
		if result.Err != nil {
			logger.Warnf("City %s failed at %s: %v", city, result.Stage, result.Err)
		} else {
			summary.RecordsInserted++
		}

		if i < len(r.cities)-1 && r.cityPause > 0 {
			if err := r.sleep(ctx, r.cityPause); err != nil {
				runErr = fmt.Errorf("run interrupted after %s: %w", city, err)
				break
			}
		}
	}
	summary.CitiesProcessed = len(summary.Results)

	// the run row must be closed even when the caller's context is done
	closeCtx := context.WithoutCancel(ctx)

	if runErr == nil {
		deleted, err := r.repo.Cleanup(closeCtx, r.retentionDays)
		if err != nil {
			logger.Errorf("Cleanup of readings older than %d days failed: %v", r.retentionDays, err)
			summary.CleanupErr = err
		} else {
			summary.RecordsDeleted = deleted
			metrics.RecordCleanup(deleted)
			logger.Infof("Cleanup removed %d readings older than %d days", deleted, r.retentionDays)
		}
	}

	if runErr == nil && summary.storeUnreachable() {
		runErr = errors.New("store unreachable for every insert")
	}
	if runErr != nil {
		summary.Status = models.RunStatusFailed
	} else {
		summary.Status = models.RunStatusSuccess
	}
	summary.FinishedAt = r.now().UTC()

	endErr := r.repo.RecordRunEnd(closeCtx, summary.RunLog())
	if endErr != nil {
		summary.Status = models.RunStatusFailed
		runErr = errors.Join(runErr, fmt.Errorf("failed to record end of run %s: %w", summary.ExecutionID, endErr))
	}

	metrics.RecordRun(string(summary.Status), summary.FinishedAt.Sub(startedAt), summary.FinishedAt)
	if summary.Status == models.RunStatusSuccess {
		r.stats.runSucceeded(summary.FinishedAt)
	}

	logger.Infof("ETL run %s finished with status %s: %d/%d cities stored in %s",
		summary.ExecutionID, summary.Status, summary.RecordsInserted, len(r.cities),
		summary.FinishedAt.Sub(startedAt).Round(time.Millisecond))

	return summary, runErr
}

func (r *Runner) processCity(ctx context.Context, city string) CityResult {
	result := CityResult{City: city, Stage: StageExtract}

	raw, err := r.provider.GetCurrentWeather(ctx, city)
	metrics.RecordCityResult(StageExtract, err)
	r.stats.extracted(err)
	if err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageTransform
	reading, err := r.transformer.Transform(raw)
	metrics.RecordCityResult(StageTransform, err)
	if err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageLoad
	err = r.repo.InsertReading(ctx, reading)
	metrics.RecordCityResult(StageLoad, err)
	r.stats.loaded(err)
	if err != nil {
		result.Err = err
		return result
	}
	result.Reading = reading

	logger.Debugf("Stored reading %d for %s (%.1f°C, %s)", reading.ID, reading.CityName, reading.Temperature, reading.TemperatureCategory)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, reading); err != nil {
			logger.Warnf("Failed to publish reading for %s: %v", city, err)
		}
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
