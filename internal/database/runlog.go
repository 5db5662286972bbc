package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"weatheretl/internal/metrics"
	"weatheretl/internal/models"
)

// RecordRunStart inserts the etl_logs row for a run in status running.
func (db *DB) RecordRunStart(ctx context.Context, executionID string, startedAt time.Time) error {
	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, db.dialect.rebind(`INSERT INTO etl_logs
		(execution_id, start_time, status, cities_processed, records_inserted)
		VALUES (?, ?, ?, 0, 0)`),
		executionID, startedAt.UTC(), string(models.RunStatusRunning))
	metrics.RecordDBQuery("INSERT", "etl_logs", time.Since(queryStart), err)
	return newStorageError("run start", "etl_logs", err)
}

// RecordRunEnd moves a run's row to its terminal status.
func (db *DB) RecordRunEnd(ctx context.Context, run *models.RunLog) error {
	var endTime *time.Time
	if run.EndTime != nil {
		t := run.EndTime.UTC()
		endTime = &t
	}

	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, db.dialect.rebind(`UPDATE etl_logs
		SET end_time = ?, status = ?, cities_processed = ?, records_inserted = ?, error_message = ?
		WHERE execution_id = ?`),
		endTime, string(run.Status), run.CitiesProcessed, run.RecordsInserted, run.ErrorMessage, run.ExecutionID)
	metrics.RecordDBQuery("UPDATE", "etl_logs", time.Since(queryStart), err)
	return newStorageError("run end", "etl_logs", err)
}

// LastRun returns the most recent pipeline run, ignoring cleanup audit rows,
// or nil if there is none.
func (db *DB) LastRun(ctx context.Context) (*models.RunLog, error) {
	var (
		run    models.RunLog
		status string
	)

	queryStart := time.Now()
	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(`SELECT id, execution_id, start_time, end_time, status,
		cities_processed, records_inserted, error_message
		FROM etl_logs WHERE execution_id NOT LIKE ?
		ORDER BY start_time DESC, id DESC LIMIT 1`), models.CleanupPrefix+"%").Scan(
		&run.ID, &run.ExecutionID, &run.StartTime, &run.EndTime, &status,
		&run.CitiesProcessed, &run.RecordsInserted, &run.ErrorMessage)
	metrics.RecordDBQuery("SELECT", "etl_logs", time.Since(queryStart), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("last run", "etl_logs", err)
	}

	run.Status = models.RunStatus(status)
	return &run, nil
}
