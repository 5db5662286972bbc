package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

// Pipeline metrics
var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_provider_requests_total",
			Help: "Requests sent to the weather provider",
		},
		[]string{"status"},
	)

	ProviderRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weather_provider_request_duration_seconds",
			Help:    "Duration of weather provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ETLRunsTotal counts finished runs by final status
	ETLRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Pipeline runs by final status",
		},
		[]string{"status"},
	)

	ETLRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etl_run_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ETLCityResultsTotal counts per-city outcomes; stage is the step that
	// failed (extract, transform, load) or "load" for a success.
	ETLCityResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_city_results_total",
			Help: "Per-city pipeline outcomes",
		},
		[]string{"stage", "result"},
	)

	ETLRecordsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_records_deleted_total",
			Help: "Readings removed by retention cleanup",
		},
	)

	ETLLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etl_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)

	ETLLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etl_last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished",
		},
	)
)

var (
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatheretl_app_info",
			Help: "Application information (always 1)",
		},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatheretl_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, status(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

func RecordProviderRequest(duration time.Duration, err error) {
	ProviderRequestsTotal.WithLabelValues(status(err)).Inc()
	ProviderRequestDuration.Observe(duration.Seconds())
}

func RecordCityResult(stage string, err error) {
	ETLCityResultsTotal.WithLabelValues(stage, status(err)).Inc()
}

// RecordRun records a finished run.
func RecordRun(runStatus string, duration time.Duration, finishedAt time.Time) {
	ETLRunsTotal.WithLabelValues(runStatus).Inc()
	ETLRunDuration.Observe(duration.Seconds())
	ETLLastRunTimestamp.Set(float64(finishedAt.Unix()))
	if runStatus == "success" {
		ETLLastSuccessTimestamp.Set(float64(finishedAt.Unix()))
	}
}

func RecordCleanup(deleted int64) {
	if deleted > 0 {
		ETLRecordsDeletedTotal.Add(float64(deleted))
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
