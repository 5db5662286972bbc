package database

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/internal/models"
)

var fixedNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func setupMockDB(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	d, err := dialectFor(driver)
	require.NoError(t, err)

	db := &DB{conn: sqlDB, driver: driver, dialect: d, now: func() time.Time { return fixedNow }}
	t.Cleanup(func() {
		mock.ExpectClose()
		db.Close()
	})
	return db, mock
}

var readingCols = []string{
	"id", "city_id", "city_name", "country_code", "latitude", "longitude",
	"temperature", "temperature_feels_like", "temperature_min", "temperature_max",
	"pressure", "humidity", "sea_level_pressure", "ground_level_pressure",
	"weather_main", "weather_description", "weather_icon",
	"wind_speed", "wind_direction", "wind_gust", "cloudiness", "visibility",
	"data_timestamp", "sunrise", "sunset", "extracted_at", "processed_at", "timezone_offset",
	"heat_index", "temperature_category", "humidity_category", "created_at",
}

func addReadingRow(rows *sqlmock.Rows, id int64, city string, observed time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, int64(3448439), city, "BR", -23.5475, -46.6361,
		25.5, 26.1, nil, nil,
		int64(1013), int64(65), nil, nil,
		"Clear", "céu limpo", "01d",
		3.6, int64(140), nil, int64(0), int64(10000),
		observed, nil, nil, observed, observed, int64(-10800),
		33.0, "Quente", "Alta", fixedNow,
	)
}

func sampleReading() *models.WeatherReading {
	observed := fixedNow.Add(-time.Hour)
	return &models.WeatherReading{
		CityName:            "São Paulo",
		CountryCode:         "BR",
		Temperature:         25.5,
		Pressure:            1013,
		Humidity:            65,
		WeatherMain:         "Clear",
		DataTimestamp:       &observed,
		ExtractedAt:         fixedNow,
		ProcessedAt:         fixedNow,
		HeatIndex:           33,
		TemperatureCategory: "Quente",
		HumidityCategory:    "Alta",
	}
}

func TestRebind(t *testing.T) {
	pg, _ := dialectFor(DriverPostgres)
	my, _ := dialectFor(DriverMySQL)

	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", pg.rebind(q))
	assert.Equal(t, q, my.rebind(q))

	_, err := dialectFor("sqlite")
	assert.Error(t, err)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%paulo%", likePattern("paulo"))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func TestInsertReading_Postgres(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(`(?s)INSERT INTO weather_data \(city_id, .*humidity_category\) VALUES \(\$1, .*\$30\) RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	r := sampleReading()
	err := db.InsertReading(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(42), r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_MySQL(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectExec(`INSERT INTO weather_data`).WillReturnResult(sqlmock.NewResult(7, 1))

	r := sampleReading()
	require.NoError(t, db.InsertReading(context.Background(), r))
	assert.Equal(t, int64(7), r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"not null violation", &pq.Error{Code: "23502"}, KindConstraint},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindConnection},
		{"syntax error", &pq.Error{Code: "42601"}, KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t, DriverPostgres)
			mock.ExpectQuery(`INSERT INTO weather_data`).WillReturnError(tt.err)

			err := db.InsertReading(context.Background(), sampleReading())

			var se *StorageError
			require.True(t, errors.As(err, &se), "expected *StorageError, got %v", err)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, "weather_data", se.Table)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestCleanup(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM weather_data WHERE created_at < NOW() - make_interval(days => $1)`)).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO etl_logs`).
		WithArgs(sqlmock.AnyArg(), fixedNow, fixedNow, "success", int64(-3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	deleted, err := db.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup_MySQLCutoffInDatabase(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM weather_data WHERE created_at < NOW(6) - INTERVAL ? DAY`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`VALUES (?, ?, ?, ?, 0, ?)`)).
		WithArgs(sqlmock.AnyArg(), fixedNow, fixedNow, "success", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	deleted, err := db.Cleanup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup_DeleteFailsRollsBack(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM weather_data`).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := db.Cleanup(context.Background(), 30)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "cleanup", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunLifecycle(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)
	end := fixedNow.Add(2 * time.Minute)
	msg := "Recife: provider error"

	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, 0, 0)`)).
		WithArgs("etl_1_abc", fixedNow, "running").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE etl_logs`).
		WithArgs(end, "success", 2, 1, msg, "etl_1_abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, db.RecordRunStart(ctx, "etl_1_abc", fixedNow))
	require.NoError(t, db.RecordRunEnd(ctx, &models.RunLog{
		ExecutionID:     "etl_1_abc",
		EndTime:         &end,
		Status:          models.RunStatusSuccess,
		CitiesProcessed: 2,
		RecordsInserted: 1,
		ErrorMessage:    &msg,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunStart_Error(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)
	mock.ExpectExec(`INSERT INTO etl_logs`).WillReturnError(&net.OpError{Op: "write", Err: errors.New("broken pipe")})

	err := db.RecordRunStart(context.Background(), "etl_1", fixedNow)
	assert.True(t, IsConnection(err))
}

func TestLatestReading(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE LOWER(city_name) LIKE LOWER($1) ORDER BY data_timestamp IS NULL, data_timestamp DESC, id DESC LIMIT 1`)).
		WithArgs("%paulo%").
		WillReturnRows(addReadingRow(sqlmock.NewRows(readingCols), 9, "São Paulo", fixedNow))

	r, err := db.LatestReading(context.Background(), "paulo")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, int64(9), r.ID)
	assert.Equal(t, "São Paulo", r.CityName)
	assert.Equal(t, 25.5, r.Temperature)
	assert.Equal(t, 1013, r.Pressure)
	assert.Nil(t, r.TemperatureMin)
	assert.Equal(t, 140, *r.WindDirection)
	assert.Nil(t, r.WindGust)
	assert.Equal(t, fixedNow, *r.DataTimestamp)
	assert.Equal(t, "Quente", r.TemperatureCategory)
	assert.Equal(t, fixedNow, r.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReading_NoCityNoRows(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM weather_data ORDER BY data_timestamp IS NULL, data_timestamp DESC, id DESC LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows(readingCols))

	r, err := db.LatestReading(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingsByCity(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	rows := sqlmock.NewRows(readingCols)
	addReadingRow(rows, 3, "Rio de Janeiro", fixedNow)
	addReadingRow(rows, 2, "Rio de Janeiro", fixedNow.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY data_timestamp IS NULL, data_timestamp DESC, id DESC LIMIT $2`)).
		WithArgs("%rio%", 5).
		WillReturnRows(rows)

	readings, err := db.ReadingsByCity(context.Background(), "rio", 5)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, int64(3), readings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCities(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(`SELECT DISTINCT city_name FROM weather_data ORDER BY city_name`).
		WillReturnRows(sqlmock.NewRows([]string{"city_name"}).AddRow("Belo Horizonte").AddRow("São Paulo"))

	cities, err := db.Cities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Belo Horizonte", "São Paulo"}, cities)
}

func TestStats(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(`FROM weather_stats_overview`).
		WillReturnRows(sqlmock.NewRows([]string{"total_records", "total_cities", "oldest_record", "newest_record",
			"avg_temperature", "min_temperature", "max_temperature", "avg_humidity"}).
			AddRow(int64(3), int64(2), fixedNow.Add(-time.Hour), fixedNow, 22.5, 18.0, 27.0, 70.33))
	mock.ExpectQuery(`FROM weather_city_stats ORDER BY record_count DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"city_name", "record_count", "avg_temperature", "last_update"}).
			AddRow("São Paulo", int64(2), 25.0, fixedNow).
			AddRow("Curitiba", int64(1), 18.0, fixedNow.Add(-time.Hour)))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.TotalCities)
	assert.Equal(t, 70.33, *stats.AvgHumidity)
	require.Len(t, stats.Cities, 2)
	assert.Equal(t, "São Paulo", stats.Cities[0].CityName)
	assert.Equal(t, 25.0, *stats.Cities[0].AvgTemperature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_EmptyTable(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectQuery(`FROM weather_stats_overview`).
		WillReturnRows(sqlmock.NewRows([]string{"total_records", "total_cities", "oldest_record", "newest_record",
			"avg_temperature", "min_temperature", "max_temperature", "avg_humidity"}).
			AddRow(int64(0), int64(0), nil, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`FROM weather_city_stats`).
		WillReturnRows(sqlmock.NewRows([]string{"city_name", "record_count", "avg_temperature", "last_update"}))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats.AvgTemperature)
	assert.Empty(t, stats.Cities)
}

func TestLastRun(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)
	cols := []string{"id", "execution_id", "start_time", "end_time", "status",
		"cities_processed", "records_inserted", "error_message"}

	mock.ExpectQuery(`FROM etl_logs WHERE execution_id NOT LIKE \$1`).
		WithArgs("cleanup%").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(5), "etl_1_ab", fixedNow, fixedNow.Add(time.Minute), "success", int64(3), int64(3), nil))

	run, err := db.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 3, run.RecordsInserted)
	assert.Nil(t, run.ErrorMessage)

	mock.ExpectQuery(`FROM etl_logs`).WillReturnRows(sqlmock.NewRows(cols))
	run, err = db.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestPing(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("server gone"))
	err := db.Ping(context.Background())
	assert.True(t, IsConnection(err))
}
