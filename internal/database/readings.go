package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"weatheretl/internal/logger"
	"weatheretl/internal/metrics"
	"weatheretl/internal/models"
)

const readingColumns = `city_id, city_name, country_code, latitude, longitude,
	temperature, temperature_feels_like, temperature_min, temperature_max,
	pressure, humidity, sea_level_pressure, ground_level_pressure,
	weather_main, weather_description, weather_icon,
	wind_speed, wind_direction, wind_gust, cloudiness, visibility,
	data_timestamp, sunrise, sunset, extracted_at, processed_at, timezone_offset,
	heat_index, temperature_category, humidity_category`

const selectReading = `SELECT id, ` + readingColumns + `, created_at FROM weather_data`

// case-insensitive substring match, the same in both dialects
const cityFilter = ` WHERE LOWER(city_name) LIKE LOWER(?)`

// newest observation first; rows without one sort last in both dialects
const newestFirst = ` ORDER BY data_timestamp IS NULL, data_timestamp DESC, id DESC`

// InsertReading appends one row. created_at is assigned by the database.
// Duplicate fetches produce duplicate rows.
func (db *DB) InsertReading(ctx context.Context, r *models.WeatherReading) error {
	defer db.updatePoolStats()

	query := `INSERT INTO weather_data (` + readingColumns + `) VALUES (` +
		strings.TrimSuffix(strings.Repeat("?, ", 30), ", ") + `)`
	args := []interface{}{
		r.CityID, r.CityName, r.CountryCode, r.Latitude, r.Longitude,
		r.Temperature, r.TemperatureFeelsLike, r.TemperatureMin, r.TemperatureMax,
		r.Pressure, r.Humidity, r.SeaLevelPressure, r.GroundLevelPressure,
		r.WeatherMain, r.WeatherDescription, r.WeatherIcon,
		r.WindSpeed, r.WindDirection, r.WindGust, r.Cloudiness, r.Visibility,
		r.DataTimestamp, r.Sunrise, r.Sunset, r.ExtractedAt, r.ProcessedAt, r.TimezoneOffset,
		r.HeatIndex, r.TemperatureCategory, r.HumidityCategory,
	}

	queryStart := time.Now()
	var err error
	if db.dialect.returning {
		err = db.conn.QueryRowContext(ctx, db.dialect.rebind(query+` RETURNING id`), args...).Scan(&r.ID)
	} else {
		var res sql.Result
		res, err = db.conn.ExecContext(ctx, query, args...)
		if err == nil {
			r.ID, err = res.LastInsertId()
		}
	}
	metrics.RecordDBQuery("INSERT", "weather_data", time.Since(queryStart), err)
	if err != nil {
		return newStorageError("insert", "weather_data", err)
	}

	logger.Debugf("stored reading %d for %s", r.ID, r.CityName)
	return nil
}

// Cleanup deletes readings created more than retentionDays ago and records
// the deletion as an etl_logs row whose records_inserted is the negated
// count. Both happen in one transaction.
func (db *DB) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	defer db.updatePoolStats()

	now := db.now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, newStorageError("begin", "weather_data", err)
	}
	defer tx.Rollback()

	queryStart := time.Now()
	res, err := tx.ExecContext(ctx, db.dialect.rebind(`DELETE FROM weather_data WHERE `+db.dialect.olderThanDays()), retentionDays)
	metrics.RecordDBQuery("DELETE", "weather_data", time.Since(queryStart), err)
	if err != nil {
		return 0, newStorageError("cleanup", "weather_data", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("cleanup", "weather_data", err)
	}

	queryStart = time.Now()
	_, err = tx.ExecContext(ctx, db.dialect.rebind(`INSERT INTO etl_logs
		(execution_id, start_time, end_time, status, cities_processed, records_inserted)
		VALUES (?, ?, ?, ?, 0, ?)`),
		models.NewExecutionID(models.CleanupPrefix, now), now, now, string(models.RunStatusSuccess), -deleted)
	metrics.RecordDBQuery("INSERT", "etl_logs", time.Since(queryStart), err)
	if err != nil {
		return 0, newStorageError("cleanup audit", "etl_logs", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, newStorageError("commit", "weather_data", err)
	}

	logger.Infof("cleanup removed %d readings older than %d days", deleted, retentionDays)
	return deleted, nil
}

// LatestReading returns the most recent reading, optionally restricted to
// cities whose name contains city. It returns nil when nothing matches.
func (db *DB) LatestReading(ctx context.Context, city string) (*models.WeatherReading, error) {
	query := selectReading
	var args []interface{}
	if city != "" {
		query += cityFilter
		args = append(args, likePattern(city))
	}
	query += newestFirst + ` LIMIT 1`

	readings, err := db.queryReadings(ctx, query, args...)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

// ReadingsByCity returns up to limit readings for cities matching city,
// most recent observation first.
func (db *DB) ReadingsByCity(ctx context.Context, city string, limit int) ([]models.WeatherReading, error) {
	query := selectReading + cityFilter + newestFirst + ` LIMIT ?`
	return db.queryReadings(ctx, query, likePattern(city), limit)
}

// Cities returns the distinct city names, sorted.
func (db *DB) Cities(ctx context.Context) ([]string, error) {
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT city_name FROM weather_data ORDER BY city_name`)
	metrics.RecordDBQuery("SELECT", "weather_data", time.Since(queryStart), err)
	if err != nil {
		return nil, newStorageError("cities", "weather_data", err)
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, newStorageError("cities", "weather_data", err)
		}
		cities = append(cities, c)
	}
	return cities, newStorageError("cities", "weather_data", rows.Err())
}

// Stats reads the overview and per-city views.
func (db *DB) Stats(ctx context.Context) (*models.WeatherStats, error) {
	stats := &models.WeatherStats{Cities: []models.CityStats{}}
	o := &stats.StatsOverview

	queryStart := time.Now()
	err := db.conn.QueryRowContext(ctx, `SELECT total_records, total_cities, oldest_record, newest_record,
		avg_temperature, min_temperature, max_temperature, avg_humidity
		FROM weather_stats_overview`).Scan(
		&o.TotalRecords, &o.TotalCities, &o.OldestRecord, &o.NewestRecord,
		&o.AvgTemperature, &o.MinTemperature, &o.MaxTemperature, &o.AvgHumidity)
	metrics.RecordDBQuery("SELECT", "weather_stats_overview", time.Since(queryStart), err)
	if err != nil {
		return nil, newStorageError("stats", "weather_stats_overview", err)
	}

	queryStart = time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT city_name, record_count, avg_temperature, last_update
		FROM weather_city_stats ORDER BY record_count DESC, city_name`)
	metrics.RecordDBQuery("SELECT", "weather_city_stats", time.Since(queryStart), err)
	if err != nil {
		return nil, newStorageError("stats", "weather_city_stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.CityStats
		if err := rows.Scan(&c.CityName, &c.RecordCount, &c.AvgTemperature, &c.LastUpdate); err != nil {
			return nil, newStorageError("stats", "weather_city_stats", err)
		}
		stats.Cities = append(stats.Cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("stats", "weather_city_stats", err)
	}

	return stats, nil
}

func (db *DB) queryReadings(ctx context.Context, query string, args ...interface{}) ([]models.WeatherReading, error) {
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), args...)
	metrics.RecordDBQuery("SELECT", "weather_data", time.Since(queryStart), err)
	if err != nil {
		return nil, newStorageError("select", "weather_data", err)
	}
	defer rows.Close()

	readings := []models.WeatherReading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, newStorageError("scan", "weather_data", err)
		}
		readings = append(readings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("select", "weather_data", err)
	}
	return readings, nil
}

func scanReading(rows *sql.Rows) (*models.WeatherReading, error) {
	var (
		r                                     models.WeatherReading
		country, main, desc, icon, tCat, hCat sql.NullString
		temp, heat                            sql.NullFloat64
		pressure, humidity                    sql.NullInt64
		extracted, processed, created         sql.NullTime
	)

	err := rows.Scan(&r.ID,
		&r.CityID, &r.CityName, &country, &r.Latitude, &r.Longitude,
		&temp, &r.TemperatureFeelsLike, &r.TemperatureMin, &r.TemperatureMax,
		&pressure, &humidity, &r.SeaLevelPressure, &r.GroundLevelPressure,
		&main, &desc, &icon,
		&r.WindSpeed, &r.WindDirection, &r.WindGust, &r.Cloudiness, &r.Visibility,
		&r.DataTimestamp, &r.Sunrise, &r.Sunset, &extracted, &processed, &r.TimezoneOffset,
		&heat, &tCat, &hCat,
		&created)
	if err != nil {
		return nil, err
	}

	r.CountryCode = country.String
	r.Temperature = temp.Float64
	r.Pressure = int(pressure.Int64)
	r.Humidity = int(humidity.Int64)
	r.WeatherMain = main.String
	r.WeatherDescription = desc.String
	r.WeatherIcon = icon.String
	r.ExtractedAt = extracted.Time
	r.ProcessedAt = processed.Time
	r.HeatIndex = heat.Float64
	r.TemperatureCategory = tCat.String
	r.HumidityCategory = hCat.String
	r.CreatedAt = created.Time

	return &r, nil
}

// likePattern wraps s in % after escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
