package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"weatheretl/internal/config"
	"weatheretl/internal/database"
	"weatheretl/internal/logger"
	"weatheretl/internal/models"
	"weatheretl/internal/transform"
)

// seed file columns, in order
var header = []string{"city", "country", "temperature", "humidity", "pressure", "weather_main", "description", "observed_at"}

func main() {
	csvPath := flag.String("file", "readings_seed.csv", "CSV file with sample readings")
	flag.Parse()

	if _, err := config.Load(config.Path()); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Get()
	logger.SetLogLevel(cfg.LogLevel)

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	file, err := os.Open(*csvPath)
	if err != nil {
		logger.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	count, skipped, err := load(context.Background(), file, transform.NewTransformer(), db)
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", *csvPath, err)
	}
	logger.Infof("Import complete! Successfully inserted %d readings, skipped %d", count, skipped)
}

type inserter interface {
	InsertReading(ctx context.Context, r *models.WeatherReading) error
}

// load reads seed rows from r, runs each through the transformer and inserts
// it. Invalid rows are logged and skipped.
func load(ctx context.Context, r io.Reader, t *transform.Transformer, store inserter) (count, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if strings.Join(first, ",") != strings.Join(header, ",") {
		return 0, 0, fmt.Errorf("unexpected CSV header %v, want %v", first, header)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return count, skipped, fmt.Errorf("failed to read CSV record: %w", err)
		}

		raw, err := parseRecord(record)
		if err != nil {
			logger.Warnf("Skipping line %d: %v", line, err)
			skipped++
			continue
		}

		reading, err := t.Transform(raw)
		if err != nil {
			logger.Warnf("Skipping line %d: %v", line, err)
			skipped++
			continue
		}

		if err := store.InsertReading(ctx, reading); err != nil {
			logger.Warnf("Failed to insert reading for %s: %v", reading.CityName, err)
			skipped++
			continue
		}

		count++
		if count%100 == 0 {
			logger.Infof("Inserted %d readings...", count)
		}
	}
	return count, skipped, nil
}

func parseRecord(record []string) (*models.RawWeather, error) {
	if len(record) != len(header) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(header), len(record))
	}

	temp, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid temperature %q", record[2])
	}
	humidity, err := strconv.Atoi(record[3])
	if err != nil {
		return nil, fmt.Errorf("invalid humidity %q", record[3])
	}
	pressure, err := strconv.Atoi(record[4])
	if err != nil {
		return nil, fmt.Errorf("invalid pressure %q", record[4])
	}
	observed, err := time.Parse(time.RFC3339, record[7])
	if err != nil {
		return nil, fmt.Errorf("invalid observed_at %q", record[7])
	}
	dt := observed.Unix()

	return &models.RawWeather{
		Name:    record[0],
		Sys:     &models.RawSys{Country: record[1]},
		Main:    &models.RawMain{Temp: &temp, Humidity: &humidity, Pressure: &pressure},
		Weather: []models.RawCondition{{Main: record[5], Description: record[6]}},
		Dt:      &dt,
		// seeded rows were extracted when they were observed
		ExtractedAt: observed.UTC(),
	}, nil
}
