package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/internal/models"
)

func reading(city string, temp float64, humidity int, observed time.Time) models.WeatherReading {
	return models.WeatherReading{
		CityName:      city,
		CountryCode:   "BR",
		Temperature:   temp,
		Humidity:      humidity,
		DataTimestamp: &observed,
	}
}

func TestMemoryStore_CleanupRetention(t *testing.T) {
	store := NewMemoryStore()
	store.SetNow(func() time.Time { return fixedNow })
	ctx := context.Background()

	ages := []time.Duration{
		0,
		29 * 24 * time.Hour,
		30*24*time.Hour - time.Second,
		30 * 24 * time.Hour, // exactly at the cutoff: kept
		30*24*time.Hour + time.Second,
		45 * 24 * time.Hour,
		400 * 24 * time.Hour,
	}
	for i, age := range ages {
		store.AddReading(reading("City", float64(i), 50, fixedNow), fixedNow.Add(-age))
	}

	deleted, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	remaining := store.Readings()
	require.Len(t, remaining, 4)
	cutoff := fixedNow.AddDate(0, 0, -30)
	for _, r := range remaining {
		assert.False(t, r.CreatedAt.Before(cutoff), "reading created %v should have been deleted", r.CreatedAt)
	}

	runs := store.Runs()
	require.Len(t, runs, 1)
	assert.True(t, runs[0].IsCleanup())
	assert.Equal(t, -3, runs[0].RecordsInserted)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)

	// nothing left to delete still writes an audit row
	deleted, err = store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.Runs(), 2)
}

func TestMemoryStore_RunLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.RecordRunStart(ctx, "etl_1", fixedNow))
	run, err := store.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Nil(t, run.EndTime)

	end := fixedNow.Add(time.Minute)
	require.NoError(t, store.RecordRunEnd(ctx, &models.RunLog{
		ExecutionID: "etl_1", EndTime: &end, Status: models.RunStatusSuccess,
		CitiesProcessed: 3, RecordsInserted: 2,
	}))

	// cleanup rows are not runs
	_, err = store.Cleanup(ctx, 30)
	require.NoError(t, err)

	run, err = store.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "etl_1", run.ExecutionID)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.RecordsInserted)
}

func TestMemoryStore_Queries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		store.AddReading(reading("São Paulo", 20+float64(i), 60, fixedNow.Add(time.Duration(i)*time.Hour)), fixedNow)
	}
	store.AddReading(reading("Curitiba", 12, 80, fixedNow.Add(10*time.Hour)), fixedNow)

	latest, err := store.LatestReading(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Curitiba", latest.CityName)

	latest, err = store.LatestReading(ctx, "PAULO")
	require.NoError(t, err)
	assert.Equal(t, 27.0, latest.Temperature)

	none, err := store.LatestReading(ctx, "Manaus")
	require.NoError(t, err)
	assert.Nil(t, none)

	byCity, err := store.ReadingsByCity(ctx, "são", 5)
	require.NoError(t, err)
	require.Len(t, byCity, 5)
	for i := 1; i < len(byCity); i++ {
		assert.False(t, byCity[i].DataTimestamp.After(*byCity[i-1].DataTimestamp), "results not newest first")
	}

	cities, err := store.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Curitiba", "São Paulo"}, cities)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.TotalCities)
	assert.Equal(t, 12.0, *stats.MinTemperature)
	assert.Equal(t, 27.0, *stats.MaxTemperature)
	assert.Equal(t, "São Paulo", stats.Cities[0].CityName)
	assert.Equal(t, 23.5, *stats.Cities[0].AvgTemperature)
	assert.Equal(t, fixedNow, *stats.OldestRecord)
}

func TestMemoryStore_InjectedErrors(t *testing.T) {
	store := NewMemoryStore()
	store.InsertErr = errors.New("connection refused")

	r := reading("X", 1, 1, fixedNow)
	err := store.InsertReading(context.Background(), &r)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Empty(t, store.Readings())
}

func TestMemoryStore_MissingTimestampSortsLast(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	undated := reading("Recife", 30, 70, fixedNow)
	undated.DataTimestamp = nil
	store.AddReading(undated, fixedNow)
	store.AddReading(reading("Recife", 28, 70, fixedNow.Add(-time.Hour)), fixedNow)

	latest, err := store.LatestReading(ctx, "recife")
	require.NoError(t, err)
	require.NotNil(t, latest.DataTimestamp)
	assert.Equal(t, 28.0, latest.Temperature)

	all, err := store.ReadingsByCity(ctx, "recife", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[1].DataTimestamp)
}
