package database

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"weatheretl/internal/models"
)

// MemoryStore is an in-memory stand-in for DB with the same semantics. The
// exported *Err fields inject failures.
type MemoryStore struct {
	mu       sync.Mutex
	readings []models.WeatherReading
	runs     []models.RunLog
	nextID   int64
	now      func() time.Time

	PingErr     error
	InsertErr   error
	RunStartErr error
	RunEndErr   error
	CleanupErr  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetNow replaces the clock used for created_at and cleanup cutoffs.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MemoryStore) InsertReading(ctx context.Context, r *models.WeatherReading) error {
	if m.InsertErr != nil {
		return newStorageError("insert", "weather_data", m.InsertErr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = m.now().UTC()
	m.readings = append(m.readings, *r)
	return nil
}

// AddReading stores r with a fixed created_at, for seeding fixtures.
func (m *MemoryStore) AddReading(r models.WeatherReading, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = createdAt
	m.readings = append(m.readings, r)
}

func (m *MemoryStore) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if m.CleanupErr != nil {
		return 0, newStorageError("cleanup", "weather_data", m.CleanupErr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays)

	kept := m.readings[:0]
	var deleted int64
	for _, r := range m.readings {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.readings = kept

	m.runs = append(m.runs, models.RunLog{
		ID:              int64(len(m.runs) + 1),
		ExecutionID:     models.NewExecutionID(models.CleanupPrefix, now),
		StartTime:       now,
		EndTime:         &now,
		Status:          models.RunStatusSuccess,
		RecordsInserted: int(-deleted),
	})
	return deleted, nil
}

func (m *MemoryStore) RecordRunStart(ctx context.Context, executionID string, startedAt time.Time) error {
	if m.RunStartErr != nil {
		return newStorageError("run start", "etl_logs", m.RunStartErr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, models.RunLog{
		ID:          int64(len(m.runs) + 1),
		ExecutionID: executionID,
		StartTime:   startedAt.UTC(),
		Status:      models.RunStatusRunning,
	})
	return nil
}

func (m *MemoryStore) RecordRunEnd(ctx context.Context, run *models.RunLog) error {
	if m.RunEndErr != nil {
		return newStorageError("run end", "etl_logs", m.RunEndErr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ExecutionID != run.ExecutionID {
			continue
		}
		m.runs[i].EndTime = run.EndTime
		m.runs[i].Status = run.Status
		m.runs[i].CitiesProcessed = run.CitiesProcessed
		m.runs[i].RecordsInserted = run.RecordsInserted
		m.runs[i].ErrorMessage = run.ErrorMessage
	}
	return nil
}

func (m *MemoryStore) LastRun(ctx context.Context) (*models.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.runs) - 1; i >= 0; i-- {
		if !m.runs[i].IsCleanup() {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) LatestReading(ctx context.Context, city string) (*models.WeatherReading, error) {
	readings, err := m.ReadingsByCity(ctx, city, 1)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

func (m *MemoryStore) ReadingsByCity(ctx context.Context, city string, limit int) ([]models.WeatherReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(city)
	matched := []models.WeatherReading{}
	for _, r := range m.readings {
		if strings.Contains(strings.ToLower(r.CityName), needle) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		ti, tj := observedAt(matched[i]), observedAt(matched[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].ID > matched[j].ID
	})

	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryStore) Cities(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	cities := []string{}
	for _, r := range m.readings {
		if !seen[r.CityName] {
			seen[r.CityName] = true
			cities = append(cities, r.CityName)
		}
	}
	sort.Strings(cities)
	return cities, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*models.WeatherStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &models.WeatherStats{Cities: []models.CityStats{}}
	if len(m.readings) == 0 {
		return stats, nil
	}

	type acc struct {
		count int64
		sum   float64
		last  *time.Time
	}
	perCity := map[string]*acc{}

	o := &stats.StatsOverview
	var sumTemp, sumHum float64
	minT, maxT := m.readings[0].Temperature, m.readings[0].Temperature
	for _, r := range m.readings {
		o.TotalRecords++
		sumTemp += r.Temperature
		sumHum += float64(r.Humidity)
		if r.Temperature < minT {
			minT = r.Temperature
		}
		if r.Temperature > maxT {
			maxT = r.Temperature
		}
		if ts := r.DataTimestamp; ts != nil {
			if o.OldestRecord == nil || ts.Before(*o.OldestRecord) {
				o.OldestRecord = ts
			}
			if o.NewestRecord == nil || ts.After(*o.NewestRecord) {
				o.NewestRecord = ts
			}
		}

		a, ok := perCity[r.CityName]
		if !ok {
			a = &acc{}
			perCity[r.CityName] = a
		}
		a.count++
		a.sum += r.Temperature
		if ts := r.DataTimestamp; ts != nil && (a.last == nil || ts.After(*a.last)) {
			a.last = ts
		}
	}

	n := float64(o.TotalRecords)
	avgT, avgH := round2(sumTemp/n), round2(sumHum/n)
	o.TotalCities = int64(len(perCity))
	o.AvgTemperature, o.AvgHumidity = &avgT, &avgH
	o.MinTemperature, o.MaxTemperature = &minT, &maxT

	for name, a := range perCity {
		avg := round2(a.sum / float64(a.count))
		stats.Cities = append(stats.Cities, models.CityStats{
			CityName: name, RecordCount: a.count, AvgTemperature: &avg, LastUpdate: a.last,
		})
	}
	sort.Slice(stats.Cities, func(i, j int) bool {
		if stats.Cities[i].RecordCount != stats.Cities[j].RecordCount {
			return stats.Cities[i].RecordCount > stats.Cities[j].RecordCount
		}
		return stats.Cities[i].CityName < stats.Cities[j].CityName
	})

	return stats, nil
}

// Readings returns a copy of the stored readings in insertion order.
func (m *MemoryStore) Readings() []models.WeatherReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WeatherReading(nil), m.readings...)
}

// Runs returns a copy of the run log rows in insertion order.
func (m *MemoryStore) Runs() []models.RunLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RunLog(nil), m.runs...)
}

func observedAt(r models.WeatherReading) time.Time {
	if r.DataTimestamp != nil {
		return *r.DataTimestamp
	}
	return time.Time{}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
