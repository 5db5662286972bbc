package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"weatheretl/internal/logger"
	"weatheretl/internal/models"
	"weatheretl/internal/pipeline"
)

const defaultLimit = 10

var validate = validator.New()

type byCityQuery struct {
	City  string `validate:"required"`
	Limit int    `validate:"min=1,max=100"`
}

type healthResponse struct {
	Status            string         `json:"status"`
	Timestamp         time.Time      `json:"timestamp"`
	DatabaseConnected bool           `json:"database_connected"`
	Version           string         `json:"version"`
	LastRun           *models.RunLog `json:"last_run,omitempty"`
	LastRunRecent     *bool          `json:"last_run_recent,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s", r.URL.Path))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Weather ETL API",
		"version": Version,
		"docs":    "/docs",
		"health":  "/health",
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": Version,
		"endpoints": map[string]string{
			"GET /health":          "store connectivity and the last ETL run",
			"GET /weather/latest":  "most recent reading, optional ?city=",
			"GET /weather/by_city": "readings for ?city=, newest first, ?limit=1..100 (default 10)",
			"GET /weather/cities":  "distinct city names",
			"GET /weather/stats":   "overall and per-city aggregates",
			"GET /metrics":         "Prometheus metrics",
		},
	})
}

// handleHealth returns 503 when the store cannot be reached
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: now,
		Version:   Version,
	}

	if err := s.store.Ping(r.Context()); err != nil {
		logger.Warnf("Health check failed: %v", err)
		resp.Status = "unhealthy"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.DatabaseConnected = true

	run, err := s.store.LastRun(r.Context())
	if err != nil {
		logger.Warnf("Health check could not read the run log: %v", err)
	} else if run != nil {
		recent := pipeline.RunIsRecent(run, now)
		resp.LastRun = run
		resp.LastRunRecent = &recent
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))

	reading, err := s.store.LatestReading(r.Context(), city)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if reading == nil {
		detail := "no weather data found"
		if city != "" {
			detail += " for " + city
		}
		s.writeError(w, http.StatusNotFound, detail)
		return
	}

	s.writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleByCity(w http.ResponseWriter, r *http.Request) {
	q := byCityQuery{
		City:  strings.TrimSpace(r.URL.Query().Get("city")),
		Limit: defaultLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer, got %q", raw))
			return
		}
		q.Limit = limit
	}
	if err := validate.Struct(q); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	readings, err := s.store.ReadingsByCity(r.Context(), q.City, q.Limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if len(readings) == 0 {
		s.writeError(w, http.StatusNotFound, "no weather data found for "+q.City)
		return
	}

	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.store.Cities(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cities": cities,
		"count":  len(cities),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if stats.Cities == nil {
		stats.Cities = []models.CityStats{}
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
