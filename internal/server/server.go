// Package server exposes stored readings through a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weatheretl/internal/logger"
	"weatheretl/internal/models"
)

const Version = "1.0.0"

// Store is the read side of the repository.
type Store interface {
	Ping(ctx context.Context) error
	LastRun(ctx context.Context) (*models.RunLog, error)
	LatestReading(ctx context.Context, city string) (*models.WeatherReading, error)
	ReadingsByCity(ctx context.Context, city string, limit int) ([]models.WeatherReading, error)
	Cities(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.WeatherStats, error)
}

// Server represents the HTTP server
type Server struct {
	store Store
	mux   *http.ServeMux
	now   func() time.Time
}

// NewServer creates a new HTTP server
func NewServer(store Store) *Server {
	s := &Server{
		store: store,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}

	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/docs", s.handleDocs)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/weather/latest", s.handleLatest)
	s.mux.HandleFunc("/weather/by_city", s.handleByCity)
	s.mux.HandleFunc("/weather/cities", s.handleCities)
	s.mux.HandleFunc("/weather/stats", s.handleStats)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the routes wrapped in CORS and method checks.
func (s *Server) Handler() http.Handler {
	return withCORS(readOnly(s.mux))
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Query API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Detail:    detail,
		Timestamp: s.now().UTC(),
	})
}

// internalError logs the cause and hides it from the client.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD, OPTIONS")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(errorResponse{
				Error:     http.StatusText(http.StatusMethodNotAllowed),
				Detail:    "method " + r.Method + " not allowed",
				Timestamp: time.Now().UTC(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
