package api

import (
	"context"
	"fmt"

	"weatheretl/internal/models"
)

// Provider fetches the current conditions for one city.
type Provider interface {
	GetCurrentWeather(ctx context.Context, city string) (*models.RawWeather, error)
}

// ProviderError is returned for any failure reaching the weather source:
// transport errors, non-200 responses, undecodable or incomplete bodies.
type ProviderError struct {
	City       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error for %s: status %d: %v", e.City, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error for %s: %v", e.City, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
