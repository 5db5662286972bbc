package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"weatheretl/internal/config"
	"weatheretl/internal/logger"
	"weatheretl/internal/metrics"
	"weatheretl/internal/models"
)

const (
	breakerFailures = 5
	breakerCooldown = time.Minute
	maxErrorBody    = 512
)

// OpenWeatherClient is a client for the OpenWeatherMap current weather API.
// Calls are never retried; after repeated server or transport failures the
// breaker opens and calls fail fast until it cools down.
type OpenWeatherClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	baseURL     string
	apiKey      string
	countryCode string
	lang        string
	now         func() time.Time
}

// NewOpenWeatherClient creates a client from the provider settings.
func NewOpenWeatherClient(cfg config.ProviderConfig) *OpenWeatherClient {
	return &OpenWeatherClient{
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweather",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		countryCode: cfg.CountryCode,
		lang:        cfg.Lang,
		now:         time.Now,
	}
}

// BuildURL builds the request URL for a city, e.g.
// ...?appid=KEY&lang=pt_br&q=Recife%2CBR&units=metric
func (c *OpenWeatherClient) BuildURL(city string) string {
	q := city
	if c.countryCode != "" {
		q = fmt.Sprintf("%s,%s", city, c.countryCode)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if c.lang != "" {
		params.Set("lang", c.lang)
	}

	return c.baseURL + "?" + params.Encode()
}

// GetCurrentWeather fetches current conditions for city and stamps the
// extraction time. Every failure is a *ProviderError.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, city string) (*models.RawWeather, error) {
	var clientErr error

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := c.fetch(ctx, city)
		var pe *ProviderError
		// 4xx means a bad city or key, not an unhealthy provider
		if errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 {
			clientErr = err
			return nil, nil
		}
		return raw, err
	})
	if clientErr != nil {
		err = clientErr
	}
	metrics.RecordProviderRequest(time.Since(start), err)

	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		// breaker open or half-open limit
		return nil, &ProviderError{City: city, Err: err}
	}

	return result.(*models.RawWeather), nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, city string) (*models.RawWeather, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(city), nil)
	if err != nil {
		return nil, &ProviderError{City: city, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{City: city, Err: fmt.Errorf("failed to fetch weather: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{
			City:       city,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error, body: %s", string(body)),
		}
	}

	var raw models.RawWeather
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ProviderError{City: city, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if raw.Main == nil {
		return nil, &ProviderError{City: city, Err: errors.New("response has no 'main' section")}
	}

	raw.ExtractedAt = c.now().UTC()
	logger.Debugf("fetched weather for %s", city)

	return &raw, nil
}
