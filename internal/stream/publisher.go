// Package stream publishes stored readings to a Redis stream for downstream
// consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"weatheretl/internal/config"
	"weatheretl/internal/models"
)

// Publisher receives every reading after it has been stored.
type Publisher interface {
	Publish(ctx context.Context, reading *models.WeatherReading) error
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type RedisPublisher struct {
	client streamAdder
	stream string
	closer func() error
}

// NewRedisPublisher connects to Redis and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisPublisher{client: client, stream: cfg.Stream, closer: client.Close}, nil
}

// Publish appends the reading as JSON under the "data" field.
func (p *RedisPublisher) Publish(ctx context.Context, reading *models.WeatherReading) error {
	values, err := encode(reading)
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s to redis stream %s: %w", reading.CityName, p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func encode(reading *models.WeatherReading) (map[string]interface{}, error) {
	data, err := json.Marshal(reading)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize reading for %s: %w", reading.CityName, err)
	}
	return map[string]interface{}{
		"city": reading.CityName,
		"data": string(data),
	}, nil
}
