package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	ModeOnce     = "once"
	ModeSchedule = "schedule"
)

var (
	instance *Config
	loadErr  error
	once     sync.Once

	validate = validator.New()
)

type ProviderConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	CountryCode string        `yaml:"country_code" validate:"required"`
	Lang        string        `yaml:"lang"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ETLConfig struct {
	Mode            string        `yaml:"mode" validate:"oneof=once schedule"`
	Cities          []string      `yaml:"cities" validate:"min=1,dive,required"`
	IntervalMinutes int           `yaml:"interval_minutes" validate:"gt=0"`
	Cron            string        `yaml:"cron"`
	CleanupDays     int           `yaml:"cleanup_days" validate:"gt=0"`
	CityPause       time.Duration `yaml:"city_pause" validate:"gte=0"`
	MetricsAddr     string        `yaml:"metrics_addr"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config is the process configuration: YAML file first, environment on top.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Provider ProviderConfig `yaml:"provider"`
	ETL      ETLConfig      `yaml:"etl"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		Provider: ProviderConfig{
			BaseURL:     "https://api.openweathermap.org/data/2.5/weather",
			CountryCode: "BR",
			Lang:        "pt_br",
			Timeout:     30 * time.Second,
		},
		ETL: ETLConfig{
			Mode:            ModeSchedule,
			Cities:          []string{"São Paulo", "Rio de Janeiro", "Belo Horizonte"},
			IntervalMinutes: 60,
			CleanupDays:     30,
			CityPause:       time.Second,
			MetricsAddr:     ":9100",
		},
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Name:     "weather_db",
			User:     "postgres",
			Password: "postgres",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Stream: "weather_readings",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// Load parses the configuration once per process. Later calls return the
// first result.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		instance, loadErr = Parse(configPath)
	})
	return instance, loadErr
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Parse builds a Config from defaults, the optional YAML file at configPath,
// a .env file in the working directory and the process environment.
func Parse(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Provider.APIKey = getEnv("OPENWEATHER_API_KEY", c.Provider.APIKey)
	c.Provider.BaseURL = getEnv("OPENWEATHER_BASE_URL", c.Provider.BaseURL)
	c.Provider.CountryCode = getEnv("COUNTRY_CODE", c.Provider.CountryCode)
	c.Provider.Lang = getEnv("OPENWEATHER_LANG", c.Provider.Lang)

	var err error
	if c.Provider.Timeout, err = getEnvDuration("REQUEST_TIMEOUT", c.Provider.Timeout); err != nil {
		return err
	}

	c.ETL.Mode = strings.ToLower(getEnv("ETL_MODE", c.ETL.Mode))
	if cities := os.Getenv("CITIES"); cities != "" {
		c.ETL.Cities = SplitCities(cities)
	}
	if c.ETL.IntervalMinutes, err = getEnvInt("SCHEDULE_INTERVAL_MINUTES", c.ETL.IntervalMinutes); err != nil {
		return err
	}
	c.ETL.Cron = getEnv("SCHEDULE_CRON", c.ETL.Cron)
	if c.ETL.CleanupDays, err = getEnvInt("CLEANUP_DAYS", c.ETL.CleanupDays); err != nil {
		return err
	}
	if c.ETL.CityPause, err = getEnvDuration("CITY_PAUSE", c.ETL.CityPause); err != nil {
		return err
	}
	c.ETL.MetricsAddr = getEnv("METRICS_ADDR", c.ETL.MetricsAddr)

	if err := c.Database.applyEnv(); err != nil {
		return err
	}
	if err := c.Redis.applyEnv(); err != nil {
		return err
	}

	c.Server.Addr = getEnv("API_ADDR", c.Server.Addr)
	return nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.ETL.Cron != "" {
		if _, err := cron.ParseStandard(c.ETL.Cron); err != nil {
			return fmt.Errorf("invalid etl.cron %q: %w", c.ETL.Cron, err)
		}
	}
	return nil
}

// ValidateForETL checks the settings only the ETL process needs.
func (c *Config) ValidateForETL() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("OPENWEATHER_API_KEY is required")
	}
	return nil
}

// Path returns CONFIG_PATH, or ./config.yaml when it is unset.
func Path() string {
	return getEnv("CONFIG_PATH", "./config.yaml")
}

// Interval is the fixed schedule period.
func (c *ETLConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// SplitCities parses a comma-separated city list, dropping blanks.
func SplitCities(s string) []string {
	var cities []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cities = append(cities, c)
		}
	}
	return cities
}
