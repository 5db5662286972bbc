package config

import (
	"fmt"
	"net/url"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=postgres mysql"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	URL      string `yaml:"dsn"`
}

func (d *DatabaseConfig) applyEnv() error {
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnv("DB_PORT", d.Port)
	d.Name = getEnv("DB_NAME", d.Name)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.SSLMode = getEnv("DB_SSLMODE", d.SSLMode)
	d.URL = getEnv("DATABASE_DSN", d.URL)
	return nil
}

// DSN returns the connection string for the configured driver.
// DATABASE_DSN wins when set. MySQL connections need multiStatements for the
// migrations that create the cleanup routine.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	port := d.Port
	switch d.Driver {
	case DriverMySQL:
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&multiStatements=true",
			d.User, d.Password, d.Host, port, d.Name)
	default:
		if port == "" {
			port = "5432"
		}
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%s", d.Host, port),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=" + sslMode,
		}
		return u.String()
	}
}
