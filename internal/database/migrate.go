package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"weatheretl/internal/logger"
)

const migrationsTable = "schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema for driver up to date. It uses its own
// connection because closing a migrate instance closes the pool it was
// given.
func Migrate(driver, dsn string) error {
	if _, err := dialectFor(driver); err != nil {
		return err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}
	defer conn.Close()

	m, err := newMigrate(conn, driver)
	if err != nil {
		return err
	}
	defer m.Close()

	logger.Infof("applying %s migrations", driver)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed (%s): %w", driver, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Infof("schema at version %d (dirty=%t)", version, dirty)
	return nil
}

func newMigrate(conn *sql.DB, driver string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source for %s: %w", driver, err)
	}

	var target migratedb.Driver
	switch driver {
	case DriverPostgres:
		target, err = postgres.WithInstance(conn, &postgres.Config{MigrationsTable: migrationsTable})
	case DriverMySQL:
		target, err = mysql.WithInstance(conn, &mysql.Config{MigrationsTable: migrationsTable})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
