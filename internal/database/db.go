// Package database provides database setup, models, and the data access
// layer (Store) for conversation history.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/askbot/migrations"

	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	_ "modernc.org/sqlite"             //revive:disable:blank-imports
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DriverFor picks the SQL driver for a connection string. PostgreSQL URLs
// use pgx, anything else is treated as an SQLite file path.
func DriverFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// NewDB opens the database named by dsn, applies migrations, and returns
// the connection pool.
func NewDB(dsn string) (*sqlx.DB, error) {
	driver := DriverFor(dsn)

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite doesn't support concurrent writes, so max open conns = 1
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := ApplyMigrations(db.DB, driver, dsn); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "driver", driver)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// ApplyMigrations runs the embedded migrations for the given driver.
func ApplyMigrations(db *sql.DB, driver, dsn string) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	var (
		dir      string
		dbName   string
		dbDriver database.Driver
		err      error
	)
	switch driver {
	case DriverSQLite:
		dir = migrations.SQLiteDir
		dbName = ExtractDBNameFromPath(dsn)
		if dbName == "" {
			return errors.New("database name/path for migration driver is empty")
		}
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		dir = migrations.PostgresDir
		dbName = "postgres"
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", driver, err)
	}

	slog.Info("Applying database migrations...", "driver", driver, "database_name", dbName)

	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied successfully.")
	return nil
}

// ExtractDBNameFromPath extracts the database file path from a possibly URL-formatted path.
// This handles both simple file paths and paths with URL-style encoding.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}

	return path
}
