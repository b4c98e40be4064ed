// Package database provides database setup, models, and data access layer (Store).
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
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/tutorbot/tutorbot/migrations"

	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	_ "modernc.org/sqlite"             //revive:disable:blank-imports
)

// Dialect identifies the SQL backend behind a connection URL.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFromURL picks Postgres for postgres:// URLs and SQLite for anything
// else, which is treated as a file path.
func DialectFromURL(dbURL string) Dialect {
	lower := strings.ToLower(dbURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// NewDB initializes, applies migrations, and returns a new database connection pool.
// dbURL is either a postgres:// URL or a path to the SQLite database file.
func NewDB(dbURL string, maxOpenConns int) (*sqlx.DB, error) {
	dialect := DialectFromURL(dbURL)
	dsn := dbURL
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dbURL)
	}

	db, err := sqlx.Connect(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// SQLite doesn't support concurrent writes
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB, dialect); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "dialect", dialect, "database", redactURL(dbURL))
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

// ApplyMigrations runs the embedded migrations for dialect.
func ApplyMigrations(db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	slog.Info("Applying database migrations...", "dialect", dialect)

	sourceDriver, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case DialectPostgres:
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		dbDriver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", dialect, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
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

// sqliteDSN enables foreign keys and a busy timeout unless the path already
// sets pragmas of its own.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// redactURL hides the password of a connection URL for logging.
func redactURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	return u.Redacted()
}
