package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbpkg "github.com/JoelGresham/teamPoll/pkg/database"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// newMigrator builds a migrator for the dialect over an existing pool.
// The returned instance must not be closed: closing it closes db.
func newMigrator(db *sql.DB, dialect dbpkg.Dialect) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch dialect {
	case dbpkg.Postgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
		dir = "migrations/postgres"
	case dbpkg.SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
		dir = "migrations/sqlite"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s driver: %w", dialect, err)
	}

	source, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Migrate applies all pending migrations. Already applied migrations are skipped.
func Migrate(db *sql.DB, dialect dbpkg.Dialect) error {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back every migration. All poll data is lost.
func MigrateDown(db *sql.DB, dialect dbpkg.Dialect) error {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the applied version. A fresh database reports 0.
func MigrationVersion(db *sql.DB, dialect dbpkg.Dialect) (uint, bool, error) {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
