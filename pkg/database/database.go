package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JoelGresham/teamPoll/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// Open connects to the store selected by DB_DRIVER and verifies the connection.
func Open(cfg *config.Config) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}

	var db *sql.DB
	switch dialect {
	case Postgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		db, err = OpenPostgres(dsn)
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		db, err = OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Connection pool settings
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := HealthCheck(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a file or ":memory:" database. A single connection is kept so
// in-memory databases survive for the lifetime of the pool and writes never contend.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := HealthCheck(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func HealthCheck(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
