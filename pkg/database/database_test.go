package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JoelGresham/teamPoll/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestOpenSQLiteFile(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "nested", "polls.db"),
	}

	db, dialect, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, SQLite, dialect)
	assert.NoError(t, HealthCheck(context.Background(), db))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestHealthCheckNil(t *testing.T) {
	assert.Error(t, HealthCheck(context.Background(), nil))
}
