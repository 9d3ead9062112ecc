package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JoelGresham/teamPoll/internal/repository"
	"github.com/JoelGresham/teamPoll/pkg/database"
)

// NewSQLiteDB returns a migrated in-memory database that is closed when the test ends.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.Migrate(db, database.SQLite))
	return db
}

// NewRepositories builds both stores over a fresh in-memory database.
func NewRepositories(t *testing.T) (repository.PollRepository, repository.ResponseRepository, *sql.DB) {
	t.Helper()

	db := NewSQLiteDB(t)
	return repository.NewPollRepository(db, database.SQLite),
		repository.NewResponseRepository(db, database.SQLite),
		db
}
