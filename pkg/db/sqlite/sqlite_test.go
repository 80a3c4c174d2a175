package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndMigrateInMemory(t *testing.T) {
	db, err := ConnectAndMigrate(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "sessions", "tribes", "events", "posts", "chats", "messages", "notifications", "reviews"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := ConnectAndMigrate(path)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Close())

	db, err = ConnectAndMigrate(path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("SELECT version FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestMigrateDown(t *testing.T) {
	db, err := ConnectAndMigrate(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateDown(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'").Scan(&count))
	assert.Zero(t, count)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_foreign_keys=on&_busy_timeout=5000", dsn(MemoryPath))
	assert.Equal(t, "file:./app.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn("./app.db"))
	assert.Equal(t, "file:app.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn("file:app.db?cache=shared"))
}
