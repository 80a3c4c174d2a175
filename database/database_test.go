package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventconnect/pkg/db/sqlite"
)

func TestInitDBAndConstraintHelpers(t *testing.T) {
	require.NoError(t, InitDB(sqlite.MemoryPath))
	t.Cleanup(func() { Close() })

	require.NoError(t, Ping(context.Background()))

	now := time.Now().UTC()
	insert := func(username, email string) error {
		_, err := DB.Exec(`INSERT INTO users (username, email, password_hash, created_at, updated_at) VALUES (?, ?, 'x', ?, ?)`,
			username, email, now, now)
		return err
	}

	require.NoError(t, insert("alice", "alice@example.com"))

	err := insert("ALICE", "other@example.com")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "usernames are case-insensitive unique")

	_, err = DB.Exec(`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES ('t', 999, ?, ?)`, now, now)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}

func TestPingWithoutDB(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()
	assert.Error(t, Ping(context.Background()))
}

func TestNullInt64RoundTrip(t *testing.T) {
	assert.False(t, NullInt64(nil).Valid)
	assert.Nil(t, Int64Ptr(sql.NullInt64{}))

	id := int64(42)
	n := NullInt64(&id)
	assert.Equal(t, sql.NullInt64{Int64: 42, Valid: true}, n)
	assert.Equal(t, int64(42), *Int64Ptr(n))
}
