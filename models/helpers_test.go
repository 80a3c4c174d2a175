package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventconnect/pkg/db/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.ConnectAndMigrate(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, username string) *User {
	t.Helper()
	user, err := NewUserService(db).Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func createTribe(t *testing.T, db *sql.DB, ownerID int64, name string, private bool) *Tribe {
	t.Helper()
	tribe, err := NewTribeService(db).Create(context.Background(), ownerID, CreateTribeRequest{
		Name:      name,
		Category:  "outdoors",
		IsPrivate: private,
	})
	require.NoError(t, err)
	return tribe
}

func float64Ptr(v float64) *float64 {
	return &v
}

func eventRequest(title string, lat, lng float64, startsIn time.Duration) CreateEventRequest {
	return CreateEventRequest{
		Title:    title,
		Category: "music",
		StartsAt: time.Now().UTC().Add(startsIn),
		Lat:      float64Ptr(lat),
		Lng:      float64Ptr(lng),
	}
}

func createEvent(t *testing.T, db *sql.DB, hostID int64, req CreateEventRequest) *Event {
	t.Helper()
	event, err := NewEventService(db).Create(context.Background(), hostID, req)
	require.NoError(t, err)
	return event
}
