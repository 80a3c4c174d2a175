package models

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eventconnect/pkg/errors"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var errDiskIO = errors.New("disk I/O error")

func TestStorageFailuresBecomeInternalErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unread count", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notifications").WithArgs(int64(4)).WillReturnError(errDiskIO)

		_, err := NewNotificationService(db).GetUnreadCount(ctx, 4)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
		assert.ErrorIs(t, err, errDiskIO)
	})

	t.Run("session lookup", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT user_id, expires_at FROM sessions").WithArgs("tok").WillReturnError(errDiskIO)

		_, err := NewSessionService(db, 0).Resolve(ctx, "tok")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
	})

	t.Run("mark all read", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE notifications SET is_read = TRUE").WithArgs(int64(2)).WillReturnError(errDiskIO)

		_, err := NewNotificationService(db).MarkAllAsRead(ctx, 2)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
	})
}

func TestDeleteOldNotificationsReportsRows(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("DELETE FROM notifications WHERE created_at < \\?").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := NewNotificationService(db).DeleteOldNotifications(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestEmptySessionTokenSkipsStorage(t *testing.T) {
	db, _ := setupMockDB(t)
	userID, err := NewSessionService(db, 0).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, userID)
}

func TestNotificationLimitIsClamped(t *testing.T) {
	db, mock := setupMockDB(t)
	cols := []string{"id", "user_id", "type", "title", "message", "related_id", "related_type", "actor_id", "is_read", "created_at"}
	mock.ExpectQuery("FROM notifications").WithArgs(int64(3), maxPageSize).WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("FROM notifications").WithArgs(int64(3), defaultNotificationPageSize).WillReturnRows(sqlmock.NewRows(cols))

	svc := NewNotificationService(db)
	list, err := svc.GetNotifications(context.Background(), 3, NotificationFilter{Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetNotifications(context.Background(), 3, NotificationFilter{})
	require.NoError(t, err)
}
