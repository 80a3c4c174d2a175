package models

import (
	"context"
	"database/sql"
	"time"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// Notification types
const (
	NotificationNewFollower     = "new_follower"
	NotificationEventRSVP       = "event_rsvp"
	NotificationEventCreated    = "event_created"
	NotificationEventReview     = "event_review"
	NotificationTribeJoin       = "tribe_join"
	NotificationTribeRequest    = "tribe_join_request"
	NotificationTribeApproved   = "tribe_join_approved"
	NotificationPostLike        = "post_like"
	NotificationPostComment     = "post_comment"
	NotificationNewMessage      = "new_message"
	NotificationEventCancelled  = "event_cancelled"
	NotificationEventUpdated    = "event_updated"
	RelatedTypeUser             = "user"
	RelatedTypeEvent            = "event"
	RelatedTypeTribe            = "tribe"
	RelatedTypePost             = "post"
	RelatedTypeChat             = "chat"
	defaultNotificationPageSize = 20
)

// Notification represents a notification in the system
type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`      // Who receives the notification
	Type        string    `json:"type"`         // new_follower, event_rsvp, post_like, ...
	Title       string    `json:"title"`        // Short title
	Message     string    `json:"message"`      // Detailed message
	RelatedID   *int64    `json:"related_id"`   // ID of the related object
	RelatedType *string   `json:"related_type"` // Type of the related object
	ActorID     *int64    `json:"actor_id"`     // Who triggered the notification
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationCount represents unread notification count
type NotificationCount struct {
	UnreadCount int `json:"unread_count"`
}

// CreateNotificationRequest represents request to create a notification
type CreateNotificationRequest struct {
	UserID      int64
	Type        string
	Title       string
	Message     string
	RelatedID   *int64
	RelatedType *string
	ActorID     *int64
}

// NotificationFilter narrows a notification listing
type NotificationFilter struct {
	Limit      int
	UnreadOnly bool
}

// NotificationService handles notification operations
type NotificationService struct {
	DB *sql.DB
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *sql.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// CreateNotification creates a new notification
func (ns *NotificationService) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*Notification, error) {
	now := time.Now().UTC()
	res, err := ns.DB.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, title, message, related_id, related_type, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.UserID, req.Type, req.Title, req.Message,
		database.NullInt64(req.RelatedID), req.RelatedType, database.NullInt64(req.ActorID), now)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create notification", err)
	}
	id, _ := res.LastInsertId()
	return &Notification{
		ID:          id,
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
		ActorID:     req.ActorID,
		CreatedAt:   now,
	}, nil
}

// GetNotifications retrieves notifications for a user, newest first
func (ns *NotificationService) GetNotifications(ctx context.Context, userID int64, filter NotificationFilter) ([]Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultNotificationPageSize
	}
	limit = min(limit, maxPageSize)
	query := `
		SELECT id, user_id, type, title, message, related_id, related_type, actor_id, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if filter.UnreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	rows, err := ns.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query notifications", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var n Notification
		var relatedID, actorID sql.NullInt64
		var relatedType sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &relatedID, &relatedType, &actorID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan notification", err)
		}
		n.RelatedID = database.Int64Ptr(relatedID)
		n.ActorID = database.Int64Ptr(actorID)
		if relatedType.Valid {
			rt := relatedType.String
			n.RelatedType = &rt
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate notifications", err)
	}
	return notifications, nil
}

// GetUnreadCount returns the count of unread notifications for a user
func (ns *NotificationService) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := ns.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to count notifications", err)
	}
	return count, nil
}

// MarkAsRead marks a specific notification as read
func (ns *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID int64) error {
	res, err := ns.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, notificationID, userID)
	if err != nil {
		return apperrors.NewInternalError("failed to mark notification as read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("notification not found")
	}
	return nil
}

// MarkAllAsRead marks all notifications as read for a user
func (ns *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := ns.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`, userID)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to mark notifications as read", err)
	}
	return res.RowsAffected()
}

// Delete removes one of the user's notifications
func (ns *NotificationService) Delete(ctx context.Context, notificationID, userID int64) error {
	res, err := ns.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, notificationID, userID)
	if err != nil {
		return apperrors.NewInternalError("failed to delete notification", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("notification not found")
	}
	return nil
}

// DeleteOldNotifications deletes notifications older than the given number of days
func (ns *NotificationService) DeleteOldNotifications(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := ns.DB.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete old notifications", err)
	}
	return res.RowsAffected()
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(s string) *string {
	return &s
}
