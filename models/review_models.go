package models

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// Review is an attendee's rating of an event.
type Review struct {
	ID        int64       `json:"id"`
	EventID   int64       `json:"event_id"`
	Author    UserSummary `json:"author"`
	Rating    int         `json:"rating"`
	Comment   string      `json:"comment"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateReviewRequest represents the request to review an event
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewList is the listing of an event's reviews with their aggregate.
type ReviewList struct {
	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"average_rating"`
	Count         int      `json:"count"`
}

// ReviewService handles event reviews.
type ReviewService struct {
	DB *sql.DB
}

// NewReviewService creates a new review service
func NewReviewService(db *sql.DB) *ReviewService {
	return &ReviewService{DB: db}
}

// Create stores authorID's review of an event. Only attendees who marked
// going may review, once, after the event has started. Hosts cannot review
// their own events.
func (rs *ReviewService) Create(ctx context.Context, eventID, authorID int64, req CreateReviewRequest) (*Review, *Event, error) {
	if err := Validate(req); err != nil {
		return nil, nil, err
	}
	event, err := NewEventService(rs.DB).Get(ctx, eventID, authorID)
	if err != nil {
		return nil, nil, err
	}
	if event.Host.ID == authorID {
		return nil, nil, apperrors.NewForbiddenError("hosts cannot review their own events")
	}
	if event.MyStatus != AttendGoing {
		return nil, nil, apperrors.NewForbiddenError("only attendees can review this event")
	}
	if !event.Started(time.Now()) {
		return nil, nil, apperrors.NewValidationError("reviews open once the event has started")
	}

	now := time.Now().UTC()
	comment := strings.TrimSpace(req.Comment)
	res, err := rs.DB.ExecContext(ctx, `
		INSERT INTO reviews (event_id, author_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)
	`, eventID, authorID, req.Rating, comment, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil, apperrors.NewConflictError("you have already reviewed this event")
		}
		return nil, nil, apperrors.NewInternalError("failed to create review", err)
	}
	id, _ := res.LastInsertId()

	author, err := NewUserService(rs.DB).Summary(ctx, authorID)
	if err != nil {
		return nil, nil, err
	}
	return &Review{
		ID:        id,
		EventID:   eventID,
		Author:    author,
		Rating:    req.Rating,
		Comment:   comment,
		CreatedAt: now,
	}, event, nil
}

// List returns an event's reviews, newest first, with the average rating.
func (rs *ReviewService) List(ctx context.Context, eventID, viewerID int64, page Page) (*ReviewList, error) {
	if _, err := NewEventService(rs.DB).Get(ctx, eventID, viewerID); err != nil {
		return nil, err
	}

	list := &ReviewList{Reviews: []Review{}}
	var avg sql.NullFloat64
	if err := rs.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(rating) FROM reviews WHERE event_id = ?", eventID).Scan(&list.Count, &avg); err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate reviews", err)
	}
	if avg.Valid {
		list.AverageRating = avg.Float64
	}

	page = page.Normalize()
	rows, err := rs.DB.QueryContext(ctx, `
		SELECT r.id, r.event_id, r.rating, r.comment, r.created_at, u.id, u.username, u.display_name, u.avatar
		FROM reviews r JOIN users u ON u.id = r.author_id
		WHERE r.event_id = ?
		ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?
	`, eventID, page.Limit, page.Offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query reviews", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.EventID, &r.Rating, &r.Comment, &r.CreatedAt,
			&r.Author.ID, &r.Author.Username, &r.Author.DisplayName, &r.Author.Avatar); err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		list.Reviews = append(list.Reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reviews", err)
	}
	return list, nil
}
