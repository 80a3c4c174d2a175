package models

import (
	"context"
	"database/sql"
	"time"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// FollowStatusResponse indicates the result of a follow/unfollow action.
type FollowStatusResponse struct {
	TargetUserID int64  `json:"target_user_id"`
	Following    bool   `json:"following"`
	Message      string `json:"message,omitempty"`
}

// FollowService manages the follower graph.
type FollowService struct {
	DB *sql.DB
}

// NewFollowService creates a new follow service
func NewFollowService(db *sql.DB) *FollowService {
	return &FollowService{DB: db}
}

// Follow makes followerID follow targetID. Following twice is a conflict.
func (fs *FollowService) Follow(ctx context.Context, followerID, targetID int64) error {
	if followerID == targetID {
		return apperrors.NewValidationError("you cannot follow yourself")
	}
	_, err := fs.DB.ExecContext(ctx,
		"INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)",
		followerID, targetID, time.Now().UTC())
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return apperrors.NewConflictError("already following this user")
	case database.IsForeignKeyViolation(err):
		return apperrors.NewNotFoundError("user not found")
	default:
		return apperrors.NewInternalError("failed to follow user", err)
	}
}

// Unfollow removes the edge followerID -> targetID.
func (fs *FollowService) Unfollow(ctx context.Context, followerID, targetID int64) error {
	res, err := fs.DB.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", followerID, targetID)
	if err != nil {
		return apperrors.NewInternalError("failed to unfollow user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("not following this user")
	}
	return nil
}

// IsFollowing reports whether followerID follows targetID.
func (fs *FollowService) IsFollowing(ctx context.Context, followerID, targetID int64) (bool, error) {
	var exists bool
	err := fs.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?)", followerID, targetID).Scan(&exists)
	if err != nil {
		return false, apperrors.NewInternalError("failed to check follow", err)
	}
	return exists, nil
}

// Followers lists the users following userID.
func (fs *FollowService) Followers(ctx context.Context, userID int64, page Page) ([]UserSummary, error) {
	return fs.list(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar
		FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = ?
		ORDER BY f.created_at DESC, u.id DESC LIMIT ? OFFSET ?`, userID, page.Normalize())
}

// Following lists the users userID follows.
func (fs *FollowService) Following(ctx context.Context, userID int64, page Page) ([]UserSummary, error) {
	return fs.list(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar
		FROM follows f JOIN users u ON u.id = f.followed_id
		WHERE f.follower_id = ?
		ORDER BY f.created_at DESC, u.id DESC LIMIT ? OFFSET ?`, userID, page.Normalize())
}

func (fs *FollowService) list(ctx context.Context, query string, userID int64, page Page) ([]UserSummary, error) {
	rows, err := fs.DB.QueryContext(ctx, query, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query follows", err)
	}
	return scanUserSummaries(rows)
}

// ConnectionIDs returns everyone who follows or is followed by userID;
// they receive presence updates.
func (fs *FollowService) ConnectionIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := fs.DB.QueryContext(ctx, `
		SELECT follower_id FROM follows WHERE followed_id = ?
		UNION
		SELECT followed_id FROM follows WHERE follower_id = ?`, userID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query connections", err)
	}
	return scanIDs(rows)
}

func scanUserSummaries(rows *sql.Rows) ([]UserSummary, error) {
	defer rows.Close()
	users := []UserSummary{}
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar); err != nil {
			return nil, apperrors.NewInternalError("failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate users", err)
	}
	return users, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate ids", err)
	}
	return ids, nil
}
