package models

import (
	"context"
	"time"

	apperrors "eventconnect/pkg/errors"
)

// LikeResponse defines the structure for the like toggle response.
type LikeResponse struct {
	PostID    int64 `json:"post_id"`
	Liked     bool  `json:"liked"`      // True if user currently likes the post
	LikeCount int   `json:"like_count"` // Total number of likes
}

// ToggleLike likes the post, or removes the like when userID already liked it.
func (ps *PostService) ToggleLike(ctx context.Context, postID, userID int64) (*LikeResponse, *PostResponse, error) {
	post, err := ps.Get(ctx, postID, userID)
	if err != nil {
		return nil, nil, err
	}

	tx, err := ps.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM post_likes WHERE post_id = ? AND user_id = ?", postID, userID)
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to remove like", err)
	}
	resp := &LikeResponse{PostID: postID}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)",
			postID, userID, time.Now().UTC()); err != nil {
			return nil, nil, apperrors.NewInternalError("failed to like post", err)
		}
		resp.Liked = true
	}
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM post_likes WHERE post_id = ?", postID).
		Scan(&resp.LikeCount); err != nil {
		return nil, nil, apperrors.NewInternalError("failed to count likes", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.NewInternalError("failed to commit like", err)
	}
	return resp, post, nil
}
