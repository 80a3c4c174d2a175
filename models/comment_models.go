package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "eventconnect/pkg/errors"
)

// CreateCommentRequest defines the structure for creating a new comment.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// CommentResponse defines the structure for a comment returned by the API.
type CommentResponse struct {
	ID        int64       `json:"id"`
	PostID    int64       `json:"post_id"`
	Author    UserSummary `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// CommentService handles comments on posts.
type CommentService struct {
	DB *sql.DB
}

// NewCommentService creates a new comment service
func NewCommentService(db *sql.DB) *CommentService {
	return &CommentService{DB: db}
}

// Create adds a comment to a post visible to authorID.
func (cs *CommentService) Create(ctx context.Context, postID, authorID int64, req CreateCommentRequest) (*CommentResponse, *PostResponse, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := Validate(req); err != nil {
		return nil, nil, err
	}
	post, err := NewPostService(cs.DB).Get(ctx, postID, authorID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	res, err := cs.DB.ExecContext(ctx,
		"INSERT INTO comments (post_id, author_id, content, created_at) VALUES (?, ?, ?, ?)",
		postID, authorID, req.Content, now)
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to create comment", err)
	}
	id, _ := res.LastInsertId()
	comment, err := cs.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return comment, post, nil
}

func (cs *CommentService) get(ctx context.Context, commentID int64) (*CommentResponse, error) {
	var c CommentResponse
	err := cs.DB.QueryRowContext(ctx, `
		SELECT c.id, c.post_id, c.content, c.created_at, u.id, u.username, u.display_name, u.avatar
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.id = ?
	`, commentID).Scan(&c.ID, &c.PostID, &c.Content, &c.CreatedAt,
		&c.Author.ID, &c.Author.Username, &c.Author.DisplayName, &c.Author.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("comment not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load comment", err)
	}
	return &c, nil
}

// List returns a post's comments, oldest first.
func (cs *CommentService) List(ctx context.Context, postID, viewerID int64, page Page) ([]CommentResponse, error) {
	if _, err := NewPostService(cs.DB).Get(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	rows, err := cs.DB.QueryContext(ctx, `
		SELECT c.id, c.post_id, c.content, c.created_at, u.id, u.username, u.display_name, u.avatar
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.post_id = ?
		ORDER BY c.created_at, c.id LIMIT ? OFFSET ?
	`, postID, page.Limit, page.Offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query comments", err)
	}
	defer rows.Close()

	comments := []CommentResponse{}
	for rows.Next() {
		var c CommentResponse
		if err := rows.Scan(&c.ID, &c.PostID, &c.Content, &c.CreatedAt,
			&c.Author.ID, &c.Author.Username, &c.Author.DisplayName, &c.Author.Avatar); err != nil {
			return nil, apperrors.NewInternalError("failed to scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate comments", err)
	}
	return comments, nil
}

// Delete removes a comment. The comment author and the post author may.
func (cs *CommentService) Delete(ctx context.Context, postID, commentID, userID int64) error {
	post, err := NewPostService(cs.DB).Get(ctx, postID, userID)
	if err != nil {
		return err
	}
	c, err := cs.get(ctx, commentID)
	if err != nil {
		return err
	}
	if c.PostID != postID {
		return apperrors.NewNotFoundError("comment not found")
	}
	if c.Author.ID != userID && post.Author.ID != userID {
		return apperrors.NewForbiddenError("you cannot delete this comment")
	}
	if _, err := cs.DB.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", commentID); err != nil {
		return apperrors.NewInternalError("failed to delete comment", err)
	}
	return nil
}
