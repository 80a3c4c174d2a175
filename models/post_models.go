package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// CreatePostRequest defines the structure for creating a new post.
type CreatePostRequest struct {
	Content  string `json:"content" validate:"required,max=5000"`
	ImageURL string `json:"image_url,omitempty" validate:"max=500"` // Optional: path of an uploaded image
	TribeID  *int64 `json:"tribe_id,omitempty"`
	EventID  *int64 `json:"event_id,omitempty"`
}

// UpdatePostRequest defines the editable fields of a post.
type UpdatePostRequest struct {
	Content  *string `json:"content" validate:"omitempty,min=1,max=5000"`
	ImageURL *string `json:"image_url" validate:"omitempty,max=500"`
}

// PostResponse defines the structure for a post returned by the API.
type PostResponse struct {
	ID           int64       `json:"id"`
	Author       UserSummary `json:"author"`
	TribeID      *int64      `json:"tribe_id"`
	EventID      *int64      `json:"event_id"`
	Content      string      `json:"content"`
	ImageURL     string      `json:"image_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	LikeCount    int         `json:"like_count"`
	CommentCount int         `json:"comment_count"`
	UserLiked    bool        `json:"user_liked"`
}

// PostService handles posts and likes.
type PostService struct {
	DB *sql.DB
}

// NewPostService creates a new post service
func NewPostService(db *sql.DB) *PostService {
	return &PostService{DB: db}
}

// postSelect takes the viewer id twice: for user_liked and for visibility.
const postSelect = `
	SELECT p.id, p.tribe_id, p.event_id, p.content, p.image_url, p.created_at, p.updated_at,
		u.id, u.username, u.display_name, u.avatar,
		(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?)
	FROM posts p JOIN users u ON u.id = p.author_id
	WHERE (p.tribe_id IS NULL
		OR p.tribe_id IN (SELECT id FROM tribes WHERE is_private = FALSE)
		OR p.tribe_id IN (SELECT tribe_id FROM tribe_members WHERE user_id = ? AND status = 'active'))`

func scanPost(row rowScanner) (*PostResponse, error) {
	var p PostResponse
	var tribeID, eventID sql.NullInt64
	if err := row.Scan(&p.ID, &tribeID, &eventID, &p.Content, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.DisplayName, &p.Author.Avatar,
		&p.LikeCount, &p.CommentCount, &p.UserLiked); err != nil {
		return nil, err
	}
	p.TribeID = database.Int64Ptr(tribeID)
	p.EventID = database.Int64Ptr(eventID)
	return &p, nil
}

func (ps *PostService) queryPosts(ctx context.Context, query string, args ...interface{}) ([]PostResponse, error) {
	rows, err := ps.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query posts", err)
	}
	defer rows.Close()

	posts := []PostResponse{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan post", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate posts", err)
	}
	return posts, nil
}

// Create stores a post. Tribe posts require active membership.
func (ps *PostService) Create(ctx context.Context, authorID int64, req CreatePostRequest) (*PostResponse, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.TribeID != nil {
		member, err := NewTribeService(ps.DB).Membership(ctx, *req.TribeID, authorID)
		if err != nil {
			return nil, err
		}
		if !member.Active() {
			return nil, apperrors.NewForbiddenError("only tribe members can post in this tribe")
		}
	}
	if req.EventID != nil {
		if _, err := NewEventService(ps.DB).Get(ctx, *req.EventID, authorID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	res, err := ps.DB.ExecContext(ctx, `
		INSERT INTO posts (author_id, tribe_id, event_id, content, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, authorID, database.NullInt64(req.TribeID), database.NullInt64(req.EventID), req.Content, req.ImageURL, now, now)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.NewNotFoundError("tribe not found")
		}
		return nil, apperrors.NewInternalError("failed to create post", err)
	}
	id, _ := res.LastInsertId()
	return ps.Get(ctx, id, authorID)
}

// Get loads a post visible to viewerID.
func (ps *PostService) Get(ctx context.Context, postID, viewerID int64) (*PostResponse, error) {
	p, err := scanPost(ps.DB.QueryRowContext(ctx, postSelect+" AND p.id = ?", viewerID, viewerID, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("post not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load post", err)
	}
	return p, nil
}

// Feed returns the viewer's own posts, posts of the people they follow and
// posts in their tribes, newest first.
func (ps *PostService) Feed(ctx context.Context, viewerID int64, page Page) ([]PostResponse, error) {
	page = page.Normalize()
	return ps.queryPosts(ctx, postSelect+`
		AND (p.author_id = ?
			OR (p.author_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)
				AND (p.tribe_id IS NULL
					OR p.tribe_id IN (SELECT tribe_id FROM tribe_members WHERE user_id = ? AND status = 'active')))
			OR p.tribe_id IN (SELECT tribe_id FROM tribe_members WHERE user_id = ? AND status = 'active'))
		ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		viewerID, viewerID, viewerID, viewerID, viewerID, viewerID, page.Limit, page.Offset)
}

// ForTribe lists a tribe's posts. Private tribes are readable by members only.
func (ps *PostService) ForTribe(ctx context.Context, tribeID, viewerID int64, page Page) ([]PostResponse, error) {
	t, err := NewTribeService(ps.DB).Get(ctx, tribeID, viewerID)
	if err != nil {
		return nil, err
	}
	if t.IsPrivate && t.MyStatus != MemberActive {
		return nil, apperrors.NewForbiddenError("this tribe is private")
	}
	page = page.Normalize()
	return ps.queryPosts(ctx, postSelect+" AND p.tribe_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?",
		viewerID, viewerID, tribeID, page.Limit, page.Offset)
}

// ForAuthor lists the posts of one user visible to viewerID.
func (ps *PostService) ForAuthor(ctx context.Context, authorID, viewerID int64, page Page) ([]PostResponse, error) {
	page = page.Normalize()
	return ps.queryPosts(ctx, postSelect+" AND p.author_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?",
		viewerID, viewerID, authorID, page.Limit, page.Offset)
}

// Update edits a post. Only the author may.
func (ps *PostService) Update(ctx context.Context, postID, userID int64, req UpdatePostRequest) (*PostResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	p, err := ps.Get(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if p.Author.ID != userID {
		return nil, apperrors.NewForbiddenError("you can only edit your own posts")
	}
	if req.Content != nil {
		p.Content = strings.TrimSpace(*req.Content)
		if p.Content == "" {
			return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"content": "is required"})
		}
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if _, err := ps.DB.ExecContext(ctx,
		"UPDATE posts SET content = ?, image_url = ?, updated_at = ? WHERE id = ?",
		p.Content, p.ImageURL, time.Now().UTC(), postID); err != nil {
		return nil, apperrors.NewInternalError("failed to update post", err)
	}
	return ps.Get(ctx, postID, userID)
}

// Delete removes a post. Only the author may.
func (ps *PostService) Delete(ctx context.Context, postID, userID int64) error {
	p, err := ps.Get(ctx, postID, userID)
	if err != nil {
		return err
	}
	if p.Author.ID != userID {
		return apperrors.NewForbiddenError("you can only delete your own posts")
	}
	if _, err := ps.DB.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", postID); err != nil {
		return apperrors.NewInternalError("failed to delete post", err)
	}
	return nil
}
