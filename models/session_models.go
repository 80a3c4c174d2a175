package models

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	apperrors "eventconnect/pkg/errors"
)

// Session maps an opaque token to a user until it expires.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService persists login sessions.
type SessionService struct {
	DB  *sql.DB
	TTL time.Duration
}

// NewSessionService creates a new session service
func NewSessionService(db *sql.DB, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{DB: db, TTL: ttl}
}

// GenerateSessionToken creates a cryptographically secure random session token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create starts a session for userID.
func (ss *SessionService) Create(ctx context.Context, userID int64) (*Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate session token", err)
	}
	now := time.Now().UTC()
	s := &Session{Token: token, UserID: userID, ExpiresAt: now.Add(ss.TTL)}
	_, err = ss.DB.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		s.Token, s.UserID, s.ExpiresAt, now)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create session", err)
	}
	return s, nil
}

// Resolve returns the user id behind token, or 0 when the token is unknown
// or expired. Expired sessions are removed.
func (ss *SessionService) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	var userID int64
	var expiresAt time.Time
	err := ss.DB.QueryRowContext(ctx, "SELECT user_id, expires_at FROM sessions WHERE token = ?", token).
		Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewInternalError("failed to load session", err)
	}
	if time.Now().After(expiresAt) {
		if err := ss.Delete(ctx, token); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return userID, nil
}

// Delete removes a session.
func (ss *SessionService) Delete(ctx context.Context, token string) error {
	if _, err := ss.DB.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return apperrors.NewInternalError("failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes every expired session and reports how many went.
func (ss *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := ss.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete expired sessions", err)
	}
	return res.RowsAffected()
}
