package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/pkg/geo"
)

// RegisterRequest defines the structure for the registration request body.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,username"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=60"`
}

// LoginRequest accepts either a username or an email as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// UpdateProfileRequest holds the editable profile fields. Nil fields are
// left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string  `json:"display_name" validate:"omitempty,max=60"`
	Bio         *string  `json:"bio" validate:"omitempty,max=500"`
	Avatar      *string  `json:"avatar" validate:"omitempty,max=500"`
	Interests   []string `json:"interests" validate:"omitempty,max=20,dive,min=1,max=30"`
}

// LocationRequest carries a device location.
type LocationRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

// Point validates the request and returns its coordinate.
func (r LocationRequest) Point() (geo.Point, error) {
	if err := Validate(r); err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: *r.Lat, Lng: *r.Lng}
	if err := p.Validate(); err != nil {
		return geo.Point{}, apperrors.NewValidationError(err.Error())
	}
	return p, nil
}

// User is a user row. The password hash never leaves the server.
type User struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email,omitempty"`
	PasswordHash      string     `json:"-"`
	DisplayName       string     `json:"display_name"`
	Bio               string     `json:"bio"`
	Avatar            string     `json:"avatar"`
	Interests         []string   `json:"interests"`
	Location          *geo.Point `json:"location,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Public strips fields other users must not see.
func (u User) Public() User {
	u.Email = ""
	u.Location = nil
	u.LocationUpdatedAt = nil
	return u
}

// UserSummary is the compact author/member shape embedded in other responses.
type UserSummary struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// UserProfile is the response for GET /api/users/{id}.
type UserProfile struct {
	User           User `json:"user"`
	FollowersCount int  `json:"followers_count"`
	FollowingCount int  `json:"following_count"`
	EventsHosted   int  `json:"events_hosted"`
	IsFollowing    bool `json:"is_following"`
	IsSelf         bool `json:"is_self"`
}

// NearbyUser is a user annotated with their distance from the caller.
type NearbyUser struct {
	UserSummary
	DistanceKm float64 `json:"distance_km"`
}

// UserService handles user operations
type UserService struct {
	DB *sql.DB
}

// NewUserService creates a new user service
func NewUserService(db *sql.DB) *UserService {
	return &UserService{DB: db}
}

const userColumns = `id, username, email, password_hash, display_name, bio, avatar, interests,
	latitude, longitude, location_updated_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var interests string
	var lat, lng sql.NullFloat64
	var locAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.Avatar,
		&interests, &lat, &lng, &locAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Interests = splitList(interests)
	if lat.Valid && lng.Valid {
		u.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if locAt.Valid {
		t := locAt.Time
		u.LocationUpdatedAt = &t
	}
	return &u, nil
}

// Register creates a user with a bcrypt-hashed password.
func (us *UserService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}

	now := time.Now().UTC()
	res, err := us.DB.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.Username, req.Email, string(hash), displayName, now, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("username or email already registered")
		}
		return nil, apperrors.NewInternalError("failed to create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read user id", err)
	}
	return us.GetByID(ctx, id)
}

// Authenticate checks credentials against a username or email.
func (us *UserService) Authenticate(ctx context.Context, req LoginRequest) (*User, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := Validate(req); err != nil {
		return nil, err
	}

	row := us.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ? OR email = ?",
		req.Identifier, strings.ToLower(req.Identifier))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewUnauthorizedError("invalid username/email or password")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid username/email or password")
	}
	return user, nil
}

// GetByID loads a user.
func (us *UserService) GetByID(ctx context.Context, id int64) (*User, error) {
	user, err := scanUser(us.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load user", err)
	}
	return user, nil
}

// Exists reports whether a user id is known.
func (us *UserService) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := us.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, apperrors.NewInternalError("failed to check user", err)
	}
	return exists, nil
}

// Summary loads the compact shape of a user.
func (us *UserService) Summary(ctx context.Context, id int64) (UserSummary, error) {
	var s UserSummary
	err := us.DB.QueryRowContext(ctx, "SELECT id, username, display_name, avatar FROM users WHERE id = ?", id).
		Scan(&s.ID, &s.Username, &s.DisplayName, &s.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return s, apperrors.NewNotFoundError("user not found")
	}
	if err != nil {
		return s, apperrors.NewInternalError("failed to load user", err)
	}
	return s, nil
}

// GetProfile builds the profile of userID as seen by viewerID.
func (us *UserService) GetProfile(ctx context.Context, userID, viewerID int64) (*UserProfile, error) {
	user, err := us.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{IsSelf: userID == viewerID}
	if profile.IsSelf {
		profile.User = *user
	} else {
		profile.User = user.Public()
	}

	err = us.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM follows WHERE followed_id = ?),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?),
			(SELECT COUNT(*) FROM events WHERE host_id = ?),
			EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?)
	`, userID, userID, userID, viewerID, userID).Scan(
		&profile.FollowersCount, &profile.FollowingCount, &profile.EventsHosted, &profile.IsFollowing)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load profile stats", err)
	}
	return profile, nil
}

// UpdateProfile applies the non-nil fields of req.
func (us *UserService) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*User, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	user, err := us.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Avatar != nil {
		user.Avatar = strings.TrimSpace(*req.Avatar)
	}
	if req.Interests != nil {
		user.Interests = normalizeList(req.Interests)
	}

	_, err = us.DB.ExecContext(ctx, `
		UPDATE users SET display_name = ?, bio = ?, avatar = ?, interests = ?, updated_at = ?
		WHERE id = ?
	`, user.DisplayName, user.Bio, user.Avatar, strings.Join(user.Interests, ","), time.Now().UTC(), userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update profile", err)
	}
	return us.GetByID(ctx, userID)
}

// UpdateLocation stores the caller's last known location.
func (us *UserService) UpdateLocation(ctx context.Context, userID int64, p geo.Point) error {
	if err := p.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	res, err := us.DB.ExecContext(ctx, `
		UPDATE users SET latitude = ?, longitude = ?, location_updated_at = ? WHERE id = ?
	`, p.Lat, p.Lng, time.Now().UTC(), userID)
	if err != nil {
		return apperrors.NewInternalError("failed to update location", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("user not found")
	}
	return nil
}

// Location returns the stored location of a user, or nil when unknown.
func (us *UserService) Location(ctx context.Context, userID int64) (*geo.Point, error) {
	user, err := us.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Location, nil
}

// NearbyUsers finds other users whose stored location is within radiusKm.
func (us *UserService) NearbyUsers(ctx context.Context, userID int64, center geo.Point, radiusKm float64, limit int) ([]NearbyUser, error) {
	box := geo.BoundingBox(center, radiusKm)
	query := `
		SELECT id, username, display_name, avatar, latitude, longitude
		FROM users
		WHERE id != ? AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?`
	args := []interface{}{userID, box.MinLat, box.MaxLat}
	if box.CrossesAntimeridian() {
		query += " AND (longitude >= ? OR longitude <= ?)"
	} else {
		query += " AND longitude BETWEEN ? AND ?"
	}
	args = append(args, box.MinLng, box.MaxLng)

	rows, err := us.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query nearby users", err)
	}
	defer rows.Close()

	nearby := []NearbyUser{}
	for rows.Next() {
		var n NearbyUser
		var p geo.Point
		if err := rows.Scan(&n.ID, &n.Username, &n.DisplayName, &n.Avatar, &p.Lat, &p.Lng); err != nil {
			return nil, apperrors.NewInternalError("failed to scan nearby user", err)
		}
		n.DistanceKm = geo.DistanceKm(center, p)
		if n.DistanceKm <= radiusKm {
			nearby = append(nearby, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate nearby users", err)
	}

	sortByDistance(nearby, func(n NearbyUser) float64 { return n.DistanceKm })
	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// normalizeList trims, lowercases and de-duplicates tags. Commas are the
// storage separator so they are dropped.
func normalizeList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", " ")))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
