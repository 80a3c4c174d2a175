package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eventconnect/pkg/errors"
	"eventconnect/pkg/geo"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.DisplayName, "display name defaults to username")
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.Empty(t, user.Interests)

	t.Run("by username", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, LoginRequest{Identifier: "alice", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, LoginRequest{Identifier: "ALICE@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, LoginRequest{Identifier: "alice", Password: "nope-nope"})
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeUnauthorized))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, LoginRequest{Identifier: "bob", Password: "password123"})
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeUnauthorized))
	})
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	createUser(t, db, "alice")

	_, err := svc.Register(ctx, RegisterRequest{Username: "ALICE", Email: "x@example.com", Password: "password123"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))

	_, err = svc.Register(ctx, RegisterRequest{Username: "other", Email: "alice@example.com", Password: "password123"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))

	_, err = svc.Register(ctx, RegisterRequest{Username: "a!", Email: "not-an-email", Password: "short"})
	require.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "username")
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password")
}

func TestProfileAndUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, NewFollowService(db).Follow(ctx, bob.ID, alice.ID))

	profile, err := svc.GetProfile(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsSelf)
	assert.True(t, profile.IsFollowing)
	assert.Equal(t, 1, profile.FollowersCount)
	assert.Empty(t, profile.User.Email, "email is hidden from other users")

	self, err := svc.GetProfile(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, self.IsSelf)
	assert.Equal(t, "alice@example.com", self.User.Email)

	bio := "  climbing and jazz  "
	updated, err := svc.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{
		Bio:       &bio,
		Interests: []string{"Jazz", "climbing", "jazz", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "climbing and jazz", updated.Bio)
	assert.Equal(t, []string{"jazz", "climbing"}, updated.Interests)
	assert.Equal(t, "alice", updated.DisplayName, "nil fields are left unchanged")

	_, err = svc.GetProfile(ctx, 9999, alice.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
}

func TestNearbyUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	me := createUser(t, db, "viewer")
	near := createUser(t, db, "near")
	nearer := createUser(t, db, "nearer")
	far := createUser(t, db, "far")
	createUser(t, db, "nowhere")

	center := geo.Point{Lat: 40.7128, Lng: -74.0060}
	require.NoError(t, svc.UpdateLocation(ctx, me.ID, center))
	require.NoError(t, svc.UpdateLocation(ctx, near.ID, geo.Point{Lat: 40.7580, Lng: -73.9855}))
	require.NoError(t, svc.UpdateLocation(ctx, nearer.ID, geo.Point{Lat: 40.7200, Lng: -74.0000}))
	require.NoError(t, svc.UpdateLocation(ctx, far.ID, geo.Point{Lat: 34.0522, Lng: -118.2437}))

	nearby, err := svc.NearbyUsers(ctx, me.ID, center, 10, 10)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, nearer.ID, nearby[0].ID)
	assert.Equal(t, near.ID, nearby[1].ID)
	assert.Less(t, nearby[0].DistanceKm, nearby[1].DistanceKm)

	limited, err := svc.NearbyUsers(ctx, me.ID, center, 10, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	err = svc.UpdateLocation(ctx, me.ID, geo.Point{Lat: 91, Lng: 0})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestLocationRequestPoint(t *testing.T) {
	_, err := LocationRequest{}.Point()
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	_, err = LocationRequest{Lat: float64Ptr(10), Lng: float64Ptr(200)}.Point()
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	p, err := LocationRequest{Lat: float64Ptr(0), Lng: float64Ptr(0)}.Point()
	require.NoError(t, err)
	assert.Equal(t, geo.Point{}, p)
}
