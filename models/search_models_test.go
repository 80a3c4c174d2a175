package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eventconnect/pkg/errors"
)

func TestSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewSearchService(db)
	jazzfan := createUser(t, db, "jazzfan")
	createUser(t, db, "rocker")
	createTribe(t, db, jazzfan.ID, "Jazz Collective", false)
	createTribe(t, db, jazzfan.ID, "Secret Jazz", true)
	createEvent(t, db, jazzfan.ID, eventRequest("Smooth JAZZ evening", 40.7, -74.0, 24*time.Hour))
	createEvent(t, db, jazzfan.ID, eventRequest("Rock night", 40.7, -74.0, 24*time.Hour))

	all, err := svc.Search(ctx, jazzfan.ID, SearchRequest{Query: "jazz"})
	require.NoError(t, err)
	require.Len(t, *all.Users, 1)
	assert.Equal(t, "jazzfan", (*all.Users)[0].Username)
	require.Len(t, *all.Events, 1)
	assert.Equal(t, "Smooth JAZZ evening", (*all.Events)[0].Title)
	assert.Len(t, *all.Tribes, 2, "tribe names are searchable regardless of privacy")

	events, err := svc.Search(ctx, jazzfan.ID, SearchRequest{Query: "rock", Type: SearchEvents})
	require.NoError(t, err)
	assert.Nil(t, events.Users)
	assert.Nil(t, events.Tribes)
	require.Len(t, *events.Events, 1)

	none, err := svc.Search(ctx, jazzfan.ID, SearchRequest{Query: "100%"})
	require.NoError(t, err)
	require.NotNil(t, none.Users)
	assert.Empty(t, *none.Users)
	require.NotNil(t, none.Events)
	assert.Empty(t, *none.Events)

	_, err = svc.Search(ctx, jazzfan.ID, SearchRequest{Query: "   "})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	_, err = svc.Search(ctx, jazzfan.ID, SearchRequest{Query: "jazz", Type: "planets"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}
