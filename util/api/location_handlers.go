package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/pkg/geo"
	"eventconnect/util"
)

// LocationUpdateResponse is the stored location with the events around it.
type LocationUpdateResponse struct {
	Location geo.Point      `json:"location"`
	Events   []models.Event `json:"events"`
}

// UpdateLocationHandler stores the caller's location and returns the pulse
// events around it.
// PUT /api/location
func UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LocationRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	resp, err := updateLocation(r, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, resp)
}

func updateLocation(r *http.Request, userID int64, req models.LocationRequest) (*LocationUpdateResponse, error) {
	p, err := req.Point()
	if err != nil {
		return nil, err
	}
	if err := models.NewUserService(database.DB).UpdateLocation(r.Context(), userID, p); err != nil {
		return nil, err
	}
	events, err := models.NewEventService(database.DB).Nearby(r.Context(), userID, p, pulseRadiusKm, 0)
	if err != nil {
		return nil, err
	}
	return &LocationUpdateResponse{Location: p, Events: events}, nil
}

// NearbyUsersHandler lists other users with a stored location near the caller.
// GET /api/location/nearby-users?radius_km
func NearbyUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	radius, err := util.QueryFloatPtr(r, "radius_km")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	limit, err := util.QueryInt(r, "limit", 50)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	users := models.NewUserService(database.DB)
	loc, err := users.Location(r.Context(), userID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if loc == nil {
		util.RespondWithError(w, r, apperrors.NewValidationError("share your location to see people around you"))
		return
	}

	radiusKm := models.DefaultNearbyRadiusKm
	if radius != nil {
		radiusKm = *radius
	}
	nearby, err := users.NearbyUsers(r.Context(), userID, *loc, geo.ClampRadius(radiusKm, models.DefaultNearbyRadiusKm), limit)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, nearby)
}
