package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// GetUserProfileHandler returns a profile with its follow counts.
// GET /api/users/{userID}
func GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	profile, err := models.NewUserService(database.DB).GetProfile(r.Context(), userID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, profile)
}

// UpdateMyProfileHandler updates the caller's profile.
// PUT /api/users/me
func UpdateMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	user, err := models.NewUserService(database.DB).UpdateProfile(r.Context(), currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, user)
}

// GetUserEventsHandler lists the events a user hosts.
// GET /api/users/{userID}/events
func GetUserEventsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if _, err := models.NewUserService(database.DB).Summary(r.Context(), userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	events, err := models.NewEventService(database.DB).List(r.Context(), currentUserID(r), models.EventFilter{
		HostID: &userID,
		Page:   page,
	})
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, events)
}

// GetUserTribesHandler lists the tribes a user is an active member of.
// GET /api/users/{userID}/tribes
func GetUserTribesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if _, err := models.NewUserService(database.DB).Summary(r.Context(), userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	tribes, err := models.NewTribeService(database.DB).ForUser(r.Context(), userID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, tribes)
}
