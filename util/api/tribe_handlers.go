package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/realtime"
	"eventconnect/util"
)

// CreateTribeHandler creates a tribe owned by the caller.
// POST /api/tribes
func CreateTribeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTribeRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribe, err := models.NewTribeService(database.DB).Create(r.Context(), currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	log.Info().Int64("tribe_id", tribe.ID).Int64("owner_id", tribe.Creator.ID).Msg("tribe created")
	util.RespondWithJSON(w, http.StatusCreated, tribe)
}

// ListTribesHandler lists tribes with optional category and text filters.
// GET /api/tribes?category&q&limit&offset
func ListTribesHandler(w http.ResponseWriter, r *http.Request) {
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribes, err := models.NewTribeService(database.DB).List(r.Context(), currentUserID(r), models.TribeFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Page:     page,
	})
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, tribes)
}

// GetTribeHandler returns one tribe.
// GET /api/tribes/{tribeID}
func GetTribeHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribe, err := models.NewTribeService(database.DB).Get(r.Context(), tribeID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, tribe)
}

// UpdateTribeHandler edits a tribe. Owners and admins only.
// PUT /api/tribes/{tribeID}
func UpdateTribeHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.UpdateTribeRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribe, err := models.NewTribeService(database.DB).Update(r.Context(), tribeID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, tribe)
}

// DeleteTribeHandler deletes a tribe. Owner only.
// DELETE /api/tribes/{tribeID}
func DeleteTribeHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewTribeService(database.DB).Delete(r.Context(), tribeID, currentUserID(r)); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinTribeHandler joins a public tribe or requests to join a private one.
// POST /api/tribes/{tribeID}/join
func JoinTribeHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribes := models.NewTribeService(database.DB)
	result, err := tribes.Join(r.Context(), tribeID, userID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribe, err := tribes.Get(r.Context(), tribeID, userID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	moderatorIDs, err := tribes.ModeratorIDs(r.Context(), tribeID)
	if err != nil {
		log.Error().Err(err).Int64("tribe_id", tribeID).Msg("failed to load tribe moderators")
	}
	notify.TribeJoin(r.Context(), tribe, userID, result.Status == models.MemberPending, moderatorIDs)

	status := http.StatusOK
	if result.Status == models.MemberPending {
		status = http.StatusAccepted
	}
	util.RespondWithJSON(w, status, result)
}

// LeaveTribeHandler removes the caller from a tribe.
// POST /api/tribes/{tribeID}/leave
func LeaveTribeHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewTribeService(database.DB).Leave(r.Context(), tribeID, userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	hub.LeaveUser(userID, realtime.TribeRoom(tribeID))
	util.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"tribe_id": tribeID, "message": "left tribe"})
}

// ApproveMemberHandler activates a pending member.
// POST /api/tribes/{tribeID}/members/{userID}/approve
func ApproveMemberHandler(w http.ResponseWriter, r *http.Request) {
	moderatorID := currentUserID(r)
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	userID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	tribes := models.NewTribeService(database.DB)
	if err := tribes.Approve(r.Context(), tribeID, moderatorID, userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if tribe, err := tribes.Get(r.Context(), tribeID, moderatorID); err == nil {
		notify.TribeApproved(r.Context(), tribe, userID, moderatorID)
	}
	util.RespondWithJSON(w, http.StatusOK, models.JoinResult{TribeID: tribeID, Status: models.MemberActive})
}

// GetTribeMembersHandler lists a tribe's members.
// GET /api/tribes/{tribeID}/members
func GetTribeMembersHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	members, err := models.NewTribeService(database.DB).Members(r.Context(), tribeID, currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, members)
}

// ListTribePostsHandler lists the posts of a tribe.
// GET /api/tribes/{tribeID}/posts
func ListTribePostsHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	posts, err := models.NewPostService(database.DB).ForTribe(r.Context(), tribeID, currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, posts)
}

// ListTribeEventsHandler lists the events of a tribe.
// GET /api/tribes/{tribeID}/events
func ListTribeEventsHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if _, err := models.NewTribeService(database.DB).Get(r.Context(), tribeID, userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	events, err := models.NewEventService(database.DB).List(r.Context(), userID, models.EventFilter{
		TribeID: &tribeID,
		Page:    page,
	})
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, events)
}
