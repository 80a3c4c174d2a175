package api

import (
	"context"
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// FollowUserHandler makes the caller follow a user and notifies them.
// POST /api/users/{userID}/follow
func FollowUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	targetID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewFollowService(database.DB).Follow(r.Context(), userID, targetID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	notify.NewFollower(r.Context(), userID, targetID)

	util.RespondWithJSON(w, http.StatusCreated, models.FollowStatusResponse{
		TargetUserID: targetID,
		Following:    true,
		Message:      "now following",
	})
}

// UnfollowUserHandler removes the caller's follow.
// DELETE /api/users/{userID}/follow
func UnfollowUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	targetID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewFollowService(database.DB).Unfollow(r.Context(), userID, targetID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, models.FollowStatusResponse{
		TargetUserID: targetID,
		Following:    false,
		Message:      "unfollowed",
	})
}

// GetFollowersHandler lists who follows a user.
// GET /api/users/{userID}/followers
func GetFollowersHandler(w http.ResponseWriter, r *http.Request) {
	listFollows(w, r, (*models.FollowService).Followers)
}

// GetFollowingHandler lists who a user follows.
// GET /api/users/{userID}/following
func GetFollowingHandler(w http.ResponseWriter, r *http.Request) {
	listFollows(w, r, (*models.FollowService).Following)
}

type followLister func(fs *models.FollowService, ctx context.Context, userID int64, page models.Page) ([]models.UserSummary, error)

func listFollows(w http.ResponseWriter, r *http.Request, list followLister) {
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
	users, err := list(models.NewFollowService(database.DB), r.Context(), userID, page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, users)
}
