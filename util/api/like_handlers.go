package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// ToggleLikePostHandler likes or unlikes a post. A new like notifies the author.
// POST /api/posts/{postID}/like
func ToggleLikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	like, post, err := models.NewPostService(database.DB).ToggleLike(r.Context(), postID, userID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if like.Liked {
		notify.PostLike(r.Context(), post, userID)
	}
	util.RespondWithJSON(w, http.StatusOK, like)
}
