package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/realtime"
	"eventconnect/util"
)

// CreatePostHandler creates a post. Tribe posts are pushed to the tribe room.
// POST /api/posts
func CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	var req models.CreatePostRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	post, err := models.NewPostService(database.DB).Create(r.Context(), userID, req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if post.TribeID != nil {
		hub.SendToRoom(r.Context(), realtime.TribeRoom(*post.TribeID), realtime.TypeNewPost, post, userID)
	}
	util.RespondWithJSON(w, http.StatusCreated, post)
}

// GetFeedHandler returns the caller's feed, newest first.
// GET /api/posts?limit&offset
func GetFeedHandler(w http.ResponseWriter, r *http.Request) {
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	posts, err := models.NewPostService(database.DB).Feed(r.Context(), currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, posts)
}

// GetPostHandler returns one post.
// GET /api/posts/{postID}
func GetPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	post, err := models.NewPostService(database.DB).Get(r.Context(), postID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, post)
}

// UpdatePostHandler edits one of the caller's posts.
// PUT /api/posts/{postID}
func UpdatePostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.UpdatePostRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	post, err := models.NewPostService(database.DB).Update(r.Context(), postID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, post)
}

// DeletePostHandler deletes one of the caller's posts.
// DELETE /api/posts/{postID}
func DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewPostService(database.DB).Delete(r.Context(), postID, currentUserID(r)); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserPostsHandler lists the posts of one user visible to the caller.
// GET /api/users/{userID}/posts
func ListUserPostsHandler(w http.ResponseWriter, r *http.Request) {
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

	posts, err := models.NewPostService(database.DB).ForAuthor(r.Context(), userID, currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, posts)
}
