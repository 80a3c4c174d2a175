package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// CreateCommentHandler adds a comment to a post and notifies its author.
// POST /api/posts/{postID}/comments
func CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.CreateCommentRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	comment, post, err := models.NewCommentService(database.DB).Create(r.Context(), postID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	notify.PostComment(r.Context(), post, comment)
	util.RespondWithJSON(w, http.StatusCreated, comment)
}

// GetCommentsForPostHandler lists the comments of a post, oldest first.
// GET /api/posts/{postID}/comments
func GetCommentsForPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	comments, err := models.NewCommentService(database.DB).List(r.Context(), postID, currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, comments)
}

// DeleteCommentHandler removes a comment. The comment or post author may.
// DELETE /api/posts/{postID}/comments/{commentID}
func DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := util.PathID(r, "postID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	commentID, err := util.PathID(r, "commentID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewCommentService(database.DB).Delete(r.Context(), postID, commentID, currentUserID(r)); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
