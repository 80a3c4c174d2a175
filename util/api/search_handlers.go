package api

import (
	"net/http"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// SearchHandler searches users, events and tribes.
// GET /api/search?q&type&limit
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := util.QueryInt(r, "limit", 0)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	results, err := models.NewSearchService(database.DB).Search(r.Context(), currentUserID(r), models.SearchRequest{
		Query: r.URL.Query().Get("q"),
		Type:  r.URL.Query().Get("type"),
		Limit: limit,
	})
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, results)
}
