package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/util"
)

// HealthResponse reports the service status.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	OnlineUsers int    `json:"online_users"`
}

// HealthHandler pings the database and reports the users connected here.
// GET /health
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", OnlineUsers: hub.OnlineCount()}
	status := http.StatusOK
	if err := database.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check: database unavailable")
		resp.Status = "degraded"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	util.RespondWithJSON(w, status, resp)
}
