package api

import (
	"net/http"
	"time"

	"eventconnect/middleware"
	"eventconnect/pkg/config"
	"eventconnect/realtime"
)

// State shared by the handlers. Configure replaces it before serving.
var (
	hub            = realtime.NewHub(nil)
	sessionTTL     = 24 * time.Hour
	secureCookies  bool
	uploadsDir     = "./uploads"
	pulseRadiusKm  = 25.0
	allowedOrigins = []string{"http://localhost:3000"}
)

// Configure installs the settings and hub the handlers use.
func Configure(cfg *config.Config, h *realtime.Hub) {
	if h != nil {
		hub = h
	}
	if cfg == nil {
		return
	}
	sessionTTL = cfg.Session.TTL
	secureCookies = cfg.Session.CookieSecure
	uploadsDir = cfg.Uploads.Dir
	pulseRadiusKm = cfg.Pulse.RadiusKm
	allowedOrigins = cfg.Server.AllowedOrigins
}

// currentUserID is the caller authenticated by AuthMiddleware.
func currentUserID(r *http.Request) int64 {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return userID
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(s string) *string {
	return &s
}
