package api

import (
	"net/http"

	"github.com/rs/cors"

	"eventconnect/middleware"
	"eventconnect/pkg/config"
	"eventconnect/realtime"
)

// NewRouter configures the handlers and returns the HTTP entry point with
// CORS, request logging and panic recovery applied.
func NewRouter(cfg *config.Config, h *realtime.Hub) http.Handler {
	Configure(cfg, h)

	mux := http.NewServeMux()
	auth := func(fn http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(fn)
	}

	mux.HandleFunc("GET /health", HealthHandler)
	mux.Handle("GET /ws", middleware.WebSocketAuthMiddleware(http.HandlerFunc(WebSocketHandler)))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	// Auth
	mux.HandleFunc("POST /api/auth/register", RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", LoginHandler)
	mux.Handle("POST /api/auth/logout", auth(LogoutHandler))
	mux.Handle("GET /api/auth/me", auth(WhoAmIHandler))

	// Users
	mux.Handle("GET /api/users/me", auth(WhoAmIHandler))
	mux.Handle("PUT /api/users/me", auth(UpdateMyProfileHandler))
	mux.Handle("GET /api/users/online-status", auth(GetConnectionsOnlineStatusHandler))
	mux.Handle("GET /api/users/{userID}", auth(GetUserProfileHandler))
	mux.Handle("POST /api/users/{userID}/follow", auth(FollowUserHandler))
	mux.Handle("DELETE /api/users/{userID}/follow", auth(UnfollowUserHandler))
	mux.Handle("GET /api/users/{userID}/followers", auth(GetFollowersHandler))
	mux.Handle("GET /api/users/{userID}/following", auth(GetFollowingHandler))
	mux.Handle("GET /api/users/{userID}/events", auth(GetUserEventsHandler))
	mux.Handle("GET /api/users/{userID}/tribes", auth(GetUserTribesHandler))
	mux.Handle("GET /api/users/{userID}/posts", auth(ListUserPostsHandler))

	// Events and reviews
	mux.Handle("POST /api/events", auth(CreateEventHandler))
	mux.Handle("GET /api/events", auth(ListEventsHandler))
	mux.Handle("GET /api/events/nearby", auth(NearbyEventsHandler))
	mux.Handle("GET /api/events/pulse", auth(PulseEventsHandler))
	mux.Handle("GET /api/events/{eventID}", auth(GetEventHandler))
	mux.Handle("PUT /api/events/{eventID}", auth(UpdateEventHandler))
	mux.Handle("DELETE /api/events/{eventID}", auth(DeleteEventHandler))
	mux.Handle("POST /api/events/{eventID}/attend", auth(AttendEventHandler))
	mux.Handle("DELETE /api/events/{eventID}/attend", auth(UnattendEventHandler))
	mux.Handle("GET /api/events/{eventID}/attendees", auth(GetEventAttendeesHandler))
	mux.Handle("POST /api/events/{eventID}/reviews", auth(CreateReviewHandler))
	mux.Handle("GET /api/events/{eventID}/reviews", auth(ListReviewsHandler))

	// Tribes
	mux.Handle("POST /api/tribes", auth(CreateTribeHandler))
	mux.Handle("GET /api/tribes", auth(ListTribesHandler))
	mux.Handle("GET /api/tribes/{tribeID}", auth(GetTribeHandler))
	mux.Handle("PUT /api/tribes/{tribeID}", auth(UpdateTribeHandler))
	mux.Handle("DELETE /api/tribes/{tribeID}", auth(DeleteTribeHandler))
	mux.Handle("POST /api/tribes/{tribeID}/join", auth(JoinTribeHandler))
	mux.Handle("POST /api/tribes/{tribeID}/leave", auth(LeaveTribeHandler))
	mux.Handle("POST /api/tribes/{tribeID}/members/{userID}/approve", auth(ApproveMemberHandler))
	mux.Handle("GET /api/tribes/{tribeID}/members", auth(GetTribeMembersHandler))
	mux.Handle("GET /api/tribes/{tribeID}/posts", auth(ListTribePostsHandler))
	mux.Handle("GET /api/tribes/{tribeID}/events", auth(ListTribeEventsHandler))

	// Posts, likes and comments
	mux.Handle("POST /api/posts", auth(CreatePostHandler))
	mux.Handle("GET /api/posts", auth(GetFeedHandler))
	mux.Handle("GET /api/posts/{postID}", auth(GetPostHandler))
	mux.Handle("PUT /api/posts/{postID}", auth(UpdatePostHandler))
	mux.Handle("DELETE /api/posts/{postID}", auth(DeletePostHandler))
	mux.Handle("POST /api/posts/{postID}/like", auth(ToggleLikePostHandler))
	mux.Handle("GET /api/posts/{postID}/comments", auth(GetCommentsForPostHandler))
	mux.Handle("POST /api/posts/{postID}/comments", auth(CreateCommentHandler))
	mux.Handle("DELETE /api/posts/{postID}/comments/{commentID}", auth(DeleteCommentHandler))

	// Chat. "direct" and "tribe" share a segment with chat ids, which the mux
	// cannot disambiguate, so two-segment chat paths go through chatRoute.
	mux.Handle("GET /api/chat", auth(GetChatsHandler))
	mux.Handle("GET /api/chat/{first}/{second}", auth(chatRoute))
	mux.Handle("POST /api/chat/{first}/{second}", auth(chatRoute))

	// Notifications
	mux.Handle("GET /api/notifications", auth(GetNotificationsHandler))
	mux.Handle("GET /api/notifications/unread-count", auth(GetUnreadCountHandler))
	mux.Handle("PATCH /api/notifications/{notificationID}/read", auth(MarkNotificationAsReadHandler))
	mux.Handle("POST /api/notifications/read-all", auth(MarkAllNotificationsAsReadHandler))
	mux.Handle("DELETE /api/notifications/{notificationID}", auth(DeleteNotificationHandler))

	// Search, location and uploads
	mux.Handle("GET /api/search", auth(SearchHandler))
	mux.Handle("PUT /api/location", auth(UpdateLocationHandler))
	mux.Handle("GET /api/location/nearby-users", auth(NearbyUsersHandler))
	mux.Handle("POST /api/uploads", auth(ImageUploadHandler))

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	return c.Handler(middleware.LoggingMiddleware(middleware.RecoveryMiddleware(mux)))
}

// chatRoute serves the two-segment chat paths:
//
//	POST /api/chat/direct/{userID}
//	GET  /api/chat/tribe/{tribeID}
//	GET  /api/chat/{chatID}/messages
//	POST /api/chat/{chatID}/messages
//	POST /api/chat/{chatID}/read
func chatRoute(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case r.Method == http.MethodPost && first == "direct":
		r.SetPathValue("userID", second)
		OpenDirectChatHandler(w, r)
	case r.Method == http.MethodGet && first == "tribe":
		r.SetPathValue("tribeID", second)
		GetTribeChatHandler(w, r)
	case second == "messages":
		r.SetPathValue("chatID", first)
		if r.Method == http.MethodPost {
			SendMessageHandler(w, r)
		} else {
			GetMessagesHandler(w, r)
		}
	case r.Method == http.MethodPost && second == "read":
		r.SetPathValue("chatID", first)
		MarkChatReadHandler(w, r)
	default:
		http.NotFound(w, r)
	}
}
