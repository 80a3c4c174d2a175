package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/pkg/config"
	"eventconnect/pkg/db/sqlite"
	"eventconnect/realtime"
	"eventconnect/util"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	hub     *realtime.Hub
	cfg     *config.Config
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlite.ConnectAndMigrate(sqlite.MemoryPath)
	require.NoError(t, err)
	database.DB = db
	t.Cleanup(func() {
		db.Close()
		database.DB = nil
	})

	cfg := &config.Config{
		Server:        config.ServerConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"http://localhost:3000"}},
		Session:       config.SessionConfig{TTL: time.Hour},
		Uploads:       config.UploadsConfig{Dir: t.TempDir()},
		Pulse:         config.PulseConfig{RadiusKm: 25},
		Notifications: config.NotificationsConfig{RetentionDays: 30},
	}
	hub := realtime.NewHub(nil)
	return &testAPI{t: t, handler: NewRouter(cfg, hub), hub: hub, cfg: cfg}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// register creates a user and returns their id and session token.
func (a *testAPI) register(username string) (int64, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[AuthResponse](a.t, rec)
	return resp.User.ID, resp.Token
}

func (a *testAPI) createEvent(token string, req map[string]interface{}) models.Event {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/events", token, req)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Event](a.t, rec)
}

func eventBody(title string, lat, lng float64) map[string]interface{} {
	return map[string]interface{}{
		"title":     title,
		"category":  "music",
		"starts_at": time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
		"lat":       lat,
		"lng":       lng,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func notificationTypes(t *testing.T, a *testAPI, token string) []string {
	t.Helper()
	rec := a.do(http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var types []string
	for _, n := range decode[[]models.Notification](t, rec) {
		types = append(types, n.Type)
	}
	return types
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Database: "ok"}, decode[HealthResponse](t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	database.DB.Close()
	rec = a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userID, token := a.register("maya")

	rec = a.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "maya", Email: "other@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[util.ErrorResponse](t, rec).Fields)

	rec = a.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, decode[models.User](t, rec).ID)

	rec = a.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Identifier: "maya@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Identifier: "maya", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == util.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFollowAndProfile(t *testing.T) {
	a := newTestAPI(t)
	mayaID, maya := a.register("maya")
	leoID, leo := a.register("leo")

	rec := a.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", leoID), maya, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", mayaID), maya, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/users/%d", leoID), maya, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[models.UserProfile](t, rec)
	assert.Equal(t, 1, profile.FollowersCount)
	assert.True(t, profile.IsFollowing)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/users/%d/followers", leoID), leo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	followers := decode[[]models.UserSummary](t, rec)
	require.Len(t, followers, 1)
	assert.Equal(t, mayaID, followers[0].ID)

	assert.Equal(t, []string{models.NotificationNewFollower}, notificationTypes(t, a, leo))

	rec = a.do(http.MethodGet, "/api/users/999/followers", leo, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPut, "/api/users/me", maya, map[string]interface{}{"bio": "trail runner", "interests": []string{"hiking"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trail runner", decode[models.User](t, rec).Bio)

	rec = a.do(http.MethodGet, "/api/users/abc", maya, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	a := newTestAPI(t)
	hostID, host := a.register("host")
	_, guest := a.register("guest")
	_, late := a.register("late")

	body := eventBody("Rooftop jazz", 40.7128, -74.0060)
	body["capacity"] = 1
	event := a.createEvent(host, body)
	assert.Equal(t, hostID, event.Host.ID)

	rec := a.do(http.MethodPost, "/api/events", host, map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	attend := fmt.Sprintf("/api/events/%d/attend", event.ID)
	rec = a.do(http.MethodPost, attend, guest, models.AttendRequest{Status: models.AttendGoing})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[models.Attendance](t, rec).GoingCount)

	rec = a.do(http.MethodPost, attend, late, models.AttendRequest{Status: models.AttendGoing})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(http.MethodPost, attend, late, models.AttendRequest{Status: models.AttendInterested})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, attend, late, models.AttendRequest{Status: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{models.NotificationEventRSVP, models.NotificationEventRSVP}, notificationTypes(t, a, host))

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/events/%d/attendees?status=going", event.ID), host, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Attendee](t, rec), 1)

	reviews := fmt.Sprintf("/api/events/%d/reviews", event.ID)
	rec = a.do(http.MethodPost, reviews, guest, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reviews wait until the event has started")
	rec = a.do(http.MethodPost, reviews, host, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPut, fmt.Sprintf("/api/events/%d", event.ID), guest, map[string]string{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPut, fmt.Sprintf("/api/events/%d", event.ID), host, map[string]string{"title": "Rooftop jazz night"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rooftop jazz night", decode[models.Event](t, rec).Title)
	assert.Contains(t, notificationTypes(t, a, guest), models.NotificationEventUpdated)

	rec = a.do(http.MethodDelete, attend, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[models.Attendance](t, rec).GoingCount)
	rec = a.do(http.MethodDelete, attend, guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/events/%d", event.ID), host, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, notificationTypes(t, a, late), models.NotificationEventCancelled)
	rec = a.do(http.MethodGet, fmt.Sprintf("/api/events/%d", event.ID), host, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNearbyAndPulse(t *testing.T) {
	a := newTestAPI(t)
	_, host := a.register("host")
	_, viewer := a.register("viewer")

	near := a.createEvent(host, eventBody("Central Park picnic", 40.7812, -73.9665))
	a.createEvent(host, eventBody("Boston harbor walk", 42.3601, -71.0589))

	rec := a.do(http.MethodGet, "/api/events/nearby?lat=40.7128&lng=-74.0060&radius_km=20", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	events := decode[[]models.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, near.ID, events[0].ID)
	require.NotNil(t, events[0].DistanceKm)
	assert.InDelta(t, 8.3, *events[0].DistanceKm, 1.0)

	rec = a.do(http.MethodGet, "/api/events/nearby?lat=40.7", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[util.ErrorResponse](t, rec).Fields, "lng")

	rec = a.do(http.MethodGet, "/api/events/pulse", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "pulse needs a stored location")

	rec = a.do(http.MethodPut, "/api/location", viewer, map[string]float64{"lat": 40.7128, "lng": -74.0060})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	update := decode[LocationUpdateResponse](t, rec)
	require.Len(t, update.Events, 1)
	assert.Equal(t, near.ID, update.Events[0].ID)

	rec = a.do(http.MethodGet, "/api/events/pulse", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Event](t, rec), 1)

	rec = a.do(http.MethodPut, "/api/location", viewer, map[string]float64{"lat": 91, "lng": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/location/nearby-users", host, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPut, "/api/location", host, map[string]float64{"lat": 40.72, "lng": -74.0})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/location/nearby-users?radius_km=5", host, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.NearbyUser](t, rec), 1)
}

func TestPrivateTribeMembership(t *testing.T) {
	a := newTestAPI(t)
	_, owner := a.register("owner")
	memberID, member := a.register("member")

	rec := a.do(http.MethodPost, "/api/tribes", owner, models.CreateTribeRequest{Name: "Night Owls", Category: "social", IsPrivate: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tribe := decode[models.Tribe](t, rec)

	rec = a.do(http.MethodPost, "/api/tribes", member, models.CreateTribeRequest{Name: "night owls"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/tribes/%d/join", tribe.ID), member, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, models.MemberPending, decode[models.JoinResult](t, rec).Status)
	assert.Equal(t, []string{models.NotificationTribeRequest}, notificationTypes(t, a, owner))

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/chat/tribe/%d", tribe.ID), member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	approve := fmt.Sprintf("/api/tribes/%d/members/%d/approve", tribe.ID, memberID)
	rec = a.do(http.MethodPost, approve, member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, approve, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{models.NotificationTribeApproved}, notificationTypes(t, a, member))

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/tribes/%d/members", tribe.ID), member, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.TribeMember](t, rec), 2)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/chat/tribe/%d", tribe.ID), member, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ChatKindTribe, decode[models.Chat](t, rec).Kind)

	body := eventBody("Midnight ride", 40.7, -74.0)
	body["tribe_id"] = tribe.ID
	a.createEvent(member, body)
	assert.Contains(t, notificationTypes(t, a, owner), models.NotificationEventCreated)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/tribes/%d/events", tribe.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Event](t, rec), 1)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/tribes/%d/leave", tribe.ID), owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, fmt.Sprintf("/api/tribes/%d/leave", tribe.ID), member, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/tribes/%d", tribe.ID), owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPostsLikesAndComments(t *testing.T) {
	a := newTestAPI(t)
	authorID, author := a.register("author")
	_, fan := a.register("fan")

	rec := a.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", authorID), fan, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodPost, "/api/posts", author, models.CreatePostRequest{Content: "Sunrise hike this Saturday"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.PostResponse](t, rec)

	rec = a.do(http.MethodPost, "/api/posts", author, models.CreatePostRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/posts", fan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[[]models.PostResponse](t, rec)
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].ID)

	like := fmt.Sprintf("/api/posts/%d/like", post.ID)
	rec = a.do(http.MethodPost, like, fan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.LikeResponse{PostID: post.ID, Liked: true, LikeCount: 1}, decode[models.LikeResponse](t, rec))
	rec = a.do(http.MethodPost, like, fan, nil)
	assert.Equal(t, models.LikeResponse{PostID: post.ID, Liked: false, LikeCount: 0}, decode[models.LikeResponse](t, rec))

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), fan, map[string]string{"content": "Count me in"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[models.CommentResponse](t, rec)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.PostResponse](t, rec).CommentCount)

	types := notificationTypes(t, a, author)
	assert.ElementsMatch(t, []string{models.NotificationNewFollower, models.NotificationPostLike, models.NotificationPostComment}, types)

	rec = a.do(http.MethodGet, "/api/notifications/unread-count", author, nil)
	assert.Equal(t, 3, decode[models.NotificationCount](t, rec).UnreadCount)
	rec = a.do(http.MethodPost, "/api/notifications/read-all", author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/notifications/unread-count", author, nil)
	assert.Zero(t, decode[models.NotificationCount](t, rec).UnreadCount)

	_, stranger := a.register("stranger")
	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), author, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "post authors moderate their comments")

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), fan, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), author, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDirectChat(t *testing.T) {
	a := newTestAPI(t)
	_, maya := a.register("maya")
	leoID, leo := a.register("leo")
	_, eve := a.register("eve")

	rec := a.do(http.MethodPost, fmt.Sprintf("/api/chat/direct/%d", leoID), maya, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	chat := decode[models.Chat](t, rec)
	assert.Equal(t, models.ChatKindDirect, chat.Kind)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/chat/direct/%d", leoID), maya, nil)
	assert.Equal(t, chat.ID, decode[models.Chat](t, rec).ID, "the direct chat is reused")

	messages := fmt.Sprintf("/api/chat/%d/messages", chat.ID)
	rec = a.do(http.MethodPost, messages, maya, models.SendMessageRequest{Content: "see you at the show"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, messages, maya, models.SendMessageRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, messages, eve, models.SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, messages, leo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Message](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "see you at the show", list[0].Content)
	assert.Equal(t, []string{models.NotificationNewMessage}, notificationTypes(t, a, leo))

	rec = a.do(http.MethodGet, "/api/chat", leo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decode[[]models.Chat](t, rec)
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].UnreadCount)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/chat/%d/read", chat.ID), leo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/chat", leo, nil)
	assert.Zero(t, decode[[]models.Chat](t, rec)[0].UnreadCount)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/chat/%d/unknown", chat.ID), leo, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	a := newTestAPI(t)
	_, token := a.register("jazzcat")
	a.createEvent(token, eventBody("Jazz in the park", 40.7, -74.0))

	rec := a.do(http.MethodGet, "/api/search?q=", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodGet, "/api/search?q=jazz&type=planets", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/search?q=JAZZ", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := decode[models.SearchResults](t, rec)
	require.NotNil(t, results.Users)
	assert.Len(t, *results.Users, 1)
	require.NotNil(t, results.Events)
	assert.Len(t, *results.Events, 1)

	rec = a.do(http.MethodGet, "/api/search?q=jazz&type=events", token, nil)
	results = decode[models.SearchResults](t, rec)
	assert.Nil(t, results.Users)
	require.NotNil(t, results.Events)
	assert.Len(t, *results.Events, 1)

	rec = a.do(http.MethodGet, "/api/search?q=nobody&type=users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"nobody","users":[]}`, rec.Body.String())
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImageUpload(t *testing.T) {
	a := newTestAPI(t)
	_, token := a.register("snapper")
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		body, contentType := multipartImage(t, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("cover.png", png)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[UploadResponse](t, rec)
	require.True(t, strings.HasPrefix(resp.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(resp.URL, ".png"))
	_, err := os.Stat(filepath.Join(a.cfg.Uploads.Dir, strings.TrimPrefix(resp.URL, "/uploads/")))
	require.NoError(t, err)

	rec = a.do(http.MethodGet, resp.URL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = upload("notes.png", []byte("just some text pretending to be an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveUploadRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "half.png")
	errBroken := errors.New("connection reset")

	src := io.MultiReader(strings.NewReader("\x89PNG partial"), iotest.ErrReader(errBroken))
	err := saveUpload(path, src)
	require.ErrorIs(t, err, errBroken)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "partial upload left on disk")

	require.NoError(t, saveUpload(path, strings.NewReader("complete")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
}
