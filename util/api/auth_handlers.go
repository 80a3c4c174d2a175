package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/util"
)

// AuthResponse is returned by register and login. The token is also set as
// the session cookie; mobile clients send it as a bearer token instead.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// RegisterHandler handles user registration.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	user, err := models.NewUserService(database.DB).Register(r.Context(), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	startSession(w, r, http.StatusCreated, user)
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
}

// LoginHandler handles user login.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	user, err := models.NewUserService(database.DB).Authenticate(r.Context(), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	startSession(w, r, http.StatusOK, user)
}

func startSession(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	session, err := models.NewSessionService(database.DB, sessionTTL).Create(r.Context(), user.ID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.SetSessionCookie(w, session.Token, session.ExpiresAt, secureCookies)
	util.RespondWithJSON(w, status, AuthResponse{User: user, Token: session.Token})
}

// LogoutHandler ends the caller's session.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token := util.TokenFromRequest(r, false)
	if err := models.NewSessionService(database.DB, sessionTTL).Delete(r.Context(), token); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.ClearSessionCookie(w, secureCookies)
	util.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// WhoAmIHandler returns the authenticated user.
func WhoAmIHandler(w http.ResponseWriter, r *http.Request) {
	user, err := models.NewUserService(database.DB).GetByID(r.Context(), currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, user)
}
