package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/util"
)

// UserIDKey is the key used to store the UserID in the request context.
type UserIDKeyType string

const UserIDKey UserIDKeyType = "userID"

// UserIDFromContext returns the authenticated user id set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok && userID != 0
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// AuthMiddleware resolves the session token of the request and rejects the
// request with 401 when there is none or it has expired.
func AuthMiddleware(next http.Handler) http.Handler {
	return authenticate(next, false)
}

// WebSocketAuthMiddleware is AuthMiddleware that also accepts ?token=.
func WebSocketAuthMiddleware(next http.Handler) http.Handler {
	return authenticate(next, true)
}

func authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := util.TokenFromRequest(r, allowQuery)
		if token == "" {
			util.RespondWithError(w, r, apperrors.NewUnauthorizedError("authentication required"))
			return
		}

		userID, err := models.NewSessionService(database.DB, 0).Resolve(r.Context(), token)
		if err != nil {
			util.RespondWithError(w, r, err)
			return
		}
		if userID == 0 {
			log.Debug().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rejected invalid or expired session")
			util.RespondWithError(w, r, apperrors.NewUnauthorizedError("invalid or expired session"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
