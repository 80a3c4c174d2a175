package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	apperrors "eventconnect/pkg/errors"
	"eventconnect/util"
)

// RecoveryMiddleware turns a panic in a handler into a logged 500.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			log.Error().
				Interface("panic", rec).
				Str("request_id", RequestIDFromContext(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
			util.RespondWithError(w, r, apperrors.NewInternalError("panic", nil))
		}()
		next.ServeHTTP(w, r)
	})
}
