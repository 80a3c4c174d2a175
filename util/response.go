package util

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "eventconnect/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RespondWithJSON writes payload with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondWithError maps err to its status. Internal errors are logged and
// answered with a generic message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	body := ErrorResponse{Error: "internal server error"}
	if appErr, ok := apperrors.As(err); ok && status != http.StatusInternalServerError {
		body.Error = appErr.Message
		body.Fields = appErr.Fields
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	RespondWithJSON(w, status, body)
}
