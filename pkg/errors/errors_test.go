package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("event not found"), http.StatusNotFound},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"conflict", NewConflictError("taken"), http.StatusConflict},
		{"unauthorized", NewUnauthorizedError("login"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("host only"), http.StatusForbidden},
		{"internal", NewInternalError("boom", sql.ErrConnDone), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("plain"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NewForbiddenError("nope")), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppErrorFormatting(t *testing.T) {
	err := NewInternalError("failed to load", sql.ErrNoRows)
	assert.Equal(t, "INTERNAL: failed to load: sql: no rows in result set", err.Error())
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.Equal(t, "NOT_FOUND: tribe not found", NewNotFoundError("tribe not found").Error())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewConflictError("dup"))
	assert.True(t, Is(err, ErrorTypeConflict))
	assert.False(t, Is(err, ErrorTypeNotFound))
	assert.False(t, Is(fmt.Errorf("plain"), ErrorTypeConflict))
}
