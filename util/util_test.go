package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eventconnect/pkg/errors"
)

func TestTokenFromRequest(t *testing.T) {
	t.Run("cookie wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?token=query", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie"})
		req.Header.Set("Authorization", "Bearer header")
		assert.Equal(t, "cookie", TokenFromRequest(req, true))
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer  abc ")
		assert.Equal(t, "abc", TokenFromRequest(req, false))
	})

	t.Run("other schemes are ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		assert.Empty(t, TokenFromRequest(req, false))
	})

	t.Run("query only when allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
		assert.Empty(t, TokenFromRequest(req, false))
		assert.Equal(t, "q", TokenFromRequest(req, true))
	})
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Now().Add(time.Hour), true)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, false)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events/12", nil)
	req.SetPathValue("eventID", "12")
	id, err := PathID(req, "eventID")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req.SetPathValue("eventID", raw)
		_, err := PathID(req, "eventID")
		appErr, ok := apperrors.As(err)
		require.True(t, ok, raw)
		assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
		assert.Contains(t, appErr.Fields, "eventID")
	}
}

func TestQueryPage(t *testing.T) {
	page, err := QueryPage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.Zero(t, page.Offset)

	page, err = QueryPage(httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-1", nil))
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Zero(t, page.Offset)

	_, err = QueryPage(httptest.NewRequest(http.MethodGet, "/?limit=ten", nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestOptionalQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lat=1.5&tribe_id=4&from=2026-01-02T15:04:05Z&bad=x", nil)

	lat, err := QueryFloatPtr(req, "lat")
	require.NoError(t, err)
	require.NotNil(t, lat)
	assert.Equal(t, 1.5, *lat)

	tribeID, err := QueryInt64Ptr(req, "tribe_id")
	require.NoError(t, err)
	require.NotNil(t, tribeID)
	assert.Equal(t, int64(4), *tribeID)

	from, err := QueryTimePtr(req, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.Equal(t, 2026, from.Year())

	missing, err := QueryFloatPtr(req, "lng")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryFloatPtr(req, "bad")
	assert.Error(t, err)
	_, err = QueryTimePtr(req, "bad")
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"hike","extra":1}`))
	require.NoError(t, DecodeJSON(rec, req, &body))
	assert.Equal(t, "hike", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSON(rec, req, &body)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.True(t, apperrors.Is(DecodeJSON(rec, req, &body), apperrors.ErrorTypeValidation))

	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	err = DecodeJSON(rec, req, &body)
	assert.Contains(t, err.Error(), "too large")
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	RespondWithError(rec, req, apperrors.NewFieldValidationError("invalid input", map[string]string{"title": "is required"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid input", body.Error)
	assert.Equal(t, "is required", body.Fields["title"])

	rec = httptest.NewRecorder()
	RespondWithError(rec, req, apperrors.NewConflictError("event is full"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	RespondWithError(rec, req, apperrors.NewInternalError("failed to load", errors.New("disk on fire")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	assert.Contains(t, rec.Body.String(), "internal server error")

	rec = httptest.NewRecorder()
	RespondWithError(rec, req, errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
