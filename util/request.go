package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"eventconnect/models"
	apperrors "eventconnect/pkg/errors"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON body into v. Unknown fields are ignored.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.NewValidationError("request body too large")
		}
		return apperrors.NewValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}

// PathID parses the {name} path segment as a positive id.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewFieldValidationError("invalid "+name, map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

// QueryInt parses an integer query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(name, "must be an integer")
	}
	return v, nil
}

// QueryInt64Ptr parses an optional id query parameter.
func QueryInt64Ptr(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, queryError(name, "must be an integer")
	}
	return &v, nil
}

// QueryFloatPtr parses an optional float query parameter.
func QueryFloatPtr(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, queryError(name, "must be a number")
	}
	return &v, nil
}

// QueryTimePtr parses an optional RFC 3339 timestamp.
func QueryTimePtr(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, queryError(name, "must be an RFC 3339 timestamp")
	}
	return &v, nil
}

// QueryPage reads limit and offset.
func QueryPage(r *http.Request) (models.Page, error) {
	limit, err := QueryInt(r, "limit", 0)
	if err != nil {
		return models.Page{}, err
	}
	offset, err := QueryInt(r, "offset", 0)
	if err != nil {
		return models.Page{}, err
	}
	return models.Page{Limit: limit, Offset: offset}.Normalize(), nil
}

func queryError(name, msg string) error {
	return apperrors.NewFieldValidationError(fmt.Sprintf("invalid query parameter %s", name), map[string]string{name: msg})
}
