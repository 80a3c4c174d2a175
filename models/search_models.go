package models

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	apperrors "eventconnect/pkg/errors"
)

// Search scopes
const (
	SearchAll    = "all"
	SearchUsers  = "users"
	SearchEvents = "events"
	SearchTribes = "tribes"
)

// SearchRequest is a free-text query over one or all scopes.
type SearchRequest struct {
	Query string `json:"q" validate:"required,max=100"`
	Type  string `json:"type" validate:"omitempty,oneof=all users events tribes"`
	Limit int    `json:"limit"`
}

// SearchResults groups matches by kind. Scopes that were not searched are
// nil and omitted; a searched scope with no match is an empty list.
type SearchResults struct {
	Query  string         `json:"query"`
	Users  *[]UserSummary `json:"users,omitempty"`
	Events *[]Event       `json:"events,omitempty"`
	Tribes *[]Tribe       `json:"tribes,omitempty"`
}

// SearchService runs case-insensitive substring searches.
type SearchService struct {
	DB *sql.DB
}

// NewSearchService creates a new search service
func NewSearchService(db *sql.DB) *SearchService {
	return &SearchService{DB: db}
}

// Search matches usernames and display names, event titles, descriptions and
// venues, and tribe names, descriptions and categories.
func (ss *SearchService) Search(ctx context.Context, viewerID int64, req SearchRequest) (*SearchResults, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Type == "" {
		req.Type = SearchAll
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	page := Page{Limit: req.Limit}.Normalize()
	results := &SearchResults{Query: req.Query}

	if req.Type == SearchAll || req.Type == SearchUsers {
		users, err := ss.searchUsers(ctx, req.Query, page.Limit)
		if err != nil {
			return nil, err
		}
		results.Users = &users
	}
	if req.Type == SearchAll || req.Type == SearchEvents {
		events, err := NewEventService(ss.DB).List(ctx, viewerID, EventFilter{Query: req.Query, Page: page})
		if err != nil {
			return nil, err
		}
		results.Events = &events
	}
	if req.Type == SearchAll || req.Type == SearchTribes {
		tribes, err := ss.searchTribes(ctx, viewerID, req.Query, page)
		if err != nil {
			return nil, err
		}
		results.Tribes = &tribes
	}
	return results, nil
}

func (ss *SearchService) searchUsers(ctx context.Context, q string, limit int) ([]UserSummary, error) {
	query, args, err := goqu.Dialect("sqlite3").
		From("users").
		Select("id", "username", "display_name", "avatar").
		Where(textMatch(q, "username", "display_name")).
		Order(goqu.I("username").Asc()).
		Limit(uint(limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build user search", err)
	}
	rows, err := ss.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search users", err)
	}
	return scanUserSummaries(rows)
}

func (ss *SearchService) searchTribes(ctx context.Context, viewerID int64, q string, page Page) ([]Tribe, error) {
	inner, innerArgs, err := goqu.Dialect("sqlite3").
		From(goqu.T("tribes").As("t")).
		Select(goqu.I("t.id")).
		Where(textMatch(q, "t.name", "t.description", "t.category")).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build tribe search", err)
	}
	args := append([]interface{}{viewerID, viewerID}, innerArgs...)
	args = append(args, page.Limit)
	return NewTribeService(ss.DB).queryTribes(ctx,
		tribeSelect+" WHERE t.id IN ("+inner+") ORDER BY t.name LIMIT ?", args...)
}
