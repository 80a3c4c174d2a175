package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/pkg/geo"
)

// DefaultNearbyRadiusKm applies when a proximity query names no radius.
const DefaultNearbyRadiusKm = 25.0

// Attendance states
const (
	AttendGoing      = "going"
	AttendInterested = "interested"
)

// Event is a scheduled, located happening.
type Event struct {
	ID          int64       `json:"id"`
	Host        UserSummary `json:"host"`
	TribeID     *int64      `json:"tribe_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      *time.Time  `json:"ends_at"`
	Venue       string      `json:"venue"`
	Address     string      `json:"address"`
	Location    geo.Point   `json:"location"`
	Capacity    int         `json:"capacity"`
	CoverImage  string      `json:"cover_image"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	GoingCount      int      `json:"going_count"`
	InterestedCount int      `json:"interested_count"`
	MyStatus        string   `json:"my_status,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
}

// Started reports whether the event has begun at t.
func (e *Event) Started(t time.Time) bool {
	return !e.StartsAt.After(t)
}

// Ended reports whether the event is over at t. Events without an end time
// end when they start.
func (e *Event) Ended(t time.Time) bool {
	end := e.StartsAt
	if e.EndsAt != nil {
		end = *e.EndsAt
	}
	return end.Before(t)
}

// CreateEventRequest is the payload for creating an event over REST or the
// real-time channel.
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=120"`
	Description string     `json:"description" validate:"max=5000"`
	Category    string     `json:"category" validate:"max=40"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at"`
	Venue       string     `json:"venue" validate:"max=200"`
	Address     string     `json:"address" validate:"max=300"`
	Lat         *float64   `json:"lat" validate:"required"`
	Lng         *float64   `json:"lng" validate:"required"`
	Capacity    int        `json:"capacity" validate:"gte=0,lte=100000"`
	CoverImage  string     `json:"cover_image" validate:"max=500"`
	TribeID     *int64     `json:"tribe_id"`
}

// UpdateEventRequest carries the editable event fields.
type UpdateEventRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Category    *string    `json:"category" validate:"omitempty,max=40"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	ClearEndsAt bool       `json:"clear_ends_at"` // drops ends_at; wins over EndsAt
	Venue       *string    `json:"venue" validate:"omitempty,max=200"`
	Address     *string    `json:"address" validate:"omitempty,max=300"`
	Lat         *float64   `json:"lat"`
	Lng         *float64   `json:"lng"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gte=0,lte=100000"`
	CoverImage  *string    `json:"cover_image" validate:"omitempty,max=500"`
}

// AttendRequest is an RSVP.
type AttendRequest struct {
	Status string `json:"status" validate:"required,oneof=going interested"`
}

// Attendance is the caller's RSVP state after an attend call.
type Attendance struct {
	EventID         int64  `json:"event_id"`
	Status          string `json:"status"`
	GoingCount      int    `json:"going_count"`
	InterestedCount int    `json:"interested_count"`
}

// Attendee is a user with their RSVP.
type Attendee struct {
	UserSummary
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// EventFilter narrows an event listing.
type EventFilter struct {
	Category string
	TribeID  *int64
	HostID   *int64
	From     *time.Time
	To       *time.Time
	Query    string
	Page     Page
}

// EventService handles events and attendance.
type EventService struct {
	DB *sql.DB
}

// NewEventService creates a new event service
func NewEventService(db *sql.DB) *EventService {
	return &EventService{DB: db}
}

const eventColumns = `e.id, e.title, e.description, e.category, e.starts_at, e.ends_at, e.venue, e.address,
	e.latitude, e.longitude, e.capacity, e.cover_image, e.tribe_id, e.created_at, e.updated_at,
	u.id, u.username, u.display_name, u.avatar,
	(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id AND a.status = 'going'),
	(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id AND a.status = 'interested'),
	COALESCE((SELECT a.status FROM event_attendees a WHERE a.event_id = e.id AND a.user_id = ?), '')`

// eventsQuery selects the events viewerID may see. Events of private tribes
// are only visible to their active members.
func eventsQuery(viewerID int64) *goqu.SelectDataset {
	return goqu.Dialect("sqlite3").
		From(goqu.T("events").As("e")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("e.host_id")))).
		Select(goqu.L(eventColumns, viewerID)).
		Where(goqu.L(`(e.tribe_id IS NULL
			OR e.tribe_id IN (SELECT id FROM tribes WHERE is_private = FALSE)
			OR e.tribe_id IN (SELECT tribe_id FROM tribe_members WHERE user_id = ? AND status = 'active'))`, viewerID)).
		Prepared(true)
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var endsAt sql.NullTime
	var tribeID sql.NullInt64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.StartsAt, &endsAt, &e.Venue, &e.Address,
		&e.Location.Lat, &e.Location.Lng, &e.Capacity, &e.CoverImage, &tribeID, &e.CreatedAt, &e.UpdatedAt,
		&e.Host.ID, &e.Host.Username, &e.Host.DisplayName, &e.Host.Avatar,
		&e.GoingCount, &e.InterestedCount, &e.MyStatus); err != nil {
		return nil, err
	}
	if endsAt.Valid {
		t := endsAt.Time
		e.EndsAt = &t
	}
	e.TribeID = database.Int64Ptr(tribeID)
	return &e, nil
}

func (es *EventService) queryEvents(ctx context.Context, ds *goqu.SelectDataset) ([]Event, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build event query", err)
	}
	rows, err := es.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query events", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate events", err)
	}
	return events, nil
}

// Create stores a new event hosted by hostID. Tribe events require the host
// to be an active member of the tribe.
func (es *EventService) Create(ctx context.Context, hostID int64, req CreateEventRequest) (*Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := Validate(req); err != nil {
		return nil, err
	}
	loc := geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	if err := loc.Validate(); err != nil {
		return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"location": err.Error()})
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"ends_at": "must be after starts_at"})
	}
	if req.TribeID != nil {
		member, err := NewTribeService(es.DB).Membership(ctx, *req.TribeID, hostID)
		if err != nil {
			return nil, err
		}
		if !member.Active() {
			return nil, apperrors.NewForbiddenError("only tribe members can create tribe events")
		}
	}

	var endsAt sql.NullTime
	if req.EndsAt != nil {
		endsAt = sql.NullTime{Time: req.EndsAt.UTC(), Valid: true}
	}
	now := time.Now().UTC()
	res, err := es.DB.ExecContext(ctx, `
		INSERT INTO events (host_id, tribe_id, title, description, category, starts_at, ends_at, venue, address,
			latitude, longitude, capacity, cover_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, hostID, database.NullInt64(req.TribeID), req.Title, strings.TrimSpace(req.Description),
		strings.ToLower(strings.TrimSpace(req.Category)), req.StartsAt.UTC(), endsAt,
		strings.TrimSpace(req.Venue), strings.TrimSpace(req.Address), loc.Lat, loc.Lng,
		req.Capacity, req.CoverImage, now, now)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.NewNotFoundError("tribe not found")
		}
		return nil, apperrors.NewInternalError("failed to create event", err)
	}
	id, _ := res.LastInsertId()
	return es.Get(ctx, id, hostID)
}

// Get loads an event as seen by viewerID.
func (es *EventService) Get(ctx context.Context, eventID, viewerID int64) (*Event, error) {
	query, args, err := eventsQuery(viewerID).Where(goqu.I("e.id").Eq(eventID)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build event query", err)
	}
	e, err := scanEvent(es.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("event not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load event", err)
	}
	return e, nil
}

// List returns the events matching filter ordered by start time.
func (es *EventService) List(ctx context.Context, viewerID int64, filter EventFilter) ([]Event, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"to": "must not be before from"})
	}
	page := filter.Page.Normalize()

	ds := eventsQuery(viewerID)
	if filter.Category != "" {
		ds = ds.Where(goqu.I("e.category").Eq(strings.ToLower(filter.Category)))
	}
	if filter.TribeID != nil {
		ds = ds.Where(goqu.I("e.tribe_id").Eq(*filter.TribeID))
	}
	if filter.HostID != nil {
		ds = ds.Where(goqu.I("e.host_id").Eq(*filter.HostID))
	}
	if filter.From != nil {
		ds = ds.Where(goqu.I("e.starts_at").Gte(filter.From.UTC()))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.I("e.starts_at").Lte(filter.To.UTC()))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ds = ds.Where(textMatch(q, "e.title", "e.description", "e.venue"))
	}
	ds = ds.Order(goqu.I("e.starts_at").Asc(), goqu.I("e.id").Asc()).
		Limit(uint(page.Limit)).Offset(uint(page.Offset))
	return es.queryEvents(ctx, ds)
}

// Nearby returns the upcoming events within radiusKm of center, nearest first.
func (es *EventService) Nearby(ctx context.Context, viewerID int64, center geo.Point, radiusKm float64, limit int) ([]Event, error) {
	if err := center.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	radiusKm = geo.ClampRadius(radiusKm, DefaultNearbyRadiusKm)
	box := geo.BoundingBox(center, radiusKm)

	var lngCond exp.Expression = goqu.I("e.longitude").Between(goqu.Range(box.MinLng, box.MaxLng))
	if box.CrossesAntimeridian() {
		lngCond = goqu.Or(goqu.I("e.longitude").Gte(box.MinLng), goqu.I("e.longitude").Lte(box.MaxLng))
	}
	ds := eventsQuery(viewerID).Where(
		goqu.I("e.latitude").Between(goqu.Range(box.MinLat, box.MaxLat)),
		lngCond,
		goqu.L("COALESCE(e.ends_at, e.starts_at) >= ?", time.Now().UTC()),
	)
	candidates, err := es.queryEvents(ctx, ds)
	if err != nil {
		return nil, err
	}

	nearby := make([]Event, 0, len(candidates))
	for _, e := range candidates {
		d := geo.DistanceKm(center, e.Location)
		if d > radiusKm {
			continue
		}
		e.DistanceKm = &d
		nearby = append(nearby, e)
	}
	sortByDistance(nearby, func(e Event) float64 { return *e.DistanceKm })
	page := Page{Limit: limit}.Normalize()
	if len(nearby) > page.Limit {
		nearby = nearby[:page.Limit]
	}
	return nearby, nil
}

// Pulse returns the upcoming events around userID's stored location.
func (es *EventService) Pulse(ctx context.Context, userID int64, radiusKm float64, limit int) ([]Event, error) {
	loc, err := NewUserService(es.DB).Location(ctx, userID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, apperrors.NewValidationError("share your location to see events around you")
	}
	return es.Nearby(ctx, userID, *loc, radiusKm, limit)
}

// Update edits an event. Only the host may.
func (es *EventService) Update(ctx context.Context, eventID, userID int64, req UpdateEventRequest) (*Event, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	e, err := es.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if e.Host.ID != userID {
		return nil, apperrors.NewForbiddenError("only the host can edit this event")
	}

	if req.Title != nil {
		e.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		e.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.StartsAt != nil {
		e.StartsAt = req.StartsAt.UTC()
	}
	switch {
	case req.ClearEndsAt:
		e.EndsAt = nil
	case req.EndsAt != nil:
		t := req.EndsAt.UTC()
		e.EndsAt = &t
	}
	if req.Venue != nil {
		e.Venue = strings.TrimSpace(*req.Venue)
	}
	if req.Address != nil {
		e.Address = strings.TrimSpace(*req.Address)
	}
	if req.Lat != nil {
		e.Location.Lat = *req.Lat
	}
	if req.Lng != nil {
		e.Location.Lng = *req.Lng
	}
	if req.Capacity != nil {
		e.Capacity = *req.Capacity
	}
	if req.CoverImage != nil {
		e.CoverImage = *req.CoverImage
	}

	fields := map[string]string{}
	if err := e.Location.Validate(); err != nil {
		fields["location"] = err.Error()
	}
	if e.EndsAt != nil && !e.EndsAt.After(e.StartsAt) {
		fields["ends_at"] = "must be after starts_at"
	}
	if e.Capacity > 0 && e.Capacity < e.GoingCount {
		fields["capacity"] = "must not be below the number of attendees going"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError("invalid request", fields)
	}

	var endsAt sql.NullTime
	if e.EndsAt != nil {
		endsAt = sql.NullTime{Time: *e.EndsAt, Valid: true}
	}
	_, err = es.DB.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, category = ?, starts_at = ?, ends_at = ?, venue = ?,
			address = ?, latitude = ?, longitude = ?, capacity = ?, cover_image = ?, updated_at = ?
		WHERE id = ?
	`, e.Title, e.Description, e.Category, e.StartsAt, endsAt, e.Venue, e.Address,
		e.Location.Lat, e.Location.Lng, e.Capacity, e.CoverImage, time.Now().UTC(), eventID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update event", err)
	}
	return es.Get(ctx, eventID, userID)
}

// Delete removes an event and returns the users who had responded to it.
// Only the host may.
func (es *EventService) Delete(ctx context.Context, eventID, userID int64) (*Event, []int64, error) {
	e, err := es.Get(ctx, eventID, userID)
	if err != nil {
		return nil, nil, err
	}
	if e.Host.ID != userID {
		return nil, nil, apperrors.NewForbiddenError("only the host can delete this event")
	}
	attendees, err := es.AttendeeIDs(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := es.DB.ExecContext(ctx, "DELETE FROM events WHERE id = ?", eventID); err != nil {
		return nil, nil, apperrors.NewInternalError("failed to delete event", err)
	}
	return e, attendees, nil
}

// Attend records userID's RSVP. Going is refused once the event is full.
func (es *EventService) Attend(ctx context.Context, eventID, userID int64, req AttendRequest) (*Attendance, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	e, err := es.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if e.Ended(time.Now()) {
		return nil, apperrors.NewValidationError("this event has already ended")
	}

	tx, err := es.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if req.Status == AttendGoing && e.Capacity > 0 {
		var going int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND status = 'going' AND user_id != ?
		`, eventID, userID).Scan(&going); err != nil {
			return nil, apperrors.NewInternalError("failed to count attendees", err)
		}
		if going >= e.Capacity {
			return nil, apperrors.NewConflictError("this event is full")
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO event_attendees (event_id, user_id, status, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, user_id) DO UPDATE SET status = excluded.status
	`, eventID, userID, req.Status, time.Now().UTC()); err != nil {
		return nil, apperrors.NewInternalError("failed to save attendance", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit attendance", err)
	}
	return es.attendance(ctx, eventID, userID)
}

// Unattend withdraws userID's RSVP.
func (es *EventService) Unattend(ctx context.Context, eventID, userID int64) (*Attendance, error) {
	if _, err := es.Get(ctx, eventID, userID); err != nil {
		return nil, err
	}
	res, err := es.DB.ExecContext(ctx, "DELETE FROM event_attendees WHERE event_id = ? AND user_id = ?", eventID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to remove attendance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NewNotFoundError("you have not responded to this event")
	}
	return es.attendance(ctx, eventID, userID)
}

func (es *EventService) attendance(ctx context.Context, eventID, userID int64) (*Attendance, error) {
	a := &Attendance{EventID: eventID}
	err := es.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND status = 'going'),
			(SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND status = 'interested'),
			COALESCE((SELECT status FROM event_attendees WHERE event_id = ? AND user_id = ?), '')
	`, eventID, eventID, eventID, userID).Scan(&a.GoingCount, &a.InterestedCount, &a.Status)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load attendance", err)
	}
	return a, nil
}

// Attendees lists the RSVPs of an event, optionally by status.
func (es *EventService) Attendees(ctx context.Context, eventID, viewerID int64, status string, page Page) ([]Attendee, error) {
	if _, err := es.Get(ctx, eventID, viewerID); err != nil {
		return nil, err
	}
	if status != "" && status != AttendGoing && status != AttendInterested {
		return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"status": "must be one of: going interested"})
	}

	query := `
		SELECT u.id, u.username, u.display_name, u.avatar, a.status, a.created_at
		FROM event_attendees a JOIN users u ON u.id = a.user_id
		WHERE a.event_id = ?`
	args := []interface{}{eventID}
	if status != "" {
		query += " AND a.status = ?"
		args = append(args, status)
	}
	page = page.Normalize()
	query += " ORDER BY a.created_at, u.id LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := es.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query attendees", err)
	}
	defer rows.Close()

	attendees := []Attendee{}
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.ID, &a.Username, &a.DisplayName, &a.Avatar, &a.Status, &a.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan attendee", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate attendees", err)
	}
	return attendees, nil
}

// AttendeeIDs returns every user who responded to an event.
func (es *EventService) AttendeeIDs(ctx context.Context, eventID int64) ([]int64, error) {
	rows, err := es.DB.QueryContext(ctx, "SELECT user_id FROM event_attendees WHERE event_id = ?", eventID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query attendees", err)
	}
	return scanIDs(rows)
}

// textMatch is a case-insensitive substring match of q over columns.
func textMatch(q string, columns ...string) exp.Expression {
	pattern := likePattern(q)
	ors := make([]exp.Expression, 0, len(columns))
	for _, c := range columns {
		ors = append(ors, goqu.L(c+` LIKE ? ESCAPE '\'`, pattern))
	}
	return goqu.Or(ors...)
}
