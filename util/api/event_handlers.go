package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/pkg/geo"
	"eventconnect/realtime"
	"eventconnect/util"
)

// createEvent stores an event and announces tribe events to the tribe. It
// serves both POST /api/events and the create-event socket message.
func createEvent(ctx context.Context, hostID int64, req models.CreateEventRequest) (*models.Event, error) {
	event, err := models.NewEventService(database.DB).Create(ctx, hostID, req)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("event_id", event.ID).Int64("host_id", hostID).Msg("event created")

	if event.TribeID != nil {
		memberIDs, err := models.NewTribeService(database.DB).ActiveMemberIDs(ctx, *event.TribeID)
		if err != nil {
			log.Error().Err(err).Int64("tribe_id", *event.TribeID).Msg("failed to load tribe members")
		}
		notify.TribeEvent(ctx, event, memberIDs)
		hub.SendToRoom(ctx, realtime.TribeRoom(*event.TribeID), realtime.TypeEventCreated, event, hostID)
	}
	return event, nil
}

// CreateEventHandler creates an event hosted by the caller.
// POST /api/events
func CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	event, err := createEvent(r.Context(), currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusCreated, event)
}

// ListEventsHandler lists events with optional filters.
// GET /api/events?category&tribe_id&host_id&from&to&q&limit&offset
func ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilterFromQuery(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	events, err := models.NewEventService(database.DB).List(r.Context(), currentUserID(r), filter)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, events)
}

func eventFilterFromQuery(r *http.Request) (models.EventFilter, error) {
	q := r.URL.Query()
	filter := models.EventFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
	var err error
	if filter.TribeID, err = util.QueryInt64Ptr(r, "tribe_id"); err != nil {
		return filter, err
	}
	if filter.HostID, err = util.QueryInt64Ptr(r, "host_id"); err != nil {
		return filter, err
	}
	if filter.From, err = util.QueryTimePtr(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = util.QueryTimePtr(r, "to"); err != nil {
		return filter, err
	}
	if filter.Page, err = util.QueryPage(r); err != nil {
		return filter, err
	}
	return filter, nil
}

// NearbyEventsHandler lists upcoming events around a point, nearest first.
// GET /api/events/nearby?lat&lng&radius_km&limit
func NearbyEventsHandler(w http.ResponseWriter, r *http.Request) {
	lat, err := util.QueryFloatPtr(r, "lat")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	lng, err := util.QueryFloatPtr(r, "lng")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if lat == nil || lng == nil {
		util.RespondWithError(w, r, apperrors.NewFieldValidationError("lat and lng are required", map[string]string{
			"lat": "is required",
			"lng": "is required",
		}))
		return
	}
	radius, err := util.QueryFloatPtr(r, "radius_km")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	limit, err := util.QueryInt(r, "limit", 0)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	radiusKm := models.DefaultNearbyRadiusKm
	if radius != nil {
		radiusKm = *radius
	}
	events, err := models.NewEventService(database.DB).Nearby(r.Context(), currentUserID(r), geo.Point{Lat: *lat, Lng: *lng}, radiusKm, limit)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, events)
}

// PulseEventsHandler lists upcoming events around the caller's stored location.
// GET /api/events/pulse
func PulseEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := util.QueryInt(r, "limit", 0)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	events, err := models.NewEventService(database.DB).Pulse(r.Context(), currentUserID(r), pulseRadiusKm, limit)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, events)
}

// GetEventHandler returns one event with its attendance counts.
// GET /api/events/{eventID}
func GetEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	event, err := models.NewEventService(database.DB).Get(r.Context(), eventID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, event)
}

// UpdateEventHandler edits an event and tells its attendees.
// PUT /api/events/{eventID}
func UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.UpdateEventRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	events := models.NewEventService(database.DB)
	event, err := events.Update(r.Context(), eventID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if attendeeIDs, err := events.AttendeeIDs(r.Context(), eventID); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("failed to load attendees")
	} else {
		notify.EventChanged(r.Context(), event, attendeeIDs, false)
	}
	util.RespondWithJSON(w, http.StatusOK, event)
}

// DeleteEventHandler cancels an event and tells its attendees.
// DELETE /api/events/{eventID}
func DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	event, attendeeIDs, err := models.NewEventService(database.DB).Delete(r.Context(), eventID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	notify.EventChanged(r.Context(), event, attendeeIDs, true)
	w.WriteHeader(http.StatusNoContent)
}

// AttendEventHandler records the caller's RSVP and tells the host.
// POST /api/events/{eventID}/attend
func AttendEventHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.AttendRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	events := models.NewEventService(database.DB)
	attendance, err := events.Attend(r.Context(), eventID, userID, req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	if event, err := events.Get(r.Context(), eventID, userID); err == nil {
		notify.EventRSVP(r.Context(), event, userID, attendance.Status)
	}
	util.RespondWithJSON(w, http.StatusOK, attendance)
}

// UnattendEventHandler withdraws the caller's RSVP.
// DELETE /api/events/{eventID}/attend
func UnattendEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	attendance, err := models.NewEventService(database.DB).Unattend(r.Context(), eventID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, attendance)
}

// GetEventAttendeesHandler lists the RSVPs of an event.
// GET /api/events/{eventID}/attendees?status
func GetEventAttendeesHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && status != models.AttendGoing && status != models.AttendInterested {
		util.RespondWithError(w, r, apperrors.NewFieldValidationError("invalid query parameter status", map[string]string{
			"status": "must be one of: going interested",
		}))
		return
	}

	attendees, err := models.NewEventService(database.DB).Attendees(r.Context(), eventID, currentUserID(r), status, page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, attendees)
}

// CreateReviewHandler lets an attendee review an event.
// POST /api/events/{eventID}/reviews
func CreateReviewHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.CreateReviewRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	review, event, err := models.NewReviewService(database.DB).Create(r.Context(), eventID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	notify.EventReview(r.Context(), event, review)
	util.RespondWithJSON(w, http.StatusCreated, review)
}

// ListReviewsHandler lists an event's reviews with their average rating.
// GET /api/events/{eventID}/reviews
func ListReviewsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := util.PathID(r, "eventID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	page, err := util.QueryPage(r)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	reviews, err := models.NewReviewService(database.DB).List(r.Context(), eventID, currentUserID(r), page)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, reviews)
}
