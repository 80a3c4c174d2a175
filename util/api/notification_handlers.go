package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/realtime"
	"eventconnect/util"
)

// GetNotificationsHandler retrieves notifications for the authenticated user
func GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	limit, err := util.QueryInt(r, "limit", 20)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	notifications, err := models.NewNotificationService(database.DB).GetNotifications(r.Context(), userID, models.NotificationFilter{
		Limit:      limit,
		UnreadOnly: unreadOnly,
	})
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, notifications)
}

// GetUnreadCountHandler returns the count of unread notifications
func GetUnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := models.NewNotificationService(database.DB).GetUnreadCount(r.Context(), currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, models.NotificationCount{UnreadCount: count})
}

// MarkNotificationAsReadHandler marks one notification as read
func MarkNotificationAsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	notificationID, err := util.PathID(r, "notificationID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewNotificationService(database.DB).MarkAsRead(r.Context(), notificationID, userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	BroadcastUnreadCountToUser(r.Context(), userID)
	util.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// MarkAllNotificationsAsReadHandler marks every notification of the caller as read
func MarkAllNotificationsAsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	updated, err := models.NewNotificationService(database.DB).MarkAllAsRead(r.Context(), userID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	BroadcastUnreadCountToUser(r.Context(), userID)
	util.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "updated": updated})
}

// DeleteNotificationHandler deletes one notification of the caller
func DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	notificationID, err := util.PathID(r, "notificationID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewNotificationService(database.DB).Delete(r.Context(), notificationID, userID); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	BroadcastUnreadCountToUser(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

// NotificationHelpers creates notifications and pushes them to their
// recipients. Failures are logged and never fail the calling request.
type NotificationHelpers struct{}

var notify = &NotificationHelpers{}

func (nh *NotificationHelpers) send(ctx context.Context, req models.CreateNotificationRequest) {
	if req.ActorID != nil && *req.ActorID == req.UserID {
		return
	}
	n, err := models.NewNotificationService(database.DB).CreateNotification(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("type", req.Type).Int64("user_id", req.UserID).Msg("failed to create notification")
		return
	}
	hub.SendToUser(ctx, req.UserID, realtime.TypeNotification, n)
	BroadcastUnreadCountToUser(ctx, req.UserID)
}

// actorName is the name used for userID in notification texts.
func (nh *NotificationHelpers) actorName(ctx context.Context, userID int64) string {
	s, err := models.NewUserService(database.DB).Summary(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to load notification actor")
		return "Someone"
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// NewFollower tells targetID that followerID follows them.
func (nh *NotificationHelpers) NewFollower(ctx context.Context, followerID, targetID int64) {
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      targetID,
		Type:        models.NotificationNewFollower,
		Title:       "New Follower",
		Message:     nh.actorName(ctx, followerID) + " started following you",
		RelatedID:   int64Ptr(followerID),
		RelatedType: stringPtr(models.RelatedTypeUser),
		ActorID:     int64Ptr(followerID),
	})
}

// EventRSVP tells the host that userID responded to their event.
func (nh *NotificationHelpers) EventRSVP(ctx context.Context, event *models.Event, userID int64, status string) {
	verb := "is going to"
	if status == models.AttendInterested {
		verb = "is interested in"
	}
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      event.Host.ID,
		Type:        models.NotificationEventRSVP,
		Title:       "New RSVP",
		Message:     fmt.Sprintf("%s %s %s", nh.actorName(ctx, userID), verb, event.Title),
		RelatedID:   int64Ptr(event.ID),
		RelatedType: stringPtr(models.RelatedTypeEvent),
		ActorID:     int64Ptr(userID),
	})
}

// TribeEvent tells the tribe members about a new tribe event.
func (nh *NotificationHelpers) TribeEvent(ctx context.Context, event *models.Event, memberIDs []int64) {
	if len(memberIDs) == 0 {
		return
	}
	title := "New Tribe Event"
	message := nh.actorName(ctx, event.Host.ID) + " created " + event.Title
	for _, memberID := range memberIDs {
		nh.send(ctx, models.CreateNotificationRequest{
			UserID:      memberID,
			Type:        models.NotificationEventCreated,
			Title:       title,
			Message:     message,
			RelatedID:   int64Ptr(event.ID),
			RelatedType: stringPtr(models.RelatedTypeEvent),
			ActorID:     int64Ptr(event.Host.ID),
		})
	}
}

// EventChanged tells the attendees that an event was updated or cancelled.
func (nh *NotificationHelpers) EventChanged(ctx context.Context, event *models.Event, attendeeIDs []int64, cancelled bool) {
	notificationType, title, message := models.NotificationEventUpdated, "Event Updated", event.Title+" was updated"
	if cancelled {
		notificationType, title, message = models.NotificationEventCancelled, "Event Cancelled", event.Title+" was cancelled"
	}
	for _, attendeeID := range attendeeIDs {
		nh.send(ctx, models.CreateNotificationRequest{
			UserID:      attendeeID,
			Type:        notificationType,
			Title:       title,
			Message:     message,
			RelatedID:   int64Ptr(event.ID),
			RelatedType: stringPtr(models.RelatedTypeEvent),
			ActorID:     int64Ptr(event.Host.ID),
		})
	}
}

// EventReview tells the host about a new review.
func (nh *NotificationHelpers) EventReview(ctx context.Context, event *models.Event, review *models.Review) {
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      event.Host.ID,
		Type:        models.NotificationEventReview,
		Title:       "New Review",
		Message:     fmt.Sprintf("%s rated %s %d/5", nh.actorName(ctx, review.Author.ID), event.Title, review.Rating),
		RelatedID:   int64Ptr(event.ID),
		RelatedType: stringPtr(models.RelatedTypeEvent),
		ActorID:     int64Ptr(review.Author.ID),
	})
}

// TribeJoin tells the moderators that userID joined, or asked to join.
func (nh *NotificationHelpers) TribeJoin(ctx context.Context, tribe *models.Tribe, userID int64, pending bool, moderatorIDs []int64) {
	notificationType, title, message := models.NotificationTribeJoin, "New Member", nh.actorName(ctx, userID)+" joined "+tribe.Name
	if pending {
		notificationType, title, message = models.NotificationTribeRequest, "Join Request", nh.actorName(ctx, userID)+" wants to join "+tribe.Name
	}
	for _, moderatorID := range moderatorIDs {
		nh.send(ctx, models.CreateNotificationRequest{
			UserID:      moderatorID,
			Type:        notificationType,
			Title:       title,
			Message:     message,
			RelatedID:   int64Ptr(tribe.ID),
			RelatedType: stringPtr(models.RelatedTypeTribe),
			ActorID:     int64Ptr(userID),
		})
	}
}

// TribeApproved tells userID their join request was approved.
func (nh *NotificationHelpers) TribeApproved(ctx context.Context, tribe *models.Tribe, userID, moderatorID int64) {
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      userID,
		Type:        models.NotificationTribeApproved,
		Title:       "Request Approved",
		Message:     "You are now a member of " + tribe.Name,
		RelatedID:   int64Ptr(tribe.ID),
		RelatedType: stringPtr(models.RelatedTypeTribe),
		ActorID:     int64Ptr(moderatorID),
	})
}

// PostLike tells the author that likerID liked their post.
func (nh *NotificationHelpers) PostLike(ctx context.Context, post *models.PostResponse, likerID int64) {
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      post.Author.ID,
		Type:        models.NotificationPostLike,
		Title:       "Post Liked",
		Message:     nh.actorName(ctx, likerID) + " liked your post",
		RelatedID:   int64Ptr(post.ID),
		RelatedType: stringPtr(models.RelatedTypePost),
		ActorID:     int64Ptr(likerID),
	})
}

// PostComment tells the author about a new comment on their post.
func (nh *NotificationHelpers) PostComment(ctx context.Context, post *models.PostResponse, comment *models.CommentResponse) {
	nh.send(ctx, models.CreateNotificationRequest{
		UserID:      post.Author.ID,
		Type:        models.NotificationPostComment,
		Title:       "New Comment",
		Message:     nh.actorName(ctx, comment.Author.ID) + " commented on your post",
		RelatedID:   int64Ptr(post.ID),
		RelatedType: stringPtr(models.RelatedTypePost),
		ActorID:     int64Ptr(comment.Author.ID),
	})
}

// DirectMessage tells the recipient of a direct chat about a new message.
func (nh *NotificationHelpers) DirectMessage(ctx context.Context, chat *models.Chat, msg *models.Message, recipientIDs []int64) {
	if chat.Kind != models.ChatKindDirect {
		return
	}
	name := msg.Sender.DisplayName
	if name == "" {
		name = msg.Sender.Username
	}
	for _, recipientID := range recipientIDs {
		nh.send(ctx, models.CreateNotificationRequest{
			UserID:      recipientID,
			Type:        models.NotificationNewMessage,
			Title:       "New Message",
			Message:     name + " sent you a message",
			RelatedID:   int64Ptr(chat.ID),
			RelatedType: stringPtr(models.RelatedTypeChat),
			ActorID:     int64Ptr(msg.Sender.ID),
		})
	}
}

// BroadcastUnreadCountToUser sends the unread notification count over the
// real-time channel.
func BroadcastUnreadCountToUser(ctx context.Context, userID int64) {
	count, err := models.NewNotificationService(database.DB).GetUnreadCount(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to load unread count")
		return
	}
	hub.SendToUser(ctx, userID, realtime.TypeNotificationCount, models.NotificationCount{UnreadCount: count})
}
