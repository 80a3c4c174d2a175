package api

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	apperrors "eventconnect/pkg/errors"
	"eventconnect/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts non-browser clients and the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type joinTribesRequest struct {
	TribeIDs []int64 `json:"tribe_ids"`
}

type joinedTribes struct {
	TribeIDs []int64 `json:"tribe_ids"`
}

type wsSendMessageRequest struct {
	ChatID     int64  `json:"chat_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

type typingRequest struct {
	ChatID   int64 `json:"chat_id"`
	IsTyping bool  `json:"is_typing"`
}

type connectedPayload struct {
	UserID int64 `json:"user_id"`
}

// WebSocketHandler upgrades an authenticated request and serves the
// real-time protocol on it.
// GET /ws
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	ctx := r.Context()
	client := realtime.NewClient(hub, conn, userID)
	if hub.Register(client) {
		BroadcastUserStatusChange(ctx, userID, true)
	}
	log.Info().Int64("user_id", userID).Msg("websocket connected")

	go client.WritePump()
	client.SendJSON(realtime.TypeConnected, connectedPayload{UserID: userID})
	if count, err := models.NewNotificationService(database.DB).GetUnreadCount(ctx, userID); err == nil {
		client.SendJSON(realtime.TypeNotificationCount, models.NotificationCount{UnreadCount: count})
	}

	if client.ReadPump(ctx, handleWSMessage) {
		BroadcastUserStatusChange(ctx, userID, false)
	}
	log.Info().Int64("user_id", userID).Msg("websocket disconnected")
}

// handleWSMessage dispatches one client message.
func handleWSMessage(ctx context.Context, c *realtime.Client, msg realtime.WSMessage) {
	switch msg.Type {
	case realtime.TypeJoinTribes:
		var req joinTribesRequest
		if err := msg.Decode(&req); err != nil {
			c.SendError(err.Error())
			return
		}
		ids, err := models.NewTribeService(database.DB).ActiveTribeIDs(ctx, c.UserID, req.TribeIDs)
		if err != nil {
			sendWSError(c, err)
			return
		}
		for _, id := range ids {
			hub.Join(c, realtime.TribeRoom(id))
		}
		c.SendJSON(realtime.TypeJoinedTribes, joinedTribes{TribeIDs: ids})

	case realtime.TypeCreateEvent:
		var req models.CreateEventRequest
		if err := msg.Decode(&req); err != nil {
			c.SendError(err.Error())
			return
		}
		event, err := createEvent(ctx, c.UserID, req)
		if err != nil {
			sendWSError(c, err)
			return
		}
		c.SendJSON(realtime.TypeEventCreated, event)

	case realtime.TypeSendMessage:
		var req wsSendMessageRequest
		if err := msg.Decode(&req); err != nil {
			c.SendError(err.Error())
			return
		}
		chatID := req.ChatID
		if chatID == 0 {
			if req.ReceiverID == 0 {
				c.SendError("chat_id or receiver_id is required")
				return
			}
			chat, err := models.NewChatService(database.DB).GetOrCreateDirect(ctx, c.UserID, req.ReceiverID)
			if err != nil {
				sendWSError(c, err)
				return
			}
			chatID = chat.ID
		}
		if _, err := sendChatMessage(ctx, chatID, c.UserID, models.SendMessageRequest{Content: req.Content}); err != nil {
			sendWSError(c, err)
		}

	case realtime.TypeUpdateLocation:
		var req models.LocationRequest
		if err := msg.Decode(&req); err != nil {
			c.SendError(err.Error())
			return
		}
		p, err := req.Point()
		if err != nil {
			sendWSError(c, err)
			return
		}
		if err := models.NewUserService(database.DB).UpdateLocation(ctx, c.UserID, p); err != nil {
			sendWSError(c, err)
			return
		}
		events, err := models.NewEventService(database.DB).Nearby(ctx, c.UserID, p, pulseRadiusKm, 0)
		if err != nil {
			sendWSError(c, err)
			return
		}
		c.SendJSON(realtime.TypePulseEvents, LocationUpdateResponse{Location: p, Events: events})

	case realtime.TypeTyping:
		var req typingRequest
		if err := msg.Decode(&req); err != nil {
			c.SendError(err.Error())
			return
		}
		if err := relayTyping(ctx, req.ChatID, c.UserID, req.IsTyping); err != nil {
			sendWSError(c, err)
		}

	case realtime.TypePing:
		c.SendJSON(realtime.TypePong, map[string]string{})

	default:
		log.Debug().Int64("user_id", c.UserID).Str("type", msg.Type).Msg("unknown websocket message type")
		c.SendError("unknown message type: " + msg.Type)
	}
}

// sendWSError reports an operation failure to the client. Internal errors are
// logged and hidden.
func sendWSError(c *realtime.Client, err error) {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Type == apperrors.ErrorTypeInternal {
		log.Error().Err(err).Int64("user_id", c.UserID).Msg("websocket operation failed")
		c.SendError("internal server error")
		return
	}
	c.SendError(appErr.Message)
}

// BroadcastUserStatusChange tells the user's followers and followed users
// that they came online or went offline.
func BroadcastUserStatusChange(ctx context.Context, userID int64, isOnline bool) {
	ids, err := models.NewFollowService(database.DB).ConnectionIDs(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to load connections for presence")
		return
	}
	msgType := realtime.TypeUserOffline
	if isOnline {
		msgType = realtime.TypeUserOnline
	}
	hub.SendToUsers(ctx, ids, msgType, UserStatus{UserID: userID, IsOnline: isOnline})
}
