package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/realtime"
	"eventconnect/util"
)

// TypingEvent is relayed to the other participants of a chat.
type TypingEvent struct {
	ChatID   int64 `json:"chat_id"`
	UserID   int64 `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
}

// UserStatus is a presence change.
type UserStatus struct {
	UserID   int64 `json:"user_id"`
	IsOnline bool  `json:"is_online"`
}

// sendChatMessage stores a message and delivers it to every participant's
// connections. Direct recipients also get a notification.
func sendChatMessage(ctx context.Context, chatID, senderID int64, req models.SendMessageRequest) (*models.Message, error) {
	chats := models.NewChatService(database.DB)
	msg, err := chats.Send(ctx, chatID, senderID, req)
	if err != nil {
		return nil, err
	}

	participantIDs, err := chats.ParticipantIDs(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load chat participants")
		return msg, nil
	}
	hub.SendToUsers(ctx, participantIDs, realtime.TypeNewMessage, msg)

	chat, err := chats.Get(ctx, chatID, senderID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load chat")
		return msg, nil
	}
	recipients := make([]int64, 0, len(participantIDs))
	for _, id := range participantIDs {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	notify.DirectMessage(ctx, chat, msg, recipients)
	return msg, nil
}

// relayTyping forwards a typing indicator to the other participants.
func relayTyping(ctx context.Context, chatID, userID int64, isTyping bool) error {
	chats := models.NewChatService(database.DB)
	ok, err := chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	participantIDs, err := chats.ParticipantIDs(ctx, chatID)
	if err != nil {
		return err
	}
	others := make([]int64, 0, len(participantIDs))
	for _, id := range participantIDs {
		if id != userID {
			others = append(others, id)
		}
	}
	hub.SendToUsers(ctx, others, realtime.TypeTyping, TypingEvent{ChatID: chatID, UserID: userID, IsTyping: isTyping})
	return nil
}

// GetChatsHandler lists the caller's chats with their last message.
// GET /api/chat
func GetChatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := models.NewChatService(database.DB).List(r.Context(), currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, chats)
}

// OpenDirectChatHandler returns the direct chat with a user, creating it.
// POST /api/chat/direct/{userID}
func OpenDirectChatHandler(w http.ResponseWriter, r *http.Request) {
	otherID, err := util.PathID(r, "userID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	chat, err := models.NewChatService(database.DB).GetOrCreateDirect(r.Context(), currentUserID(r), otherID)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, chat)
}

// GetTribeChatHandler returns the chat of a tribe.
// GET /api/chat/tribe/{tribeID}
func GetTribeChatHandler(w http.ResponseWriter, r *http.Request) {
	tribeID, err := util.PathID(r, "tribeID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	chat, err := models.NewChatService(database.DB).TribeChat(r.Context(), tribeID, currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, chat)
}

// GetMessagesHandler returns a page of messages, oldest first.
// GET /api/chat/{chatID}/messages?before&limit
func GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := util.PathID(r, "chatID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	before, err := util.QueryInt64Ptr(r, "before")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	limit, err := util.QueryInt(r, "limit", 0)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	var beforeID int64
	if before != nil {
		beforeID = *before
	}
	messages, err := models.NewChatService(database.DB).Messages(r.Context(), chatID, currentUserID(r), beforeID, limit)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, messages)
}

// SendMessageHandler sends a message to a chat.
// POST /api/chat/{chatID}/messages
func SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := util.PathID(r, "chatID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	var req models.SendMessageRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	msg, err := sendChatMessage(r.Context(), chatID, currentUserID(r), req)
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusCreated, msg)
}

// MarkChatReadHandler marks a chat as read for the caller.
// POST /api/chat/{chatID}/read
func MarkChatReadHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := util.PathID(r, "chatID")
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}

	if err := models.NewChatService(database.DB).MarkRead(r.Context(), chatID, currentUserID(r)); err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	util.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"chat_id": chatID, "status": "read"})
}

// GetConnectionsOnlineStatusHandler reports which of the caller's followers
// and followed users are connected.
// GET /api/users/online-status
func GetConnectionsOnlineStatusHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := models.NewFollowService(database.DB).ConnectionIDs(r.Context(), currentUserID(r))
	if err != nil {
		util.RespondWithError(w, r, err)
		return
	}
	statuses := make([]UserStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, UserStatus{UserID: id, IsOnline: hub.IsOnline(id)})
	}
	util.RespondWithJSON(w, http.StatusOK, statuses)
}
