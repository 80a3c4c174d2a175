package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// Chat kinds
const (
	ChatKindDirect = "direct"
	ChatKindTribe  = "tribe"
)

// Message is one chat message.
type Message struct {
	ID        int64       `json:"id"`
	ChatID    int64       `json:"chat_id"`
	Sender    UserSummary `json:"sender"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Chat is a conversation as listed for one participant.
type Chat struct {
	ID          int64        `json:"id"`
	Kind        string       `json:"kind"`
	TribeID     *int64       `json:"tribe_id,omitempty"`
	TribeName   string       `json:"tribe_name,omitempty"`
	OtherUser   *UserSummary `json:"other_user,omitempty"` // direct chats only
	LastMessage *Message     `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SendMessageRequest is the body of a new message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// ChatService handles chats and messages.
type ChatService struct {
	DB *sql.DB
}

// NewChatService creates a new chat service
func NewChatService(db *sql.DB) *ChatService {
	return &ChatService{DB: db}
}

func directKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GetOrCreateDirect returns the direct chat between userID and otherID,
// creating it on first use.
func (cs *ChatService) GetOrCreateDirect(ctx context.Context, userID, otherID int64) (*Chat, error) {
	if userID == otherID {
		return nil, apperrors.NewValidationError("you cannot chat with yourself")
	}
	exists, err := NewUserService(cs.DB).Exists(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewNotFoundError("user not found")
	}

	tx, err := cs.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	key := directKey(userID, otherID)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (kind, direct_key, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(direct_key) DO NOTHING
	`, ChatKindDirect, key, now, now); err != nil {
		return nil, apperrors.NewInternalError("failed to create chat", err)
	}
	var chatID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM chats WHERE direct_key = ?", key).Scan(&chatID); err != nil {
		return nil, apperrors.NewInternalError("failed to load chat", err)
	}
	for _, id := range []int64{userID, otherID} {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO chat_participants (chat_id, user_id) VALUES (?, ?)", chatID, id); err != nil {
			return nil, apperrors.NewInternalError("failed to add chat participant", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit chat", err)
	}
	return cs.Get(ctx, chatID, userID)
}

// TribeChat returns the chat of a tribe. Only active members may open it.
func (cs *ChatService) TribeChat(ctx context.Context, tribeID, userID int64) (*Chat, error) {
	t, err := NewTribeService(cs.DB).Get(ctx, tribeID, userID)
	if err != nil {
		return nil, err
	}
	if t.MyStatus != MemberActive {
		return nil, apperrors.NewForbiddenError("only tribe members can open the tribe chat")
	}
	var chatID int64
	err = cs.DB.QueryRowContext(ctx, "SELECT id FROM chats WHERE tribe_id = ?", tribeID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("tribe chat not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load tribe chat", err)
	}
	return cs.Get(ctx, chatID, userID)
}

// chatSelect takes the viewer id three times.
const chatSelect = `
	SELECT c.id, c.kind, c.tribe_id, COALESCE(t.name, ''), c.updated_at,
		(SELECT COUNT(*) FROM messages m
			WHERE m.chat_id = c.id AND m.sender_id != ?
			  AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)),
		ou.id, ou.username, ou.display_name, ou.avatar,
		lm.id, lm.content, lm.created_at, su.id, su.username, su.display_name, su.avatar
	FROM chat_participants p
	JOIN chats c ON c.id = p.chat_id
	LEFT JOIN tribes t ON t.id = c.tribe_id
	LEFT JOIN chat_participants op ON op.chat_id = c.id AND op.user_id != ? AND c.kind = 'direct'
	LEFT JOIN users ou ON ou.id = op.user_id
	LEFT JOIN messages lm ON lm.id = (SELECT MAX(id) FROM messages WHERE chat_id = c.id)
	LEFT JOIN users su ON su.id = lm.sender_id
	WHERE p.user_id = ?`

func scanChat(row rowScanner) (*Chat, error) {
	var c Chat
	var tribeID sql.NullInt64
	var otherID, msgID, senderID sql.NullInt64
	var otherUsername, otherName, otherAvatar sql.NullString
	var msgContent, senderUsername, senderName, senderAvatar sql.NullString
	var msgAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Kind, &tribeID, &c.TribeName, &c.UpdatedAt, &c.UnreadCount,
		&otherID, &otherUsername, &otherName, &otherAvatar,
		&msgID, &msgContent, &msgAt, &senderID, &senderUsername, &senderName, &senderAvatar); err != nil {
		return nil, err
	}
	c.TribeID = database.Int64Ptr(tribeID)
	if otherID.Valid {
		c.OtherUser = &UserSummary{ID: otherID.Int64, Username: otherUsername.String,
			DisplayName: otherName.String, Avatar: otherAvatar.String}
	}
	if msgID.Valid {
		c.LastMessage = &Message{
			ID:      msgID.Int64,
			ChatID:  c.ID,
			Content: msgContent.String,
			Sender: UserSummary{ID: senderID.Int64, Username: senderUsername.String,
				DisplayName: senderName.String, Avatar: senderAvatar.String},
			CreatedAt: msgAt.Time,
		}
	}
	return &c, nil
}

// Get loads a chat userID participates in.
func (cs *ChatService) Get(ctx context.Context, chatID, userID int64) (*Chat, error) {
	c, err := scanChat(cs.DB.QueryRowContext(ctx, chatSelect+" AND c.id = ?", userID, userID, userID, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("chat not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load chat", err)
	}
	return c, nil
}

// List returns userID's chats, most recently active first.
func (cs *ChatService) List(ctx context.Context, userID int64) ([]Chat, error) {
	rows, err := cs.DB.QueryContext(ctx, chatSelect+" ORDER BY COALESCE(lm.created_at, c.updated_at) DESC, c.id DESC",
		userID, userID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query chats", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan chat", err)
		}
		chats = append(chats, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate chats", err)
	}
	return chats, nil
}

// IsParticipant reports whether userID belongs to chatID.
func (cs *ChatService) IsParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	var ok bool
	err := cs.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id = ? AND user_id = ?)", chatID, userID).Scan(&ok)
	if err != nil {
		return false, apperrors.NewInternalError("failed to check chat participant", err)
	}
	return ok, nil
}

func (cs *ChatService) requireParticipant(ctx context.Context, chatID, userID int64) error {
	ok, err := cs.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("chat not found")
	}
	return nil
}

// Messages returns up to limit messages older than before (0 for the newest),
// ordered oldest first.
func (cs *ChatService) Messages(ctx context.Context, chatID, userID, before int64, limit int) ([]Message, error) {
	if err := cs.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	page := Page{Limit: limit}.Normalize()

	query := `
		SELECT m.id, m.chat_id, m.content, m.created_at, u.id, u.username, u.display_name, u.avatar
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ?`
	args := []interface{}{chatID}
	if before > 0 {
		query += " AND m.id < ?"
		args = append(args, before)
	}
	query += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, page.Limit)

	rows, err := cs.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query messages", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName, &m.Sender.Avatar); err != nil {
			return nil, apperrors.NewInternalError("failed to scan message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate messages", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// Send stores a message from senderID. Sending marks the chat read for the sender.
func (cs *ChatService) Send(ctx context.Context, chatID, senderID int64, req SendMessageRequest) (*Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := Validate(req); err != nil {
		return nil, err
	}
	if err := cs.requireParticipant(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	sender, err := NewUserService(cs.DB).Summary(ctx, senderID)
	if err != nil {
		return nil, err
	}

	tx, err := cs.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (chat_id, sender_id, content, created_at) VALUES (?, ?, ?, ?)",
		chatID, senderID, req.Content, now)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to send message", err)
	}
	id, _ := res.LastInsertId()
	if _, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", now, chatID); err != nil {
		return nil, apperrors.NewInternalError("failed to touch chat", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE chat_participants SET last_read_at = ? WHERE chat_id = ? AND user_id = ?", now, chatID, senderID); err != nil {
		return nil, apperrors.NewInternalError("failed to mark chat read", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit message", err)
	}
	return &Message{ID: id, ChatID: chatID, Sender: sender, Content: req.Content, CreatedAt: now}, nil
}

// MarkRead marks every message in the chat as read for userID.
func (cs *ChatService) MarkRead(ctx context.Context, chatID, userID int64) error {
	res, err := cs.DB.ExecContext(ctx,
		"UPDATE chat_participants SET last_read_at = ? WHERE chat_id = ? AND user_id = ?",
		time.Now().UTC(), chatID, userID)
	if err != nil {
		return apperrors.NewInternalError("failed to mark chat read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("chat not found")
	}
	return nil
}

// ParticipantIDs returns the users of a chat.
func (cs *ChatService) ParticipantIDs(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := cs.DB.QueryContext(ctx, "SELECT user_id FROM chat_participants WHERE chat_id = ?", chatID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query chat participants", err)
	}
	return scanIDs(rows)
}
