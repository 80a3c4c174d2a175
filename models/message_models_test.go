package models

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eventconnect/pkg/errors"
)

func TestDirectChatIsUniquePerPair(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewChatService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	chat, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ChatKindDirect, chat.Kind)
	require.NotNil(t, chat.OtherUser)
	assert.Equal(t, "bob", chat.OtherUser.Username)

	again, err := svc.GetOrCreateDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)
	assert.Equal(t, "alice", again.OtherUser.Username)

	_, err = svc.GetOrCreateDirect(ctx, alice.ID, alice.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	_, err = svc.GetOrCreateDirect(ctx, alice.ID, 9999)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))

	assert.Equal(t, "3:7", directKey(7, 3))
}

func TestSendReadAndUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewChatService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	eve := createUser(t, db, "eve")

	chat, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Send(ctx, chat.ID, eve.ID, SendMessageRequest{Content: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound), "outsiders cannot post")

	_, err = svc.Send(ctx, chat.ID, alice.ID, SendMessageRequest{Content: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	for i := 1; i <= 3; i++ {
		_, err := svc.Send(ctx, chat.ID, alice.ID, SendMessageRequest{Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}

	chats, err := svc.List(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, 3, chats[0].UnreadCount)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "msg 3", chats[0].LastMessage.Content)
	assert.Equal(t, "alice", chats[0].LastMessage.Sender.Username)

	mine, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, mine[0].UnreadCount, "own messages are never unread")

	require.NoError(t, svc.MarkRead(ctx, chat.ID, bob.ID))
	chats, err = svc.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, chats[0].UnreadCount)

	assert.True(t, apperrors.Is(svc.MarkRead(ctx, chat.ID, eve.ID), apperrors.ErrorTypeNotFound))

	ids, err := svc.ParticipantIDs(ctx, chat.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{alice.ID, bob.ID}, ids)
}

func TestMessagesPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewChatService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	chat, err := svc.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	var sent []*Message
	for i := 1; i <= 5; i++ {
		m, err := svc.Send(ctx, chat.ID, alice.ID, SendMessageRequest{Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		sent = append(sent, m)
	}

	latest, err := svc.Messages(ctx, chat.ID, bob.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "m4", latest[0].Content, "pages are returned oldest first")
	assert.Equal(t, "m5", latest[1].Content)

	older, err := svc.Messages(ctx, chat.ID, bob.ID, latest[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, sent[0].ID, older[0].ID)

	_, err = svc.Messages(ctx, chat.ID, 9999, 0, 10)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
}
