// Package realtime delivers WebSocket messages to connected users and tribe
// rooms, optionally fanning out across instances through a Bus.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Client -> server message types
const (
	TypeJoinTribes     = "join-tribes"
	TypeCreateEvent    = "create-event"
	TypeSendMessage    = "send-message"
	TypeUpdateLocation = "update-location"
	TypeTyping         = "typing"
	TypePing           = "ping"
)

// Server -> client message types
const (
	TypeConnected         = "connected"
	TypeError             = "error"
	TypeNotification      = "notification"
	TypeNotificationCount = "notification-count"
	TypeNewPost           = "new-post"
	TypeEventCreated      = "event-created"
	TypeNewMessage        = "new-message"
	TypeUserOnline        = "user-online"
	TypeUserOffline       = "user-offline"
	TypeJoinedTribes      = "joined-tribes"
	TypePulseEvents       = "pulse-events"
	TypePong              = "pong"
)

// WSMessage is the {"type","data"} envelope used in both directions.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data as the payload of a message.
func NewMessage(msgType string, data interface{}) (WSMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return WSMessage{}, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	return WSMessage{Type: msgType, Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (m WSMessage) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: missing data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s: invalid data: %w", m.Type, err)
	}
	return nil
}

// Envelope addresses a message to users, a room, or everyone connected.
type Envelope struct {
	UserIDs   []int64   `json:"user_ids,omitempty"`
	Room      string    `json:"room,omitempty"`
	Broadcast bool      `json:"broadcast,omitempty"`
	Exclude   int64     `json:"exclude,omitempty"` // user id skipped during delivery
	Message   WSMessage `json:"message"`
}

// TribeRoom is the room name of a tribe.
func TribeRoom(tribeID int64) string {
	return fmt.Sprintf("tribe:%d", tribeID)
}
