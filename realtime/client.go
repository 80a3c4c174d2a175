package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// HandlerFunc processes one inbound message from a client.
type HandlerFunc func(ctx context.Context, c *Client, msg WSMessage)

// Client is one WebSocket connection of a user.
type Client struct {
	UserID int64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues msg for this connection. A client whose queue is full is
// dropped and Send returns false.
func (c *Client) Send(msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode websocket message")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().Int64("user_id", c.UserID).Msg("websocket send queue full, dropping client")
		c.closed = true
		close(c.send)
		return false
	}
}

// SendJSON encodes data and queues it as a message of type msgType.
func (c *Client) SendJSON(msgType string, data interface{}) bool {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		log.Error().Err(err).Msg("failed to build websocket message")
		return false
	}
	return c.Send(msg)
}

// SendError reports a problem with the client's last message.
func (c *Client) SendError(message string) {
	c.SendJSON(TypeError, map[string]string{"message": message})
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads messages until the connection fails, handing each one to
// handle. It unregisters the client when it returns and reports whether that
// was the user's last connection.
func (c *Client) ReadPump(ctx context.Context, handle HandlerFunc) (wentOffline bool) {
	defer func() {
		wentOffline = c.hub.Unregister(c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Int64("user_id", c.UserID).Msg("websocket read error")
			}
			return
		}
		handle(ctx, c, msg)
	}
}

// WritePump drains the send queue to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Int64("user_id", c.UserID).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
