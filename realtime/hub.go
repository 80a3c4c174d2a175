package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks the connections of this instance. A user may hold several
// connections; rooms group connections by tribe.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}

	bus Bus
}

// NewHub creates an empty hub. With a nil bus deliveries stay local.
func NewHub(bus Bus) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		bus:     bus,
	}
}

// Register adds a connection and reports whether it is the user's first.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.UserID] = conns
	}
	conns[c] = struct{}{}
	log.Debug().Int64("user_id", c.UserID).Int("connections", len(conns)).Msg("websocket client registered")
	return len(conns) == 1
}

// Unregister removes a connection from the hub and all its rooms and
// reports whether it was the user's last. Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.UserID]
	if !ok {
		return false
	}
	if _, ok := conns[c]; !ok {
		return false
	}
	delete(conns, c)
	for room := range h.joined[c] {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, c)

	if len(conns) > 0 {
		return false
	}
	delete(h.clients, c.UserID)
	log.Debug().Int64("user_id", c.UserID).Msg("websocket user went offline")
	return true
}

// Join adds a connection to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.UserID][c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	if h.joined[c] == nil {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][room] = struct{}{}
}

// Leave removes a connection from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined[c], room)
}

// LeaveUser removes every connection of a user from a room.
func (h *Hub) LeaveUser(userID int64, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	for c := range h.clients[userID] {
		delete(members, c)
		delete(h.joined[c], room)
	}
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// IsOnline reports whether the user has a connection on this instance.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// OnlineCount is the number of users connected to this instance.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize is the number of connections in a room on this instance.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish routes env through the bus when one is configured, otherwise it
// delivers locally.
func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	if h.bus != nil {
		return h.bus.Publish(ctx, env)
	}
	h.Deliver(env)
	return nil
}

// Deliver sends env to the matching connections of this instance and
// returns how many connections accepted it.
func (h *Hub) Deliver(env Envelope) int {
	h.mu.RLock()
	targets := make([]*Client, 0)
	switch {
	case env.Broadcast:
		for _, conns := range h.clients {
			for c := range conns {
				targets = append(targets, c)
			}
		}
	case env.Room != "":
		for c := range h.rooms[env.Room] {
			targets = append(targets, c)
		}
	default:
		for _, id := range env.UserIDs {
			for c := range h.clients[id] {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if env.Exclude != 0 && c.UserID == env.Exclude {
			continue
		}
		if c.Send(env.Message) {
			delivered++
		}
	}
	return delivered
}

// Run delivers the envelopes arriving on the bus until ctx is cancelled.
// Without a bus it just waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	envelopes, err := h.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to realtime bus: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}
			h.Deliver(env)
		}
	}
}

// SendToUsers publishes a message to every connection of the given users.
func (h *Hub) SendToUsers(ctx context.Context, userIDs []int64, msgType string, data interface{}) {
	if len(userIDs) == 0 {
		return
	}
	h.publish(ctx, Envelope{UserIDs: userIDs}, msgType, data)
}

// SendToUser publishes a message to every connection of one user.
func (h *Hub) SendToUser(ctx context.Context, userID int64, msgType string, data interface{}) {
	h.SendToUsers(ctx, []int64{userID}, msgType, data)
}

// SendToRoom publishes a message to a room, skipping exclude (0 for nobody).
func (h *Hub) SendToRoom(ctx context.Context, room string, msgType string, data interface{}, exclude int64) {
	h.publish(ctx, Envelope{Room: room, Exclude: exclude}, msgType, data)
}

func (h *Hub) publish(ctx context.Context, env Envelope, msgType string, data interface{}) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		log.Error().Err(err).Msg("failed to build realtime message")
		return
	}
	env.Message = msg
	if err := h.Publish(ctx, env); err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to publish realtime message")
	}
}
