package hub

import (
	"encoding/json"
	"sync"

	"github.com/itstarun264/eventsnap-stream/pkg/log"
)

// Hub tracks which connections are subscribed to which event room and fans
// messages out to them. Room membership is guarded per room; the hub's own
// lock only covers the room map and the client set, where churn is rare
// compared to relay traffic.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]*Room),
		clients: make(map[*Client]struct{}),
	}
}

// Register makes the hub aware of a connection before it joins any room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Msg("client registered")
}

// Unregister removes a connection from the hub and from every room it
// belongs to. Called unconditionally on disconnect, graceful or not, so a
// dead connection can never linger in a subscriber set.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for id, room := range h.rooms {
		if room.Remove(c) == 0 {
			delete(h.rooms, id)
		}
	}
	h.mu.Unlock()

	close(c.Send)
	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Msg("client unregistered")
}

// Join adds a client to an event room, creating the room on first use.
// Idempotent for an existing member. The add happens under the hub lock so
// a concurrent leave cannot tear the room down between lookup and add.
func (h *Hub) Join(c *Client, eventID string) {
	h.mu.Lock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = newRoom(eventID)
		h.rooms[eventID] = room
	}
	room.Add(c)
	h.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldClientID, c.ID).Str(log.FieldEventID, eventID).Msg("client joined room")
}

// Leave removes a client from an event room. Leaving a room the client is
// not in is a no-op. An emptied room is torn down.
func (h *Hub) Leave(c *Client, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[eventID]
	if !ok {
		return
	}
	if room.Remove(c) == 0 {
		delete(h.rooms, eventID)
	}
	l := log.L()
	l.Info().Str(log.FieldClientID, c.ID).Str(log.FieldEventID, eventID).Msg("client left room")
}

// Broadcast marshals message once and delivers it to the room's current
// members, skipping exclude if set. A missing room means nobody is
// listening; that is not an error.
func (h *Hub) Broadcast(eventID string, message interface{}, exclude *Client) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	room, ok := h.rooms[eventID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	room.Broadcast(data, exclude)
	return nil
}

// MemberCount reports how many connections are subscribed to an event room.
func (h *Hub) MemberCount(eventID string) int {
	h.mu.RLock()
	room, ok := h.rooms[eventID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.Len()
}

// Snapshot returns a best-effort list of subscriber IDs for diagnostics.
// It may be stale by the time the caller reads it; that is acceptable.
func (h *Hub) Snapshot(eventID string) []string {
	h.mu.RLock()
	room, ok := h.rooms[eventID]
	h.mu.RUnlock()
	if !ok {
		return []string{}
	}
	return room.Snapshot()
}
