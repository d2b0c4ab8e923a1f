package hub

import (
	"sync"

	"github.com/itstarun264/eventsnap-stream/pkg/log"
)

// Room is the subscriber set for one event id. Each room carries its own
// lock so broadcasts to unrelated events never contend.
type Room struct {
	id      string
	mu      sync.RWMutex
	members map[*Client]struct{}
}

func newRoom(id string) *Room {
	return &Room{
		id:      id,
		members: make(map[*Client]struct{}),
	}
}

// Add registers a client in the room. Adding an existing member is a no-op.
func (r *Room) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c] = struct{}{}
}

// Remove deregisters a client. Removing a non-member is a no-op.
// Returns the remaining member count.
func (r *Room) Remove(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
	return len(r.members)
}

func (r *Room) Has(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[c]
	return ok
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast delivers data to every current member, skipping exclude if set.
// Delivery is fire-and-forget: a member with a saturated buffer misses the
// message without holding up anyone else.
func (r *Room) Broadcast(data []byte, exclude *Client) (sent, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for member := range r.members {
		if member == exclude {
			continue
		}
		if member.trySend(data) {
			sent++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		l := log.L()
		l.Debug().Str(log.FieldEventID, r.id).Int("sent", sent).Int("dropped", dropped).Msg("broadcast dropped deliveries")
	}
	return sent, dropped
}

// Snapshot returns a best-effort list of member client IDs.
func (r *Room) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.members))
	for member := range r.members {
		out = append(out, member.ID)
	}
	return out
}
