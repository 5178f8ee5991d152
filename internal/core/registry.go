package core

import "sync"

// Channel groups the members of one room with its cached topic.
type Channel struct {
	Name    string
	topic   string
	members map[string]*Client // keyed by cid
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		members: make(map[string]*Client),
	}
}

// Registry is the authoritative in-memory view of rooms and membership.
// Rooms are created implicitly on first join and persist until process
// restart; there is no deletion path.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Channel
}

// NewRegistry returns an empty registry. One instance is created at
// process start and injected into everything that needs room state.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Channel)}
}

// Join adds the client to the room, creating the room if needed.
// Returns false if the client was already a member.
func (r *Registry) Join(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.rooms[room]
	if !ok {
		ch = newChannel(room)
		r.rooms[room] = ch
	}
	if _, exists := ch.members[c.CID]; exists {
		return false
	}
	ch.members[c.CID] = c
	return true
}

// Leave removes the client from the room. No-op when the room or the
// membership doesn't exist.
func (r *Registry) Leave(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := ch.members[c.CID]; !exists {
		return false
	}
	delete(ch.members, c.CID)
	return true
}

// Members returns the current members of the room.
func (r *Registry) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(ch.members))
	for _, c := range ch.members {
		out = append(out, c)
	}
	return out
}

// FindByNickname returns every member whose current nickname matches.
// Nicknames are not unique among members, so this may return zero, one
// or many clients.
func (r *Registry) FindByNickname(room, nickname string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.rooms[room]
	if !ok {
		return nil
	}
	var out []*Client
	for _, c := range ch.members {
		if c.Nickname() == nickname {
			out = append(out, c)
		}
	}
	return out
}

// SetTopic caches the room topic, creating the room if needed.
func (r *Registry) SetTopic(room, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.rooms[room]
	if !ok {
		ch = newChannel(room)
		r.rooms[room] = ch
	}
	ch.topic = topic
}

// Topic returns the cached room topic.
func (r *Registry) Topic(room string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch, ok := r.rooms[room]; ok {
		return ch.topic
	}
	return ""
}

// Broadcast sends the event to every member of the room.
func (r *Registry) Broadcast(room string, ev *Event) {
	for _, c := range r.Members(room) {
		c.Send(ev)
	}
}

// BroadcastExcept sends the event to every member except one.
func (r *Registry) BroadcastExcept(room string, except *Client, ev *Event) {
	for _, c := range r.Members(room) {
		if c.CID == except.CID {
			continue
		}
		c.Send(ev)
	}
}
