package core

import "sort"

// PresenceEntry is one member's public-facing attributes in a userlist
// snapshot.
type PresenceEntry struct {
	CID        string `json:"cid"`
	Nickname   string `json:"nickname"`
	Color      string `json:"color,omitempty"`
	Identified bool   `json:"identified"`
	Idle       bool   `json:"idle"`
	IdleSince  int64  `json:"idleSince,omitempty"`
}

// Presence derives userlist snapshots from the registry and broadcasts
// them. Every call recomputes the full snapshot; nothing is cached or
// deduplicated, which is fine at expected room sizes.
type Presence struct {
	registry *Registry
}

// NewPresence builds a presence publisher over the registry.
func NewPresence(registry *Registry) *Presence {
	return &Presence{registry: registry}
}

// Snapshot returns the current userlist for the room, ordered by cid
// for stable output.
func (p *Presence) Snapshot(room string) []PresenceEntry {
	members := p.registry.Members(room)
	entries := make([]PresenceEntry, 0, len(members))
	for _, c := range members {
		entries = append(entries, c.Snapshot())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CID < entries[j].CID })
	return entries
}

// Publish recomputes the snapshot and broadcasts it to the room.
func (p *Presence) Publish(room string) {
	p.registry.Broadcast(room, &Event{
		Kind:  EventUserlist,
		Room:  room,
		Users: p.Snapshot(room),
	})
}
