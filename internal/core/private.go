package core

// Router delivers directed messages to members whose nickname matches
// the requested target within one room.
type Router struct {
	registry *Registry
}

// NewRouter builds a private message router over the registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route sends body to every member of the room nicknamed directedAt,
// and echoes a you-tagged confirmation copy to the sender. Empty body
// or target is a no-op. A target matching nobody is silently dropped;
// the sender gets no delivery-failure notice. That mirrors the original
// behavior and is deliberate.
func (r *Router) Route(sender *Client, room, directedAt, body string) {
	if body == "" || directedAt == "" {
		return
	}

	targets := r.registry.FindByNickname(room, directedAt)
	if len(targets) == 0 {
		return
	}

	msg := &Message{
		Room:       room,
		CID:        sender.CID,
		Nickname:   sender.Nickname(),
		Color:      sender.Color(),
		Body:       body,
		Type:       MessageTypePrivate,
		DirectedAt: directedAt,
		Timestamp:  nowMillis(),
	}

	for _, target := range targets {
		target.Send(&Event{Kind: EventPrivateMessage, Room: room, Message: msg})
	}
	sender.Send(&Event{Kind: EventPrivateMessage, Room: room, Message: msg, You: true})
}
