package core

// InboundKind identifies which client event arrived. Inbound events are
// a closed set; the transport validates required fields before dispatch.
type InboundKind int

const (
	// InboundJoinPrivate requests admission to a password-gated channel.
	InboundJoinPrivate InboundKind = iota
	// InboundMakePublic clears the channel's password gate.
	InboundMakePublic
	// InboundMakePrivate sets a password gate on the channel.
	InboundMakePrivate
	// InboundNickname changes the client's nickname (acknowledged).
	InboundNickname
	// InboundTopic sets the channel topic.
	InboundTopic
	// InboundHistoryRequest asks for logged messages by sequence ID.
	InboundHistoryRequest
	// InboundIdle marks the client idle.
	InboundIdle
	// InboundUnidle clears the client's idle state.
	InboundUnidle
	// InboundPrivateMessage sends a directed message to a nickname.
	InboundPrivateMessage
	// InboundChat sends a chat message to the room.
	InboundChat
	// InboundIdentify verifies ownership of the current nickname.
	InboundIdentify
	// InboundRegisterNick registers the current nickname with a password.
	InboundRegisterNick
	// InboundUnsubscribe leaves the channel.
	InboundUnsubscribe
)

// Inbound is a client event with its validated payload fields. Only the
// fields relevant to the Kind are populated.
type Inbound struct {
	Kind         InboundKind
	Password     string
	Nickname     string
	Topic        string
	Body         string
	DirectedAt   string
	RequestRange []int64
}

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventChat delivers a chat message, system notice or replayed log entry.
	EventChat EventKind = iota
	// EventTopic delivers the channel topic.
	EventTopic
	// EventWatermark tells a joiner the current message-ID watermark.
	EventWatermark
	// EventOwnCID acknowledges the client's own connection id.
	EventOwnCID
	// EventUserlist delivers a full presence snapshot.
	EventUserlist
	// EventIdle notifies the room that a client went idle.
	EventIdle
	// EventUnidle notifies the room that a client is active again.
	EventUnidle
	// EventPrivateMessage delivers a directed message.
	EventPrivateMessage
	// EventPrivateRequired tells a joiner the channel is password-gated.
	EventPrivateRequired
	// EventAck confirms a client event that requires acknowledgment.
	EventAck
	// EventError carries a coded error alongside the human-readable
	// notice for the same failure.
	EventError
)

// Event is sent to clients to describe what happened in the room.
type Event struct {
	Kind    EventKind
	Room    string
	You     bool
	Message *Message
	ID      int64
	CID     string
	Users   []PresenceEntry
	Ack     string
	Err     *CoreError
}
