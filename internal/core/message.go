package core

import "time"

// Message type tags carried on the wire and in the message log.
const (
	// MessageTypeSystem marks server-sent notices.
	MessageTypeSystem = "SYSTEM"
	// MessageTypeIdentity marks nickname/identity notices.
	MessageTypeIdentity = "identity"
	// MessageTypePrivate marks directed messages.
	MessageTypePrivate = "private"
)

// Message is the domain model for a chat message. The JSON form is what
// gets persisted in the room's message log and replayed on history
// requests.
type Message struct {
	ID         int64  `json:"id"`
	Room       string `json:"room"`
	CID        string `json:"cid,omitempty"`
	Nickname   string `json:"nickname"`
	Color      string `json:"color,omitempty"`
	Body       string `json:"body"`
	Type       string `json:"type,omitempty"`
	DirectedAt string `json:"directedAt,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
