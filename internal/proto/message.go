package proto

import "encoding/json"

// Inbound is the envelope for events coming from the client. Room and
// identity are resolved at connect time, not per event.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound event types.
const (
	InboundTypeJoinPrivate    = "join_private"
	InboundTypeMakePublic     = "make_public"
	InboundTypeMakePrivate    = "make_private"
	InboundTypeNickname       = "nickname"
	InboundTypeTopic          = "topic"
	InboundTypeHistoryRequest = "history_request"
	InboundTypeIdle           = "idle"
	InboundTypeUnidle         = "unidle"
	InboundTypePrivateMessage = "private_message"
	InboundTypeChat           = "chat"
	InboundTypeIdentify       = "identify"
	InboundTypeRegisterNick   = "register_nick"
	InboundTypeUnsubscribe    = "unsubscribe"
)

// Outbound envelope types and event names.
const (
	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"

	EventChat            = "chat"
	EventTopic           = "topic"
	EventCurrentID       = "currentID"
	EventYourCID         = "your_cid"
	EventUserlist        = "userlist"
	EventIdle            = "idle"
	EventUnidle          = "unidle"
	EventPrivateMessage  = "private_message"
	EventPrivateRequired = "private"
)

// PasswordData carries a password for join_private, make_private,
// identify and register_nick.
type PasswordData struct {
	Password string `json:"password"`
}

// NicknameData requests a nickname change.
type NicknameData struct {
	Nickname string `json:"nickname"`
}

// TopicData sets the channel topic.
type TopicData struct {
	Topic string `json:"topic"`
}

// HistoryRequestData asks for logged messages by sequence ID.
type HistoryRequestData struct {
	RequestRange []int64 `json:"requestRange"`
}

// PrivateMessageData is a directed message.
type PrivateMessageData struct {
	Body       string `json:"body"`
	DirectedAt string `json:"directedAt"`
}

// ChatData is a room chat message.
type ChatData struct {
	Body string `json:"body"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// WireMessage is a chat message, system notice or replayed log entry on
// the wire.
type WireMessage struct {
	ID         int64  `json:"id"`
	Room       string `json:"room"`
	CID        string `json:"cid,omitempty"`
	Nickname   string `json:"nickname"`
	Color      string `json:"color,omitempty"`
	Body       string `json:"body"`
	MsgType    string `json:"msgType,omitempty"`
	DirectedAt string `json:"directedAt,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	You        bool   `json:"you,omitempty"`
}

// CurrentIDData tells a joiner the current message-ID watermark.
type CurrentIDData struct {
	Room string `json:"room"`
	ID   int64  `json:"id"`
}

// YourCIDData acknowledges the client's connection id.
type YourCIDData struct {
	Room string `json:"room"`
	CID  string `json:"cid"`
}

// User is one member in a userlist snapshot.
type User struct {
	CID        string `json:"cid"`
	Nickname   string `json:"nickname"`
	Color      string `json:"color,omitempty"`
	Identified bool   `json:"identified"`
	Idle       bool   `json:"idle"`
	IdleSince  int64  `json:"idleSince,omitempty"`
}

// UserlistData is a full presence snapshot.
type UserlistData struct {
	Room  string `json:"room"`
	Users []User `json:"users"`
}

// IdleData notifies about an idle/unidle transition.
type IdleData struct {
	Room string `json:"room"`
	CID  string `json:"cid"`
}

// AckData confirms an acknowledged inbound event.
type AckData struct {
	Event string `json:"event"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
