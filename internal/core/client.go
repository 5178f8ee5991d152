package core

import (
	"sync"
	"time"
)

// Client is a connected chat participant. The transport owns the
// socket; the core holds only the outbound event channel as a
// non-owning delivery reference.
type Client struct {
	CID    string
	Events chan *Event

	mu         sync.Mutex
	nickname   string
	color      string
	identified bool
	idle       bool
	idleSince  time.Time
}

// NewClient constructs a client with a buffered event channel.
func NewClient(cid, nickname, color string) *Client {
	return &Client{
		CID:      cid,
		Events:   make(chan *Event, 32),
		nickname: nickname,
		color:    color,
	}
}

// Send queues an event for delivery. Returns false if the client's
// buffer is full; slow consumers drop events rather than block the room.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Nickname returns the current nickname.
func (c *Client) Nickname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nickname
}

// SetNickname changes the nickname and always resets identified:
// identity is bound to a (room, nickname) pair, so a rename must be
// re-verified.
func (c *Client) SetNickname(nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nickname = nickname
	c.identified = false
}

// Color returns the display color.
func (c *Client) Color() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// Identified reports whether the current nickname has been verified.
func (c *Client) Identified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identified
}

// SetIdentified records the outcome of a credential check.
func (c *Client) SetIdentified(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identified = v
}

// MarkIdle sets the idle flag and stamps when it happened. Repeated
// calls keep the original timestamp.
func (c *Client) MarkIdle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.idle {
		c.idle = true
		c.idleSince = now
	}
}

// MarkUnidle clears the idle flag and its timestamp.
func (c *Client) MarkUnidle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = false
	c.idleSince = time.Time{}
}

// Idle returns the idle flag and, when idle, the time it started.
func (c *Client) Idle() (bool, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle, c.idleSince
}

// Snapshot captures the client's public-facing attributes.
func (c *Client) Snapshot() PresenceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := PresenceEntry{
		CID:        c.CID,
		Nickname:   c.nickname,
		Color:      c.color,
		Identified: c.identified,
		Idle:       c.idle,
	}
	if c.idle {
		entry.IdleSince = c.idleSince.UnixMilli()
	}
	return entry
}
