package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key or hash field has no value.
	ErrNotFound = errors.New("not found")
	// ErrNicknameRegistered is returned when a credential already exists
	// for a nickname in a room.
	ErrNicknameRegistered = errors.New("nickname already registered")
	// ErrSlotOccupied is returned when a message slot already holds a
	// message for the requested sequence ID.
	ErrSlotOccupied = errors.New("message slot already occupied")
)

// Credential binds a registered nickname to its salt and derived key.
// The three fields are persisted together as one unit.
type Credential struct {
	Nickname string
	Salt     []byte
	Key      []byte
}

// CredentialStore persists per-room nickname registrations.
type CredentialStore interface {
	// SaveCredential reserves the nickname and stores its credential.
	// Returns ErrNicknameRegistered if the nickname is already reserved
	// in the room.
	SaveCredential(ctx context.Context, room string, cred Credential) error

	// GetCredential retrieves the credential for a nickname.
	// Returns ErrNotFound if no registration exists.
	GetCredential(ctx context.Context, room, nickname string) (Credential, error)

	// IsRegistered reports whether a nickname has a credential in the room.
	IsRegistered(ctx context.Context, room, nickname string) (bool, error)
}

// HistoryStore persists the per-room message counter and message log.
type HistoryStore interface {
	// ReserveMessageID atomically increments the room's counter and
	// returns the reserved sequence ID. The first reservation in a room
	// returns 0. No two callers ever observe the same value.
	ReserveMessageID(ctx context.Context, room string) (int64, error)

	// CurrentMessageID returns the room's counter: the next unassigned
	// sequence ID, 0 for a room with no messages.
	CurrentMessageID(ctx context.Context, room string) (int64, error)

	// AppendMessage stores the serialized message under the sequence ID.
	// Returns ErrSlotOccupied if the slot already holds a message.
	AppendMessage(ctx context.Context, room string, id int64, data []byte) error

	// FetchMessages returns stored messages for the requested IDs.
	// IDs with no stored message are omitted from the result.
	FetchMessages(ctx context.Context, room string, ids []int64) ([][]byte, error)
}

// ChannelMetaStore persists per-room topic and visibility state.
type ChannelMetaStore interface {
	// SetTopic stores the room topic.
	SetTopic(ctx context.Context, room, topic string) error

	// GetTopic returns the room topic, or ErrNotFound if none is set.
	GetTopic(ctx context.Context, room string) (string, error)

	// SetPrivate marks the room private, guarded by the given password hash.
	SetPrivate(ctx context.Context, room, passwordHash string) error

	// SetPublic marks the room public and clears any password hash.
	SetPublic(ctx context.Context, room string) error

	// Privacy reports whether the room is private and, if so, its
	// password hash.
	Privacy(ctx context.Context, room string) (private bool, passwordHash string, err error)
}

// Store aggregates all storage interfaces.
type Store interface {
	CredentialStore
	HistoryStore
	ChannelMetaStore

	// Close releases the underlying connection.
	Close() error
}

// RetryReads runs fn up to attempts times with linear backoff. Intended
// for idempotent reads only; ErrNotFound is a result, not a failure.
func RetryReads(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		}
	}
	return err
}
