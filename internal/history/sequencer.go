// Package history assigns durable, per-room sequence IDs to messages
// and reads them back from the message log.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/store"
)

// assignRetryLimit bounds how many fresh IDs a single send may burn
// when it keeps finding its slot occupied.
const assignRetryLimit = 3

// ErrSequencing is returned when a send could not claim a free slot
// within the retry bound. The send fails; already-reserved IDs are
// never reused.
var ErrSequencing = errors.New("could not claim a message slot")

// Sequencer produces unique, strictly increasing message IDs per room
// and persists messages under them. ID reservation is atomic at the
// store; an occupied slot on append means another writer double-claimed
// an ID, which is handled by reserving a fresh one.
type Sequencer struct {
	store store.HistoryStore
	log   *zerolog.Logger
}

// NewSequencer builds a sequencer over the given history store.
func NewSequencer(st store.HistoryStore, logger *zerolog.Logger) *Sequencer {
	return &Sequencer{store: st, log: logger}
}

// Assign reserves the next sequence ID for the room, encodes the
// message with that ID and persists it. On slot contention the
// reserved ID is abandoned (leaving a gap) and a fresh one is tried.
func (s *Sequencer) Assign(ctx context.Context, room string, encode func(id int64) ([]byte, error)) (int64, error) {
	for attempt := 0; attempt < assignRetryLimit; attempt++ {
		id, err := s.store.ReserveMessageID(ctx, room)
		if err != nil {
			return 0, fmt.Errorf("reserve id: %w", err)
		}

		data, err := encode(id)
		if err != nil {
			return 0, fmt.Errorf("encode message: %w", err)
		}

		err = s.store.AppendMessage(ctx, room, id, data)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, store.ErrSlotOccupied) {
			return 0, fmt.Errorf("append message: %w", err)
		}

		s.log.Warn().Str("room", room).Int64("id", id).Msg("sequence slot occupied, retrying with fresh id")
	}
	return 0, ErrSequencing
}

// Watermark returns the next unassigned sequence ID for the room, 0
// when the room has no messages yet.
func (s *Sequencer) Watermark(ctx context.Context, room string) (int64, error) {
	return s.store.CurrentMessageID(ctx, room)
}

// FetchRange returns the stored messages for the requested IDs. IDs
// that precede the history start or were never written are omitted.
func (s *Sequencer) FetchRange(ctx context.Context, room string, ids []int64) ([][]byte, error) {
	var msgs [][]byte
	err := store.RetryReads(ctx, 2, func() error {
		var ferr error
		msgs, ferr = s.store.FetchMessages(ctx, room, ids)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch range: %w", err)
	}
	return msgs, nil
}
