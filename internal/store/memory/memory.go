// Package memory implements the store boundary entirely in process
// memory. It backs tests and single-node deployments that don't need
// durability across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/chatspace/chatspace-server/internal/store"
)

type roomState struct {
	counter  int64
	messages map[int64][]byte
	creds    map[string]store.Credential
	topic    string
	topicSet bool
	private  bool
	roomPass string
}

// Store implements store.Store with a single mutex over all rooms.
// Every operation is one critical section, which gives the same
// atomicity the Redis implementation gets from server-side commands.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{rooms: make(map[string]*roomState)}
}

func (s *Store) room(name string) *roomState {
	r, ok := s.rooms[name]
	if !ok {
		r = &roomState{
			messages: make(map[int64][]byte),
			creds:    make(map[string]store.Credential),
		}
		s.rooms[name] = r
	}
	return r
}

func (s *Store) SaveCredential(_ context.Context, room string, cred store.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	if _, exists := r.creds[cred.Nickname]; exists {
		return store.ErrNicknameRegistered
	}
	r.creds[cred.Nickname] = cred
	return nil
}

func (s *Store) GetCredential(_ context.Context, room, nickname string) (store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.room(room).creds[nickname]
	if !ok {
		return store.Credential{}, store.ErrNotFound
	}
	return cred, nil
}

func (s *Store) IsRegistered(_ context.Context, room, nickname string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.room(room).creds[nickname]
	return ok, nil
}

func (s *Store) ReserveMessageID(_ context.Context, room string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	id := r.counter
	r.counter++
	return id, nil
}

func (s *Store) CurrentMessageID(_ context.Context, room string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.room(room).counter, nil
}

func (s *Store) AppendMessage(_ context.Context, room string, id int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	if _, exists := r.messages[id]; exists {
		return store.ErrSlotOccupied
	}
	r.messages[id] = data
	return nil
}

func (s *Store) FetchMessages(_ context.Context, room string, ids []int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if data, ok := r.messages[id]; ok {
			out = append(out, data)
		}
	}
	return out, nil
}

func (s *Store) SetTopic(_ context.Context, room, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	r.topic = topic
	r.topicSet = true
	return nil
}

func (s *Store) GetTopic(_ context.Context, room string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	if !r.topicSet {
		return "", store.ErrNotFound
	}
	return r.topic, nil
}

func (s *Store) SetPrivate(_ context.Context, room, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	r.private = true
	r.roomPass = passwordHash
	return nil
}

func (s *Store) SetPublic(_ context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	r.private = false
	r.roomPass = ""
	return nil
}

func (s *Store) Privacy(_ context.Context, room string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(room)
	return r.private, r.roomPass, nil
}

func (s *Store) Close() error {
	return nil
}
