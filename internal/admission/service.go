// Package admission is the channel-admission collaborator: it decides
// whether a client may enter a channel, owns the public/private
// password gate, and mints session tokens for connecting clients.
package admission

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/chatspace/chatspace-server/internal/core"
	"github.com/chatspace/chatspace-server/internal/store"
)

const (
	// bcryptCost of 10 balances gate strength against join latency.
	bcryptCost = 10
)

// Service implements the core.Admission collaborator on top of the
// channel metadata store.
type Service struct {
	meta store.ChannelMetaStore
}

// NewService builds an admission service.
func NewService(meta store.ChannelMetaStore) *Service {
	return &Service{meta: meta}
}

// Authenticate admits into public channels unconditionally. Private
// channels require the channel password: absent yields
// core.ErrChannelPasswordRequired, mismatched yields
// core.ErrWrongChannelPassword.
func (s *Service) Authenticate(ctx context.Context, room, password string) error {
	private, hash, err := s.meta.Privacy(ctx, room)
	if err != nil {
		return fmt.Errorf("read channel privacy: %w", err)
	}
	if !private {
		return nil
	}
	if password == "" {
		return core.ErrChannelPasswordRequired
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return core.ErrWrongChannelPassword
	}
	return nil
}

// MakePublic clears the channel's password gate.
func (s *Service) MakePublic(ctx context.Context, room string) error {
	if err := s.meta.SetPublic(ctx, room); err != nil {
		return fmt.Errorf("make public: %w", err)
	}
	return nil
}

// MakePrivate gates the channel behind the given password.
func (s *Service) MakePrivate(ctx context.Context, room, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash channel password: %w", err)
	}
	if err := s.meta.SetPrivate(ctx, room, string(hash)); err != nil {
		return fmt.Errorf("make private: %w", err)
	}
	return nil
}
