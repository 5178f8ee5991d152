// Package identity binds nicknames to password-derived credentials and
// verifies ownership of them per room.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/chatspace/chatspace-server/internal/store"
)

var (
	// ErrNicknameTaken is returned when the nickname already has a
	// credential in the room.
	ErrNicknameTaken = errors.New("nickname already registered")
	// ErrUnknownNickname is returned when no credential exists for the
	// nickname in the room.
	ErrUnknownNickname = errors.New("no registration on file")
	// ErrWrongPassword is returned when the derived key does not match
	// the stored one.
	ErrWrongPassword = errors.New("wrong password")
)

const (
	saltSize = 32
	keySize  = 256

	// DefaultIterations is the PBKDF2 work factor. Deliberately slow to
	// resist offline brute force; tunable via config.
	DefaultIterations = 4096
)

// Service registers and verifies nickname credentials.
type Service struct {
	creds      store.CredentialStore
	iterations int
}

// NewService builds an identity service. iterations <= 0 selects
// DefaultIterations.
func NewService(creds store.CredentialStore, iterations int) *Service {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Service{creds: creds, iterations: iterations}
}

// Register creates a credential for the nickname in the room: a fresh
// random salt and a slow derived key, persisted together. Fails with
// ErrNicknameTaken when a credential already exists.
func (s *Service) Register(ctx context.Context, room, nickname, password string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	key := s.derive(ctx, password, salt)

	err := s.creds.SaveCredential(ctx, room, store.Credential{
		Nickname: nickname,
		Salt:     salt,
		Key:      key,
	})
	if errors.Is(err, store.ErrNicknameRegistered) {
		return ErrNicknameTaken
	}
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Verify re-derives a key from the submitted password and the stored
// salt and compares it against the stored key in constant time.
func (s *Service) Verify(ctx context.Context, room, nickname, password string) error {
	cred, err := s.creds.GetCredential(ctx, room, nickname)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownNickname
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	key := s.derive(ctx, password, cred.Salt)
	if subtle.ConstantTimeCompare(key, cred.Key) != 1 {
		return ErrWrongPassword
	}
	return nil
}

// IsRegistered reports whether the nickname has a credential in the room.
func (s *Service) IsRegistered(ctx context.Context, room, nickname string) (bool, error) {
	return s.creds.IsRegistered(ctx, room, nickname)
}

// derive runs the key derivation. It is CPU-bound and may take tens of
// milliseconds at the default work factor; callers run it on their own
// goroutine, never on a shared event loop.
func (s *Service) derive(_ context.Context, password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, s.iterations, keySize, sha256.New)
}
