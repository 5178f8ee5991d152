// Package redis implements the store boundary on a Redis server using
// hash, set and counter primitives.
package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatspace/chatspace-server/internal/store"
)

const (
	keyMessageCounters = "channels:currentMessageID"
	keyTopics          = "topic"
	keyPrivateRooms    = "channels:private"
	keyRoomPasswords   = "channel_passwords"
)

func keyChatlog(room string) string   { return "chatlog:" + room }
func keyNicknames(room string) string { return "users:" + room }
func keySalts(room string) string     { return "salts:" + room }
func keyKeys(room string) string      { return "passwords:" + room }

// Store implements store.Store against a Redis server.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// SaveCredential reserves the nickname in the room's registration set,
// then writes salt and derived key in one transaction. SADD is the
// reservation point: a second registration for the same nickname sees
// zero added members and fails before touching the hashes.
func (s *Store) SaveCredential(ctx context.Context, room string, cred store.Credential) error {
	added, err := s.client.SAdd(ctx, keyNicknames(room), cred.Nickname).Result()
	if err != nil {
		return fmt.Errorf("reserve nickname: %w", err)
	}
	if added == 0 {
		return store.ErrNicknameRegistered
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, keySalts(room), cred.Nickname, hex.EncodeToString(cred.Salt))
	pipe.HSet(ctx, keyKeys(room), cred.Nickname, hex.EncodeToString(cred.Key))
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll back the reservation so a retry can succeed.
		s.client.SRem(ctx, keyNicknames(room), cred.Nickname)
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, room, nickname string) (store.Credential, error) {
	registered, err := s.IsRegistered(ctx, room, nickname)
	if err != nil {
		return store.Credential{}, err
	}
	if !registered {
		return store.Credential{}, store.ErrNotFound
	}

	pipe := s.client.Pipeline()
	saltCmd := pipe.HGet(ctx, keySalts(room), nickname)
	keyCmd := pipe.HGet(ctx, keyKeys(room), nickname)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Credential{}, store.ErrNotFound
		}
		return store.Credential{}, fmt.Errorf("fetch credential: %w", err)
	}

	salt, err := hex.DecodeString(saltCmd.Val())
	if err != nil {
		return store.Credential{}, fmt.Errorf("decode salt: %w", err)
	}
	key, err := hex.DecodeString(keyCmd.Val())
	if err != nil {
		return store.Credential{}, fmt.Errorf("decode derived key: %w", err)
	}

	return store.Credential{Nickname: nickname, Salt: salt, Key: key}, nil
}

func (s *Store) IsRegistered(ctx context.Context, room, nickname string) (bool, error) {
	registered, err := s.client.SIsMember(ctx, keyNicknames(room), nickname).Result()
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return registered, nil
}

// ReserveMessageID relies on HINCRBY being atomic server-side: each
// caller gets a distinct counter value, and the reserved ID is the
// value before the increment.
func (s *Store) ReserveMessageID(ctx context.Context, room string) (int64, error) {
	next, err := s.client.HIncrBy(ctx, keyMessageCounters, room, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve message id: %w", err)
	}
	return next - 1, nil
}

func (s *Store) CurrentMessageID(ctx context.Context, room string) (int64, error) {
	val, err := s.client.HGet(ctx, keyMessageCounters, room).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read message counter: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse message counter: %w", err)
	}
	return id, nil
}

func (s *Store) AppendMessage(ctx context.Context, room string, id int64, data []byte) error {
	set, err := s.client.HSetNX(ctx, keyChatlog(room), strconv.FormatInt(id, 10), data).Result()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if !set {
		return store.ErrSlotOccupied
	}
	return nil
}

func (s *Store) FetchMessages(ctx context.Context, room string, ids []int64) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}

	vals, err := s.client.HMGet(ctx, keyChatlog(room), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // missing slot
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

func (s *Store) SetTopic(ctx context.Context, room, topic string) error {
	if err := s.client.HSet(ctx, keyTopics, room, topic).Err(); err != nil {
		return fmt.Errorf("set topic: %w", err)
	}
	return nil
}

func (s *Store) GetTopic(ctx context.Context, room string) (string, error) {
	topic, err := s.client.HGet(ctx, keyTopics, room).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

func (s *Store) SetPrivate(ctx context.Context, room, passwordHash string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, keyPrivateRooms, room, "1")
	pipe.HSet(ctx, keyRoomPasswords, room, passwordHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set private: %w", err)
	}
	return nil
}

func (s *Store) SetPublic(ctx context.Context, room string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, keyPrivateRooms, room)
	pipe.HDel(ctx, keyRoomPasswords, room)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set public: %w", err)
	}
	return nil
}

func (s *Store) Privacy(ctx context.Context, room string) (bool, string, error) {
	flag, err := s.client.HGet(ctx, keyPrivateRooms, room).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read privacy flag: %w", err)
	}
	if flag != "1" {
		return false, "", nil
	}

	hash, err := s.client.HGet(ctx, keyRoomPasswords, room).Result()
	if errors.Is(err, redis.Nil) {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read room password: %w", err)
	}
	return true, hash, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
