package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	profileKeyspace    = "profile:"
	lastPromptKeyspace = "last_prompt:"
)

var (
	ErrProfileNotCached = errors.New("profile not cached")
	ErrNoPromptRecorded = errors.New("no prompt message recorded")
)

// ProfileCache holds an opaque encoded profile per user. It is an
// accelerator only; a miss falls back to the provider.
type ProfileCache struct {
	redis  redis.UniversalClient
	prefix string
}

func NewProfileCache(redisClient redis.UniversalClient, prefix string) *ProfileCache {
	return &ProfileCache{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Key returns the Redis key backing userID's cached profile.
func (c *ProfileCache) Key(userID string) string {
	return c.prefix + profileKeyspace + userID
}

func (c *ProfileCache) Get(ctx context.Context, userID string) ([]byte, error) {
	data, err := c.redis.Get(ctx, c.Key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProfileNotCached
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return data, nil
}

func (c *ProfileCache) Set(ctx context.Context, userID string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.redis.Set(ctx, c.Key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MessageRefStore remembers the last QR prompt sent to each user so the
// next roll-in can remove it from the chat.
type MessageRefStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewMessageRefStore(redisClient redis.UniversalClient, prefix string) *MessageRefStore {
	return &MessageRefStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (m *MessageRefStore) key(userID string) string {
	return m.prefix + lastPromptKeyspace + userID
}

// Swap stores ref as the latest prompt for userID and returns the one it
// replaced. The previous value is ErrNoPromptRecorded when none existed.
func (m *MessageRefStore) Swap(ctx context.Context, userID, ref string, ttl time.Duration) (string, error) {
	prev, err := m.redis.SetArgs(ctx, m.key(userID), ref, redis.SetArgs{
		Get: true,
		TTL: ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoPromptRecorded
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return prev, nil
}

// Forget drops the recorded prompt for userID only if it still equals ref.
func (m *MessageRefStore) Forget(ctx context.Context, userID, ref string) error {
	key := m.key(userID)
	err := m.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		if current != ref {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil, errors.Is(err, redis.Nil), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
