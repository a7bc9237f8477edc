package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingRecordVersion1 = 1

	pendingKeyspace = "pending_handshake:"
	sessionKeyspace = "session_token:"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrPendingNotFound     = errors.New("pending handshake not found")
	ErrHandshakeSuperseded = errors.New("pending handshake superseded")
	ErrStoreUnavailable    = errors.New("session store unavailable")
	ErrPendingCorrupt      = errors.New("pending handshake record corrupt")
)

// PendingHandshake is the persisted record of one roll-in attempt awaiting completion.
type PendingHandshake struct {
	UserID    string
	Token     string
	CreatedAt time.Time
}

// SessionStore is the typed accessor for the pending-handshake and
// session-token keyspaces. Both live under independent keys.
type SessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSessionStore(redisClient redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *SessionStore) pendingKey(userID string) string {
	return s.prefix + pendingKeyspace + userID
}

func (s *SessionStore) sessionKey(userID string) string {
	return s.prefix + sessionKeyspace + userID
}

// GetSessionToken returns the active session token for userID.
func (s *SessionStore) GetSessionToken(ctx context.Context, userID string) (string, error) {
	token, err := s.redis.Get(ctx, s.sessionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if token == "" {
		return "", ErrSessionNotFound
	}
	return token, nil
}

// SetPending records handshakeToken as the pending roll-in for userID,
// replacing any earlier one. ttl <= 0 stores the record without expiry.
func (s *SessionStore) SetPending(ctx context.Context, userID, handshakeToken string, ttl time.Duration) error {
	if userID == "" || handshakeToken == "" {
		return errors.New("pending handshake requires user and token")
	}
	encoded, err := encodePendingHandshake(&PendingHandshake{
		UserID:    userID,
		Token:     handshakeToken,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.pendingKey(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) GetPending(ctx context.Context, userID string) (*PendingHandshake, error) {
	data, err := s.redis.Get(ctx, s.pendingKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodePendingHandshake(data)
}

// Promote establishes sessionToken as the session for userID, provided
// handshakeToken is still the pending handshake. The session write and the
// pending delete commit in one MULTI, so readers never see a half state.
// A pending record that names another token yields ErrHandshakeSuperseded.
// Losing every optimistic retry to concurrent writers yields
// ErrStoreUnavailable.
func (s *SessionStore) Promote(ctx context.Context, userID, handshakeToken, sessionToken string) error {
	if sessionToken == "" {
		return errors.New("promote requires session token")
	}

	const maxRetries = 4
	pendingKey := s.pendingKey(userID)
	sessionKey := s.sessionKey(userID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, pendingKey).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrHandshakeSuperseded
				}
				return err
			}
			record, err := decodePendingHandshake(data)
			if err != nil {
				return err
			}
			if record.Token != handshakeToken {
				return ErrHandshakeSuperseded
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, sessionKey, sessionToken, 0)
				pipe.Del(ctx, pendingKey)
				return nil
			})
			return err
		}, pendingKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrHandshakeSuperseded) || errors.Is(err, ErrPendingCorrupt) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: promote contention after %d retries", ErrStoreUnavailable, maxRetries)
}

// ClearPending removes the pending record for userID only while it still
// names handshakeToken, so an expiring stale task cannot erase a newer roll-in.
func (s *SessionStore) ClearPending(ctx context.Context, userID, handshakeToken string) error {
	key := s.pendingKey(userID)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		record, err := decodePendingHandshake(data)
		if err == nil && record.Token != handshakeToken {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil, errors.Is(err, redis.Nil):
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// Someone rewrote the key concurrently; that write wins.
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// ClearSession deletes the session token, any pending handshake and the
// extra keys the caller owns for the same user (cached profile). Dropping
// the pending record makes a concurrent Promote for that user fail with
// ErrHandshakeSuperseded. Deleting absent keys is not an error.
func (s *SessionStore) ClearSession(ctx context.Context, userID string, extraKeys ...string) error {
	keys := append([]string{s.sessionKey(userID), s.pendingKey(userID)}, extraKeys...)
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodePendingHandshake(record *PendingHandshake) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if len(record.UserID) > 65535 || len(record.Token) > 65535 {
		return nil, errors.New("pending handshake field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Token)

	return buf.Bytes(), nil
}

func decodePendingHandshake(data []byte) (*PendingHandshake, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrPendingCorrupt
	}
	if version != pendingRecordVersion1 {
		return nil, ErrPendingCorrupt
	}

	var createdMillis int64
	if err := binary.Read(reader, binary.BigEndian, &createdMillis); err != nil {
		return nil, ErrPendingCorrupt
	}

	user, err := readString16(reader)
	if err != nil {
		return nil, ErrPendingCorrupt
	}
	token, err := readString16(reader)
	if err != nil {
		return nil, ErrPendingCorrupt
	}

	return &PendingHandshake{
		UserID:    user,
		Token:     token,
		CreatedAt: time.UnixMilli(createdMillis),
	}, nil
}

func readString16(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
