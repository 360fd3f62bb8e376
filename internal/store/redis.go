package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/makersmarket/session-auth-service/internal/domain"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/security"
)

// RedisStore implements the same contract as MemoryStore on a shared
// redis backend, so multiple instances can serve the same session
// table. Value keys carry the TTL; a per-user set indexes tokens for
// list and logout-everywhere operations.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	// overridable in tests
	now      func() time.Time
	newToken func() (string, error)
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		now:      time.Now,
		newToken: security.NewSessionToken,
	}
}

func (s *RedisStore) Create(ctx context.Context, userID uint) (*domain.Session, error) {
	token, err := s.newToken()
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "create", "error")
		return nil, err
	}
	now := s.now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "create", "error")
		return nil, fmt.Errorf("encode session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.tokenKey(token), payload, s.ttl).Result()
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "create", "error")
		return nil, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		observability.RecordSessionStoreOperation(ctx, "redis", "create", "collision")
		return nil, ErrTokenCollision
	}
	if err := s.client.SAdd(ctx, s.userKey(userID), token).Err(); err != nil {
		_ = s.client.Del(ctx, s.tokenKey(token)).Err()
		observability.RecordSessionStoreOperation(ctx, "redis", "create", "error")
		return nil, fmt.Errorf("index session: %w", err)
	}
	observability.RecordSessionStoreOperation(ctx, "redis", "create", "success")
	return &sess, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.fetch(ctx, token)
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "validate", "error")
		return nil, err
	}
	if sess == nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "validate", "not_found")
		return nil, nil
	}
	if sess.Expired(s.now()) {
		if _, err := s.remove(ctx, token, sess.UserID); err != nil {
			observability.RecordSessionStoreOperation(ctx, "redis", "validate", "error")
			return nil, err
		}
		observability.RecordSessionStoreOperation(ctx, "redis", "validate", "expired")
		return nil, nil
	}
	observability.RecordSessionStoreOperation(ctx, "redis", "validate", "success")
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	sess, err := s.fetch(ctx, token)
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "delete", "error")
		return false, err
	}
	if sess == nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "delete", "not_found")
		return false, nil
	}
	removed, err := s.remove(ctx, token, sess.UserID)
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "delete", "error")
		return false, err
	}
	observability.RecordSessionStoreOperation(ctx, "redis", "delete", "success")
	return removed, nil
}

func (s *RedisStore) DeleteByUser(ctx context.Context, userID uint) (int, error) {
	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "delete_by_user", "error")
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	removed := 0
	for _, token := range tokens {
		n, err := s.client.Del(ctx, s.tokenKey(token)).Result()
		if err != nil {
			observability.RecordSessionStoreOperation(ctx, "redis", "delete_by_user", "error")
			return removed, fmt.Errorf("delete session: %w", err)
		}
		removed += int(n)
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "delete_by_user", "error")
		return removed, fmt.Errorf("drop user index: %w", err)
	}
	observability.RecordSessionStoreOperation(ctx, "redis", "delete_by_user", "success")
	return removed, nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID uint) ([]domain.Session, error) {
	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "redis", "list_by_user", "error")
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	now := s.now()
	out := make([]domain.Session, 0, len(tokens))
	for _, token := range tokens {
		sess, err := s.fetch(ctx, token)
		if err != nil {
			observability.RecordSessionStoreOperation(ctx, "redis", "list_by_user", "error")
			return nil, err
		}
		if sess == nil {
			// value key already reclaimed by redis TTL; drop the stale
			// index member
			_ = s.client.SRem(ctx, s.userKey(userID), token).Err()
			continue
		}
		if sess.Expired(now) {
			if _, err := s.remove(ctx, token, userID); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, *sess)
	}
	observability.RecordSessionStoreOperation(ctx, "redis", "list_by_user", "success")
	return out, nil
}

// Sweep prunes index members whose value keys redis has already
// reclaimed via TTL. Value expiry itself needs no sweep on this
// backend.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	var cursor uint64
	removed := 0
	pattern := s.prefix + ":user:*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan user indexes: %w", err)
		}
		for _, key := range keys {
			tokens, err := s.client.SMembers(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("list user sessions: %w", err)
			}
			for _, token := range tokens {
				exists, err := s.client.Exists(ctx, s.tokenKey(token)).Result()
				if err != nil {
					return removed, fmt.Errorf("check session: %w", err)
				}
				if exists == 0 {
					if err := s.client.SRem(ctx, key, token).Err(); err != nil {
						return removed, fmt.Errorf("prune index: %w", err)
					}
					removed++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	observability.RecordSessionSweep(ctx, "redis", removed)
	return removed, nil
}

// fetch loads and decodes the session for token, restoring the Token
// field which is never persisted in the value payload.
func (s *RedisStore) fetch(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Token = token
	return &sess, nil
}

func (s *RedisStore) remove(ctx context.Context, token string, userID uint) (bool, error) {
	pipe := s.client.Pipeline()
	delCmd := pipe.Del(ctx, s.tokenKey(token))
	pipe.SRem(ctx, s.userKey(userID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return delCmd.Val() > 0, nil
}

func (s *RedisStore) tokenKey(token string) string {
	return s.prefix + ":token:" + token
}

func (s *RedisStore) userKey(userID uint) string {
	return fmt.Sprintf("%s:user:%d", s.prefix, userID)
}
