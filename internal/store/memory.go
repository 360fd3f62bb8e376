package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makersmarket/session-auth-service/internal/domain"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/security"
)

// MemoryStore keeps all live sessions in a mutex-protected map with a
// per-user index. It is the default backend for a single-process
// deployment; lookup, insert and delete are O(1).
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]domain.Session
	byUser   map[uint]map[string]struct{}

	// overridable in tests
	now      func() time.Time
	newToken func() (string, error)
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]domain.Session),
		byUser:   make(map[uint]map[string]struct{}),
		now:      time.Now,
		newToken: security.NewSessionToken,
	}
}

func (s *MemoryStore) Create(ctx context.Context, userID uint) (*domain.Session, error) {
	token, err := s.newToken()
	if err != nil {
		observability.RecordSessionStoreOperation(ctx, "memory", "create", "error")
		return nil, err
	}
	now := s.now()

	s.mu.Lock()
	swept := s.sweepLocked(now)
	if _, exists := s.sessions[token]; exists {
		s.mu.Unlock()
		observability.RecordSessionStoreOperation(ctx, "memory", "create", "collision")
		return nil, ErrTokenCollision
	}
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[token] = sess
	tokens, ok := s.byUser[userID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byUser[userID] = tokens
	}
	tokens[token] = struct{}{}
	s.mu.Unlock()

	observability.RecordSessionSweep(ctx, "memory", swept)
	observability.RecordSessionStoreOperation(ctx, "memory", "create", "success")
	return &sess, nil
}

func (s *MemoryStore) Validate(ctx context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		observability.RecordSessionStoreOperation(ctx, "memory", "validate", "not_found")
		return nil, nil
	}
	if sess.Expired(s.now()) {
		s.mu.Lock()
		s.removeLocked(token)
		s.mu.Unlock()
		observability.RecordSessionStoreOperation(ctx, "memory", "validate", "expired")
		return nil, nil
	}
	observability.RecordSessionStoreOperation(ctx, "memory", "validate", "success")
	return &sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	removed := s.removeLocked(token)
	s.mu.Unlock()
	if removed {
		observability.RecordSessionStoreOperation(ctx, "memory", "delete", "success")
	} else {
		observability.RecordSessionStoreOperation(ctx, "memory", "delete", "not_found")
	}
	return removed, nil
}

func (s *MemoryStore) DeleteByUser(ctx context.Context, userID uint) (int, error) {
	s.mu.Lock()
	removed := 0
	for token := range s.byUser[userID] {
		if s.removeLocked(token) {
			removed++
		}
	}
	s.mu.Unlock()
	observability.RecordSessionStoreOperation(ctx, "memory", "delete_by_user", "success")
	return removed, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID uint) ([]domain.Session, error) {
	now := s.now()
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.byUser[userID]))
	for token := range s.byUser[userID] {
		sess, ok := s.sessions[token]
		if ok && !sess.Expired(now) {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()
	observability.RecordSessionStoreOperation(ctx, "memory", "list_by_user", "success")
	return out, nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	removed := s.sweepLocked(now)
	s.mu.Unlock()
	observability.RecordSessionSweep(ctx, "memory", removed)
	return removed, nil
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			s.removeLocked(token)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) removeLocked(token string) bool {
	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	delete(s.sessions, token)
	if tokens, ok := s.byUser[sess.UserID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
	return true
}
