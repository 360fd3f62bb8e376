package store

import (
	"context"
	"errors"

	"github.com/makersmarket/session-auth-service/internal/domain"
)

// ErrTokenCollision is returned when a freshly minted token is already
// present in the store. Entropy makes this practically impossible, but
// an existing session is never overwritten.
var ErrTokenCollision = errors.New("session token already in use")

// Store is the authoritative table of live sessions keyed by bearer
// token. Implementations must be safe for concurrent use: a Validate
// racing a Delete on the same token observes either the pre- or the
// post-delete state, never a partial one. The store exclusively owns
// all session records.
type Store interface {
	// Create mints a session for userID with a fresh token and the
	// store's fixed TTL. Expired entries are reclaimed as a side effect
	// so the table cannot grow without bound under steady login traffic.
	Create(ctx context.Context, userID uint) (*domain.Session, error)

	// Validate returns the session for token when present and unexpired,
	// or (nil, nil) otherwise. An entry found past its expiry is deleted
	// eagerly before (nil, nil) is returned.
	Validate(ctx context.Context, token string) (*domain.Session, error)

	// Delete removes the session if present and reports whether removal
	// occurred. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteByUser removes every session owned by userID and reports how
	// many were removed.
	DeleteByUser(ctx context.Context, userID uint) (int, error)

	// ListByUser returns the live sessions owned by userID.
	ListByUser(ctx context.Context, userID uint) ([]domain.Session, error)

	// Sweep removes every session past its expiry and reports how many.
	// Sessions created after the sweep began are unaffected.
	Sweep(ctx context.Context) (int, error)
}
