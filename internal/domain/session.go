package domain

import "time"

// Session binds an opaque bearer token to a user identity for a fixed
// time window. Token is the only value ever exchanged with a client;
// ID exists for internal bookkeeping and diagnostics.
type Session struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given
// instant. A session whose ExpiresAt equals now is already expired.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
