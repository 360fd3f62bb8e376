package security

import (
	"encoding/base64"
	"testing"
)

func TestNewSessionTokenLength(t *testing.T) {
	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}
	if len(token) != SessionTokenLength {
		t.Fatalf("token length=%d want %d", len(token), SessionTokenLength)
	}
}

func TestNewSessionTokenIsURLSafe(t *testing.T) {
	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not raw URL-safe base64: %v", err)
	}
	if len(raw) != sessionTokenBytes {
		t.Fatalf("decoded token=%d bytes want %d", len(raw), sessionTokenBytes)
	}
}

func TestNewSessionTokenUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := NewSessionToken()
		if err != nil {
			t.Fatalf("new session token: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[token] = struct{}{}
	}
}
