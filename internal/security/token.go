package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// sessionTokenBytes gives 256 bits of entropy per token.
const sessionTokenBytes = 32

// SessionTokenLength is the encoded length of tokens produced by
// NewSessionToken.
const SessionTokenLength = 43

// NewSessionToken returns an opaque bearer token drawn from the
// operating system CSPRNG, encoded URL-safe for use in headers and
// cookies.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: generate session token: %v", ErrInternalCrypto, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
