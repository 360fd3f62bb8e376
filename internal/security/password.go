package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInternalCrypto marks a failure of the hashing or random primitive
// itself. Fatal to the calling request, never to the process.
var ErrInternalCrypto = errors.New("internal crypto failure")

// BcryptCost trades offline brute-force resistance against interactive
// login latency; 12 keeps a single verification sub-second on commodity
// hardware.
const BcryptCost = 12

func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", ErrInternalCrypto, err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether plaintext matches the stored digest.
// A malformed digest verifies as false rather than erroring.
func VerifyPassword(digest, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
