package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("CorrectPass1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if digest == "CorrectPass1" || digest == "" {
		t.Fatalf("digest must not echo the plaintext, got %q", digest)
	}
	if !VerifyPassword(digest, "CorrectPass1") {
		t.Fatal("expected digest to verify against original password")
	}
	if VerifyPassword(digest, "WrongPass1") {
		t.Fatal("expected mismatched password to fail verification")
	}
}

func TestHashPasswordUsesConfiguredCost(t *testing.T) {
	digest, err := HashPassword("cost-probe-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		t.Fatalf("read bcrypt cost: %v", err)
	}
	if cost != BcryptCost {
		t.Fatalf("bcrypt cost=%d want %d", cost, BcryptCost)
	}
}

func TestHashPasswordSaltsEachDigest(t *testing.T) {
	first, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	for _, digest := range []string{"", "not-a-bcrypt-digest", strings.Repeat("x", 60)} {
		if VerifyPassword(digest, "anything") {
			t.Fatalf("malformed digest %q must not verify", digest)
		}
	}
}
