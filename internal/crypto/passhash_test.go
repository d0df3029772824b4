package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedAndCost(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("two hashes of the same password are equal; salt missing")
	}
	if strings.Contains(h1, "p@ssw0rd") {
		t.Fatalf("hash contains plaintext")
	}
	cost, err := bcrypt.Cost([]byte(h1))
	if err != nil || cost != HashCost {
		t.Fatalf("cost=%d err=%v, want %d", cost, err, HashCost)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if VerifyPassword(hash, "") {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
	if VerifyPassword("not-a-bcrypt-hash", "correct horse battery staple") {
		t.Fatalf("VerifyPassword: expected false for malformed hash")
	}
}
