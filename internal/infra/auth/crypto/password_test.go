package crypto

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := Hasher{Params: Params{Time: 1, Memory: 8 * 1024, Threads: 1}}
	encoded, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := h.Verify("s3cret-pass", encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong", encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHasherAcceptsBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := NewHasher()
	ok, err := h.Verify("admin", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("nope", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHasherRejectsUnknownEncoding(t *testing.T) {
	if _, err := NewHasher().Verify("x", "plain:x"); err == nil {
		t.Fatalf("expected error for unsupported hash")
	}
	if _, err := NewHasher().Verify("x", "argon2id$1$2"); err == nil {
		t.Fatalf("expected error for truncated argon2id hash")
	}
}
