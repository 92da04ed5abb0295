package security

import (
	"errors"
	"strings"
	"testing"
)

// cheap params so the suite stays fast
var testParams = Params{MemoryKiB: 64, Time: 1, Threads: 1}

func TestHashAndCheck(t *testing.T) {
	h := NewHasher(testParams)

	hash, err := h.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if strings.Contains(hash, "password123") {
		t.Fatalf("hash must not contain the plaintext")
	}

	ok, err := h.CheckPassword(hash, "password123")
	if err != nil || !ok {
		t.Fatalf("CheckPassword(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.CheckPassword(hash, "password124")
	if err != nil || ok {
		t.Fatalf("CheckPassword(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(testParams)

	a, _ := h.HashPassword("same-password")
	b, _ := h.HashPassword("same-password")

	if a == b {
		t.Fatalf("two hashes of the same password should differ")
	}
}

func TestLongPasswordsAreNotTruncated(t *testing.T) {
	h := NewHasher(testParams)

	base := strings.Repeat("a", 100)
	hash, err := h.HashPassword(base + "X")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	ok, _ := h.CheckPassword(hash, base+"Y")
	if ok {
		t.Fatalf("passwords differing after byte 72 must not match")
	}
}

func TestCheckUsesParamsEmbeddedInHash(t *testing.T) {
	old := NewHasher(testParams)
	hash, _ := old.HashPassword("password123")

	current := NewHasher(Params{MemoryKiB: 128, Time: 2, Threads: 1})

	ok, err := current.CheckPassword(hash, "password123")
	if err != nil || !ok {
		t.Fatalf("hash made with older params should still verify, got %v, %v", ok, err)
	}
}

func TestHashFailureIsSurfaced(t *testing.T) {
	h := NewHasher(testParams)
	h.rand = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

	hash, err := h.HashPassword("password123")
	if !errors.Is(err, ErrHashFailed) {
		t.Fatalf("expected ErrHashFailed, got %v", err)
	}
	if hash != "" {
		t.Fatalf("no hash may be returned on failure, got %q", hash)
	}
}

func TestCheckMalformedHash(t *testing.T) {
	h := NewHasher(testParams)

	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "empty", hash: "", want: ErrMalformedHash},
		{name: "bcrypt", hash: "$2a$10$abcdefghijklmnopqrstuv", want: ErrMalformedHash},
		{name: "bad params", hash: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", want: ErrMalformedHash},
		{name: "zero params", hash: "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5", want: ErrMalformedHash},
		{name: "bad salt", hash: "$argon2id$v=19$m=64,t=1,p=1$!!!$a2V5", want: ErrMalformedHash},
		{name: "old version", hash: "$argon2id$v=16$m=64,t=1,p=1$c2FsdA$a2V5", want: ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.CheckPassword(tt.hash, "password123")
			if ok {
				t.Fatalf("malformed hash must never verify")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDummyHashIsStableAndValid(t *testing.T) {
	h := NewHasher(testParams)

	a, err := h.DummyHash()
	if err != nil {
		t.Fatalf("DummyHash() error = %v", err)
	}
	b, _ := h.DummyHash()
	if a != b {
		t.Fatalf("DummyHash should be computed once")
	}

	ok, err := h.CheckPassword(a, "anything")
	if err != nil {
		t.Fatalf("dummy hash should decode, got %v", err)
	}
	if ok {
		t.Fatalf("dummy hash should not match arbitrary input")
	}
}
