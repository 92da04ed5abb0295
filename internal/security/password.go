package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrHashFailed means a hash could not be produced. Callers must treat it
	// as fatal; there is no fallback algorithm.
	ErrHashFailed          = errors.New("password hashing failed")
	ErrMalformedHash       = errors.New("malformed password hash")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

const (
	saltLen = 16
	keyLen  = 32
)

// Params is the argon2id cost. Every hash embeds the params it was made
// with, so changing them never breaks verification of older hashes.
type Params struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
}

func DefaultParams() Params {
	return Params{MemoryKiB: 64 * 1024, Time: 3, Threads: 2}
}

type Hasher struct {
	params Params
	rand   func([]byte) (int, error)

	dummyOnce sync.Once
	dummy     string
	dummyErr  error
}

func NewHasher(p Params) *Hasher {
	return &Hasher{params: p, rand: rand.Read}
}

// HashPassword returns a PHC-encoded argon2id hash of plain.
// argon2 has no input length ceiling, so the full password is always used.
func (h *Hasher) HashPassword(plain string) (string, error) {
	salt := make([]byte, saltLen)

	if _, err := h.rand(salt); err != nil {
		return "", fmt.Errorf("%w: read salt: %v", ErrHashFailed, err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, keyLen)

	return encode(h.params, salt, key), nil
}

// CheckPassword reports whether plain matches hash. A hash that cannot be
// decoded returns false together with the decode error.
func (h *Hasher) CheckPassword(hash, plain string) (bool, error) {
	p, salt, key, err := decode(hash)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// DummyHash is a valid hash at the configured cost, computed once. Checking a
// password against it costs the same as checking a real one.
func (h *Hasher) DummyHash() (string, error) {
	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = h.HashPassword("taskhub-timing-equaliser")
	})
	return h.dummy, h.dummyErr
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(hash string) (p Params, salt, key []byte, err error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		err = ErrMalformedHash
		return
	}

	var version int
	if _, e := fmt.Sscanf(parts[2], "v=%d", &version); e != nil {
		err = ErrMalformedHash
		return
	}
	if version != argon2.Version {
		err = ErrIncompatibleVersion
		return
	}

	if _, e := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); e != nil {
		err = ErrMalformedHash
		return
	}
	if p.MemoryKiB == 0 || p.Time == 0 || p.Threads == 0 {
		err = ErrMalformedHash
		return
	}

	salt, e := base64.RawStdEncoding.DecodeString(parts[4])
	if e != nil || len(salt) == 0 {
		err = ErrMalformedHash
		return
	}

	key, e = base64.RawStdEncoding.DecodeString(parts[5])
	if e != nil || len(key) == 0 {
		err = ErrMalformedHash
		return
	}

	return p, salt, key, nil
}
