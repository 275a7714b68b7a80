package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "argon2id"

// Params tunes Argon2id hashing.
type Params struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// DefaultParams is used for every newly hashed password.
var DefaultParams = Params{
	Time:       1,
	Memory:     64 * 1024,
	Threads:    4,
	KeyLength:  32,
	SaltLength: 16,
}

// ErrUnsupportedHash is returned for encodings that are neither Argon2id nor bcrypt.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// Hasher implements ports.PasswordHasher. New hashes are Argon2id; bcrypt hashes
// ($2a$, $2b$, $2y$) are still accepted on verify.
type Hasher struct {
	Params Params
}

// NewHasher returns a Hasher using DefaultParams.
func NewHasher() Hasher {
	return Hasher{Params: DefaultParams}
}

// Hash encodes the password as argon2id$t$m$p$salt$hash.
func (h Hasher) Hash(password string) (string, error) {
	p := h.params()
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLength)
	return strings.Join([]string{
		argon2idPrefix,
		strconv.FormatUint(uint64(p.Time), 10),
		strconv.FormatUint(uint64(p.Memory), 10),
		strconv.FormatUint(uint64(p.Threads), 10),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verify reports whether password matches encoded.
func (h Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2idPrefix+"$"):
		return verifyArgon2id(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

func (h Hasher) params() Params {
	p := h.Params
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultParams.KeyLength
	}
	if p.SaltLength == 0 {
		p.SaltLength = DefaultParams.SaltLength
	}
	return p
}

func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid argon2id hash: expected 6 fields, got %d", len(parts))
	}
	var nums [3]uint64
	for i, raw := range parts[1:4] {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return false, fmt.Errorf("invalid argon2id parameter %q: %w", raw, err)
		}
		nums[i] = v
	}
	if nums[2] == 0 || nums[2] > 255 {
		return false, errors.New("invalid argon2id thread count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}
	got := argon2.IDKey([]byte(password), salt, uint32(nums[0]), uint32(nums[1]), uint8(nums[2]), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
