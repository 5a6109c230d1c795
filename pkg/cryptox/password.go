package cryptox

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

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt

	// maxMemory bounds what a stored digest may ask Verify to allocate (1 GiB).
	maxMemory = 1024 * 1024
)

// ErrEmptyPassword is returned by Hash when asked to hash an empty plaintext.
var ErrEmptyPassword = errors.New("cryptox: empty password")

// PasswordHasher is a one-way credential hashing primitive. It carries no
// business policy: minimum lengths and similar rules belong to the caller.
type PasswordHasher interface {
	// Hash returns a salted, self-describing digest of plaintext.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches digest. A malformed digest
	// is a mismatch, never an error.
	Verify(plaintext, digest string) bool
}

// Argon2Hasher produces PHC-format Argon2id digests. The zero value is usable
// and hashes without a pepper.
type Argon2Hasher struct {
	// Pepper is appended to every plaintext before hashing. Changing it
	// invalidates every stored digest.
	Pepper []byte

	dummyOnce sync.Once
	dummy     string
}

// NewArgon2Hasher returns a hasher using the given pepper (may be nil).
func NewArgon2Hasher(pepper []byte) *Argon2Hasher {
	return &Argon2Hasher{Pepper: pepper}
}

// Hash generates a PHC-format Argon2id hash string including salt and parameters.
func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey(h.peppered(plaintext), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify compares a plaintext password against a PHC-style Argon2id hash.
func (h *Argon2Hasher) Verify(plaintext, digest string) bool {
	p, err := parseArgon2(digest)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(h.peppered(plaintext), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.key))) // #nosec G115 - key length came from a decoded digest
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

// Owns reports whether digest is an Argon2id digest this hasher can verify.
func (h *Argon2Hasher) Owns(digest string) bool {
	_, err := parseArgon2(digest)
	return err == nil
}

// Dummy returns a valid digest of a random secret. Verifying against it costs
// the same as verifying a real password, which lets callers keep the timing of
// "unknown user" and "wrong password" indistinguishable.
func (h *Argon2Hasher) Dummy() string {
	h.dummyOnce.Do(func() {
		secret, err := GenerateToken(TokenSize128)
		if err != nil {
			secret = "warden-dummy-secret"
		}
		h.dummy, _ = h.Hash(secret)
	})
	return h.dummy
}

func (h *Argon2Hasher) peppered(plaintext string) []byte {
	b := make([]byte, 0, len(plaintext)+len(h.Pepper))
	b = append(b, plaintext...)
	return append(b, h.Pepper...)
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// parseArgon2 splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash into its parts.
func parseArgon2(digest string) (argon2Params, error) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, errors.New("invalid hash format: expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return p, errors.New("invalid hash format: not argon2id")
	}
	if parts[2] != "v=19" {
		return p, errors.New("invalid hash format: wrong version")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, fmt.Errorf("invalid hash format: failed to parse parameters: %w", err)
	}
	if p.memory == 0 || p.iterations == 0 || p.parallelism == 0 || p.memory > maxMemory {
		return p, errors.New("invalid hash format: parameters out of range")
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("invalid hash format: failed to decode salt: %w", err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("invalid hash format: failed to decode hash: %w", err)
	}
	if len(p.salt) == 0 || len(p.key) == 0 {
		return p, errors.New("invalid hash format: empty salt or hash")
	}

	return p, nil
}
