package cryptox

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// LegacyHasher hashes with Primary but also verifies bcrypt digests left
// behind by older deployments. New digests always come from Primary.
type LegacyHasher struct {
	Primary *Argon2Hasher
}

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

func (h *LegacyHasher) Hash(plaintext string) (string, error) {
	return h.Primary.Hash(plaintext)
}

func (h *LegacyHasher) Verify(plaintext, digest string) bool {
	if isBcrypt(digest) {
		// bcrypt digests predate the pepper so they are checked bare
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	}
	return h.Primary.Verify(plaintext, digest)
}

// NeedsRehash reports whether digest was not produced by Primary and should
// be replaced the next time the plaintext is known.
func (h *LegacyHasher) NeedsRehash(digest string) bool {
	return !h.Primary.Owns(digest)
}

// Dummy forwards to Primary so the timing profile matches current digests.
func (h *LegacyHasher) Dummy() string {
	return h.Primary.Dummy()
}

func isBcrypt(digest string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(digest, p) {
			return true
		}
	}
	return false
}
