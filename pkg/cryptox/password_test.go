package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	h := NewArgon2Hasher([]byte("test-pepper"))

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			require.True(t, h.Verify(tt.password, hash))
		})
	}
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	h := NewArgon2Hasher(nil)

	hash, err := h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
	require.Empty(t, hash)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h := NewArgon2Hasher(nil)

	hash1, err := h.Hash("samepassword")
	require.NoError(t, err)
	hash2, err := h.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
	require.True(t, h.Verify("samepassword", hash1))
	require.True(t, h.Verify("samepassword", hash2))
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	h := NewArgon2Hasher(nil)
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{
		"wrong-password",
		"Correct-Password",
		"correct-password ",
		"",
		"correct-passwor",
		strings.Repeat("x", 10000),
	} {
		require.False(t, h.Verify(wrong, hash), "password %q should not verify", wrong)
	}
}

func TestVerifyPassword_PepperMatters(t *testing.T) {
	hash, err := NewArgon2Hasher([]byte("pepper-one")).Hash("hunter22")
	require.NoError(t, err)

	require.True(t, NewArgon2Hasher([]byte("pepper-one")).Verify("hunter22", hash))
	require.False(t, NewArgon2Hasher([]byte("pepper-two")).Verify("hunter22", hash))
	require.False(t, NewArgon2Hasher(nil).Verify("hunter22", hash))
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	h := NewArgon2Hasher(nil)

	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"plaintext", "test-password"},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"zero memory", "$argon2id$v=19$m=0,t=2,p=1$c2FsdA$aGFzaA"},
		{"huge memory", "$argon2id$v=19$m=4000000000,t=2,p=1$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"empty salt", "$argon2id$v=19$m=19456,t=2,p=1$$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing version", "$argon2id$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, h.Verify("test-password", tt.invalidHash))
			})
			require.False(t, h.Owns(tt.invalidHash))
		})
	}
}

func TestDummyDigest(t *testing.T) {
	h := NewArgon2Hasher(nil)

	d := h.Dummy()
	require.True(t, h.Owns(d), "dummy digest must parse so verifying costs a full derivation")
	require.Equal(t, d, h.Dummy(), "dummy digest is computed once")
	require.False(t, h.Verify("anything", d))
}

func TestLegacyHasher(t *testing.T) {
	primary := NewArgon2Hasher([]byte("pepper"))
	h := &LegacyHasher{Primary: primary}

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("verifies bcrypt digests", func(t *testing.T) {
		require.True(t, h.Verify("old-password", string(legacy)))
		require.False(t, h.Verify("other-password", string(legacy)))
		require.True(t, h.NeedsRehash(string(legacy)))
	})

	t.Run("new digests come from the primary", func(t *testing.T) {
		fresh, err := h.Hash("new-password")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(fresh, "$argon2id$"))
		require.True(t, h.Verify("new-password", fresh))
		require.False(t, h.NeedsRehash(fresh))
	})

	t.Run("garbage is a mismatch", func(t *testing.T) {
		require.False(t, h.Verify("x", "$2a$garbage"))
		require.False(t, h.Verify("x", "garbage"))
	})
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Len(t, first, 43)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing pepper must be reused")

	none, err := LoadOrCreatePepper("")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestLoadOrCreatePepper_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))

	_, err := LoadOrCreatePepper(path)
	require.Error(t, err)
}

func TestLoadPepper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pepper")

	_, err := LoadPepper(path)
	require.ErrorIs(t, err, ErrPepperNotFound)
	_, statErr := os.Stat(path)
	require.ErrorIs(t, statErr, os.ErrNotExist, "loading must not create the file")

	created, err := LoadOrCreatePepper(path)
	require.NoError(t, err)

	loaded, err := LoadPepper(path)
	require.NoError(t, err)
	require.Equal(t, created, loaded)
}

func TestLoadOrCreatePepper_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pepper")

	const n = 16
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = LoadOrCreatePepper(path)
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i], "every caller must see the published pepper")
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}
