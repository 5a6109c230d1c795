package recovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/internal/warden/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store  *sqlite.Store
	hasher *cryptox.Argon2Hasher
	svc    *service.RecoveryService
	out    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(t.TempDir(), "warden.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hasher := cryptox.NewArgon2Hasher([]byte("test-pepper"))
	return &harness{
		store:  st,
		hasher: hasher,
		svc:    &service.RecoveryService{Store: st, Hasher: hasher, Lockout: service.DefaultLockoutPolicy()},
		out:    &bytes.Buffer{},
	}
}

// tool answers prompts from input and password reads from secrets in order.
func (h *harness) tool(t *testing.T, input string, secrets ...string) *Tool {
	return &Tool{
		Service: h.svc,
		In:      bufio.NewReader(strings.NewReader(input)),
		Out:     h.out,
		ReadPassword: func() ([]byte, error) {
			if len(secrets) == 0 {
				t.Fatal("unexpected password prompt")
			}
			s := secrets[0]
			secrets = secrets[1:]
			return []byte(s), nil
		},
	}
}

// lockedUser creates username with three failures and an active lock.
func (h *harness) lockedUser(t *testing.T, username, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	digest, err := h.hasher.Hash(password)
	require.NoError(t, err)
	u := domain.User{ID: idx.New().String(), Username: username, PasswordHash: digest}
	require.NoError(t, h.store.Users().CreateUser(ctx, u))

	for range 3 {
		_, err := h.store.Users().RecordFailedAttempt(ctx, u.ID, time.Now())
		require.NoError(t, err)
	}
	u, err = h.store.Users().SetLock(ctx, u.ID, time.Now().Add(15*time.Minute))
	require.NoError(t, err)
	return u
}

func (h *harness) user(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := h.store.Users().GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	return u
}

func TestResetCredentials(t *testing.T) {
	h := newHarness(t)
	before := h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "yes\n", "new-password", "new-password").Run(context.Background(), Options{Username: "admin"})
	require.NoError(t, err)

	after := h.user(t, "admin")
	require.Equal(t, 0, after.FailedAttempts)
	require.Nil(t, after.LockedUntil)
	require.True(t, h.hasher.Verify("new-password", after.PasswordHash))
	require.False(t, h.hasher.Verify("old-password", after.PasswordHash))

	out := h.out.String()
	require.Contains(t, out, "found user admin (id "+before.ID+")")
	require.Contains(t, out, "failed attempts: 3")
	require.Contains(t, out, "locked until:")
	require.Contains(t, out, "failed attempts cleared: 3 -> 0")
	require.Contains(t, out, "lock removed")
	require.NotContains(t, out, "new-password")
}

func TestResetCredentialsCancelled(t *testing.T) {
	h := newHarness(t)
	before := h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "no\n").Run(context.Background(), Options{Username: "admin"})
	require.ErrorIs(t, err, ErrCancelled)

	after := h.user(t, "admin")
	require.Equal(t, before.PasswordHash, after.PasswordHash)
	require.Equal(t, 3, after.FailedAttempts)
}

func TestResetCredentialsEOFCancels(t *testing.T) {
	h := newHarness(t)
	h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "").Run(context.Background(), Options{Username: "admin"})
	require.ErrorIs(t, err, ErrCancelled)
}

func TestAssumeYesSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "", "new-password", "new-password").Run(context.Background(), Options{Username: "admin", AssumeYes: true})
	require.NoError(t, err)
	require.True(t, h.hasher.Verify("new-password", h.user(t, "admin").PasswordHash))
}

func TestPasswordEntryRetries(t *testing.T) {
	h := newHarness(t)
	h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "yes\n",
		"first-try", "first-typo", // mismatch
		"short", "short", // too short
		"third-try", "third-try",
	).Run(context.Background(), Options{Username: "admin"})
	require.NoError(t, err)

	out := h.out.String()
	require.Contains(t, out, "passwords do not match")
	require.Contains(t, out, "at least 6 characters")
	require.True(t, h.hasher.Verify("third-try", h.user(t, "admin").PasswordHash))
}

func TestPasswordEntryGivesUp(t *testing.T) {
	h := newHarness(t)
	before := h.lockedUser(t, "admin", "old-password")

	tool := h.tool(t, "yes\n", "a", "b", "c", "d")
	tool.MaxAttempts = 2

	err := tool.Run(context.Background(), Options{Username: "admin"})
	require.ErrorIs(t, err, ErrTooManyAttempts)
	require.Equal(t, before.PasswordHash, h.user(t, "admin").PasswordHash)
}

func TestPasswordReadError(t *testing.T) {
	h := newHarness(t)
	h.lockedUser(t, "admin", "old-password")

	tool := h.tool(t, "yes\n")
	tool.ReadPassword = func() ([]byte, error) { return nil, errors.New("not a terminal") }

	err := tool.Run(context.Background(), Options{Username: "admin"})
	require.ErrorContains(t, err, "not a terminal")
}

func TestUnknownUser(t *testing.T) {
	h := newHarness(t)

	err := h.tool(t, "yes\n").Run(context.Background(), Options{Username: "ghost"})
	require.ErrorIs(t, err, service.ErrUserNotFound)
	require.Contains(t, h.out.String(), "-create")
}

func TestUnlockOnly(t *testing.T) {
	h := newHarness(t)
	before := h.lockedUser(t, "admin", "old-password")

	err := h.tool(t, "yes\n").Run(context.Background(), Options{Username: "admin", UnlockOnly: true})
	require.NoError(t, err)

	after := h.user(t, "admin")
	require.Equal(t, before.PasswordHash, after.PasswordHash)
	require.Equal(t, 0, after.FailedAttempts)
	require.Nil(t, after.LockedUntil)
	require.Contains(t, h.out.String(), "account unlocked")
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	err := h.tool(t, "yes\n", "fresh-password", "fresh-password").Run(context.Background(), Options{Username: "operator", Create: true})
	require.NoError(t, err)

	u := h.user(t, "operator")
	require.True(t, h.hasher.Verify("fresh-password", u.PasswordHash))
	require.Contains(t, h.out.String(), "account created: operator")

	h.out.Reset()
	err = h.tool(t, "", "fresh-password", "fresh-password").Run(context.Background(), Options{Username: "operator", Create: true, AssumeYes: true})
	require.ErrorIs(t, err, service.ErrUserExists)
}

func TestOptionValidation(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.tool(t, "").Run(context.Background(), Options{}), service.ErrInvalidUsername)
	require.Error(t, h.tool(t, "").Run(context.Background(), Options{Username: "admin", Create: true, UnlockOnly: true}))
}
