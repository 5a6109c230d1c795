package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/internal/warden/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *sqlite.Store
	hasher   *cryptox.LegacyHasher
	clock    *fakeClock
	lockout  LockoutPolicy
	auth     *AuthenticationService
	recovery *RecoveryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(t.TempDir(), "warden.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := newClock()
	hasher := &cryptox.LegacyHasher{Primary: cryptox.NewArgon2Hasher([]byte("test-pepper"))}
	lockout := LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute, Now: clock.Now}

	return &fixture{
		store:    st,
		hasher:   hasher,
		clock:    clock,
		lockout:  lockout,
		auth:     &AuthenticationService{Store: st, Hasher: hasher, Lockout: lockout},
		recovery: &RecoveryService{Store: st, Hasher: hasher, Lockout: lockout},
	}
}

func (f *fixture) createUser(t *testing.T, username, password string) domain.User {
	t.Helper()
	digest, err := f.hasher.Hash(password)
	require.NoError(t, err)

	u := domain.User{ID: idx.New().String(), Username: username, PasswordHash: digest}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func (f *fixture) user(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := f.store.Users().GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// failingTxStore reads through to the real store but cannot write in a
// transaction.
type failingTxStore struct {
	store.Store
}

func (s *failingTxStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errors.New("disk I/O error")
}
