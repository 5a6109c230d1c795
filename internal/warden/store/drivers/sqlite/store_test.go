package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(FileDSN(filepath.Join(t.TempDir(), "warden.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedUser(t *testing.T, s *Store, username string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))

	got, err := s.Users().GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	return got
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ApplyMigrations())

	seedUser(t, s, "alice")
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := seedUser(t, s, "alice")

	t.Run("lookup is case sensitive", func(t *testing.T) {
		_, err := s.Users().GetUserByUsername(ctx, "Alice")
		require.ErrorIs(t, err, store.ErrNotFound)

		byID, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
		require.Zero(t, byID.FailedAttempts)
		require.Nil(t, byID.LockedUntil)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "alice", PasswordHash: "x"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Users().RecordFailedAttempt(ctx, "missing", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lock and clear", func(t *testing.T) {
		u, err := s.Users().RecordFailedAttempt(ctx, alice.ID, time.Now())
		require.NoError(t, err)
		require.Equal(t, 1, u.FailedAttempts)

		until := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		u, err = s.Users().SetLock(ctx, alice.ID, until)
		require.NoError(t, err)
		require.NotNil(t, u.LockedUntil)
		require.True(t, until.Equal(*u.LockedUntil))

		// attempt transitions leave a current lock alone
		before := until.Add(-time.Second)
		u, err = s.Users().RecordFailedAttempt(ctx, alice.ID, before)
		require.ErrorIs(t, err, store.ErrLocked)
		require.Equal(t, 1, u.FailedAttempts)
		require.True(t, until.Equal(*u.LockedUntil))

		u, err = s.Users().RecordSuccess(ctx, alice.ID, before)
		require.ErrorIs(t, err, store.ErrLocked)
		require.Equal(t, 1, u.FailedAttempts)
		require.NotNil(t, u.LockedUntil)

		_, err = s.Users().RecordSuccess(ctx, "missing", before)
		require.ErrorIs(t, err, store.ErrNotFound)

		u, err = s.Users().RecordSuccess(ctx, alice.ID, until)
		require.NoError(t, err, "lock ends exactly at until")
		require.Zero(t, u.FailedAttempts)
		require.Nil(t, u.LockedUntil)

		_, err = s.Users().SetLock(ctx, alice.ID, until)
		require.NoError(t, err)

		u, err = s.Users().ClearLockAndAttempts(ctx, alice.ID)
		require.NoError(t, err)
		require.Zero(t, u.FailedAttempts)
		require.Nil(t, u.LockedUntil)
	})

	t.Run("update hash", func(t *testing.T) {
		u, err := s.Users().UpdatePasswordHash(ctx, alice.ID, "new-digest")
		require.NoError(t, err)
		require.Equal(t, "new-digest", u.PasswordHash)
	})
}

func TestRecordFailedAttemptConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "bob")

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Users().RecordFailedAttempt(ctx, u.ID, time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.FailedAttempts, "no increment may be lost")
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "carol")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().RecordFailedAttempt(ctx, u.ID, time.Now()); err != nil {
			return err
		}
		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedAttempts)
}

func TestLoginAttempts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "dave")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, s.LoginAttempts().RecordLoginAttempt(ctx, domain.LoginAttempt{
			ID:            idx.NewAt(base.Add(time.Duration(i) * time.Hour)).String(),
			UserID:        u.ID,
			Username:      "dave",
			Success:       i == 2,
			Reason:        domain.ReasonInvalidCredentials,
			ClientAddress: "203.0.113.7",
			ClientSource:  domain.SourceProxyHeader,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.LoginAttempts().RecordLoginAttempt(ctx, domain.LoginAttempt{
		ID:        idx.New().String(),
		Username:  "ghost",
		Reason:    domain.ReasonInvalidCredentials,
		CreatedAt: base,
	}))

	recent, err := s.LoginAttempts().ListRecentLoginAttempts(ctx, "dave", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.True(t, recent[0].Success, "newest first")
	require.Equal(t, u.ID, recent[0].UserID)
	require.Equal(t, domain.SourceProxyHeader, recent[0].ClientSource)

	ghost, err := s.LoginAttempts().ListRecentLoginAttempts(ctx, "ghost", 10)
	require.NoError(t, err)
	require.Len(t, ghost, 1)
	require.Empty(t, ghost[0].UserID)

	deleted, err := s.LoginAttempts().DeleteLoginAttemptsBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)

	recent, err = s.LoginAttempts().ListRecentLoginAttempts(ctx, "dave", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
