package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockoutState(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "admin", "correct-horse")
	now := f.clock.Now()

	require.False(t, f.lockout.State(u, now).Locked)

	until := now.Add(time.Minute)
	u.LockedUntil = &until
	st := f.lockout.State(u, now)
	require.True(t, st.Locked)
	require.Equal(t, until, st.Until)

	require.False(t, f.lockout.State(u, until).Locked, "lock ends exactly at until")
}

func TestLockoutThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "admin", "correct-horse")

	for i := 1; i < 5; i++ {
		got, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
		require.NoError(t, err)
		require.Equal(t, i, got.FailedAttempts)
		require.Nil(t, got.LockedUntil)
	}

	got, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.LockedUntil.Equal(f.clock.Now().Add(15*time.Minute)))
	require.True(t, got.LockedUntil.After(f.clock.Now()), "lock must be in the future when applied")
}

func TestLockoutCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "admin", "correct-horse")

	for range 5 {
		_, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
		require.NoError(t, err)
	}
	locked := f.user(t, u.ID)

	f.clock.Advance(5 * time.Minute)
	same, lerr, err := f.lockout.Check(ctx, f.store.Users(), locked)
	require.NoError(t, err)
	require.NotNil(t, lerr)
	require.Equal(t, 10*time.Minute, lerr.RetryAfter)
	require.Equal(t, 5, same.FailedAttempts)
	require.Contains(t, lerr.Error(), "10m0s")

	f.clock.Advance(10 * time.Minute)
	fresh, lerr, err := f.lockout.Check(ctx, f.store.Users(), locked)
	require.NoError(t, err)
	require.Nil(t, lerr)
	require.Zero(t, fresh.FailedAttempts, "expired lock resets the counter")
	require.Nil(t, fresh.LockedUntil)
	require.Zero(t, f.user(t, u.ID).FailedAttempts)
}

func TestLockoutTransitionsWhileLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "admin", "correct-horse")

	for range 5 {
		_, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
		require.NoError(t, err)
	}
	f.clock.Advance(time.Minute)

	var lerr *LockedError
	got, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, 14*time.Minute, lerr.RetryAfter)
	require.Equal(t, 5, got.FailedAttempts)

	got, err = f.lockout.RecordSuccess(ctx, f.store.Users(), u.ID)
	require.ErrorAs(t, err, &lerr)
	require.NotNil(t, got.LockedUntil)

	stored := f.user(t, u.ID)
	require.Equal(t, 5, stored.FailedAttempts)
	require.NotNil(t, stored.LockedUntil, "a success may not clear a current lock")
}

func TestLockoutReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "admin", "correct-horse")

	for range 5 {
		_, err := f.lockout.RecordFailure(ctx, f.store, u.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 5, f.user(t, u.ID).FailedAttempts)

	got, err := f.lockout.Reset(ctx, f.store.Users(), u.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedAttempts)
	require.Nil(t, got.LockedUntil)
}

func TestDefaultLockoutPolicy(t *testing.T) {
	p := DefaultLockoutPolicy()
	require.Equal(t, 5, p.Threshold)
	require.Equal(t, 15*time.Minute, p.Duration)
	require.WithinDuration(t, time.Now(), p.now(), time.Second)
}
