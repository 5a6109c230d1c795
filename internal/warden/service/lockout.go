package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/store"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LockoutPolicy is the brute-force state machine layered on the user store.
// An account is Unlocked or Locked(until); the counter only moves through the
// methods below.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultLockoutPolicy returns the 5 attempts / 15 minutes policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

func (p LockoutPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// LockState is the pure view of an account's lock.
type LockState struct {
	Locked bool
	Until  time.Time
}

// LockedError is returned by Check while an account is locked.
type LockedError struct {
	Until      time.Time
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.RetryAfter.Round(time.Second))
}

// State reports the lock state of u at now without touching the store.
func (p LockoutPolicy) State(u domain.User, now time.Time) LockState {
	if u.LockedAt(now) {
		return LockState{Locked: true, Until: *u.LockedUntil}
	}
	return LockState{}
}

// Check decides whether an attempt against u may proceed. A current lock
// yields a LockedError and no mutation. An expired lock is cleared together
// with the counter and the fresh record is returned so the attempt is
// evaluated as Unlocked.
func (p LockoutPolicy) Check(ctx context.Context, users store.Users, u domain.User) (domain.User, *LockedError, error) {
	now := p.now()

	if p.State(u, now).Locked {
		return u, p.lockedError(u, now), nil
	}

	if u.LockedUntil != nil {
		fresh, err := users.RecordSuccess(ctx, u.ID, now)
		if errors.Is(err, store.ErrLocked) {
			// relocked since u was read
			return fresh, p.lockedError(fresh, now), nil
		}
		if err != nil {
			return u, nil, err
		}
		return fresh, nil, nil
	}

	return u, nil, nil
}

// RecordFailure counts one failed attempt and applies the lock when the
// counter reaches the threshold. Both happen in one transaction and only
// while the account is unlocked; if another attempt locked it first the
// counter is left alone and a *LockedError is returned.
func (p LockoutPolicy) RecordFailure(ctx context.Context, st store.Store, id string) (domain.User, error) {
	var out domain.User
	err := st.WithTx(ctx, func(tx store.Tx) error {
		now := p.now()
		u, err := tx.Users().RecordFailedAttempt(ctx, id, now)
		if errors.Is(err, store.ErrLocked) {
			out = u
			return p.lockedError(u, now)
		}
		if err != nil {
			return err
		}

		if u.FailedAttempts >= p.Threshold {
			u, err = tx.Users().SetLock(ctx, id, now.Add(p.Duration))
			if err != nil {
				return err
			}
		}

		out = u
		return nil
	})
	return out, err
}

// RecordSuccess resets the counter and clears an expired lock. A lock that is
// still current wins: nothing changes and a *LockedError is returned.
func (p LockoutPolicy) RecordSuccess(ctx context.Context, users store.Users, id string) (domain.User, error) {
	now := p.now()
	u, err := users.RecordSuccess(ctx, id, now)
	if errors.Is(err, store.ErrLocked) {
		return u, p.lockedError(u, now)
	}
	return u, err
}

// Reset is the administrative transition back to Unlocked. It does not look
// at the current state.
func (p LockoutPolicy) Reset(ctx context.Context, users store.Users, id string) (domain.User, error) {
	return users.ClearLockAndAttempts(ctx, id)
}

func (p LockoutPolicy) lockedError(u domain.User, now time.Time) *LockedError {
	until := now
	if u.LockedUntil != nil {
		until = *u.LockedUntil
	}
	return &LockedError{Until: until, RetryAfter: until.Sub(now)}
}
