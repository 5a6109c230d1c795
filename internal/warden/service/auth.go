package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// Hasher is the credential primitive the service needs. Dummy returns a
// digest that costs a full verification and never matches.
type Hasher interface {
	cryptox.PasswordHasher
	Dummy() string
}

// rehasher is implemented by hashers that can tell a digest is outdated.
type rehasher interface {
	NeedsRehash(digest string) bool
}

type AuthenticationService struct {
	Store   store.Store
	Hasher  Hasher
	Lockout LockoutPolicy
}

// Authenticate runs one login attempt. The returned error is non-nil only
// when storage failed, in which case the result reason is
// storage_unavailable and the error wraps ErrStorageUnavailable.
func (s *AuthenticationService) Authenticate(ctx context.Context, username, password string) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx).With("username", username)

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Same cost as a real mismatch so timing does not reveal the username
		s.Hasher.Verify(password, s.Hasher.Dummy())
		res := invalidCredentials()
		s.audit(ctx, domain.User{Username: username}, res)
		log.Info("login rejected", "reason", res.Reason)
		return res, nil
	}
	if err != nil {
		return s.storageFailure(ctx, domain.User{Username: username}, "lookup", err)
	}

	u, locked, err := s.Lockout.Check(ctx, s.Store.Users(), u)
	if err != nil {
		return s.storageFailure(ctx, u, "clear expired lock", err)
	}
	if locked != nil {
		return s.accountLocked(ctx, u, locked), nil
	}

	// Verify runs without holding anything. The transitions below are
	// conditional on the lock, so an attempt that was overtaken by a lock
	// while verifying is answered as locked whatever its password was.
	if !s.Hasher.Verify(password, u.PasswordHash) {
		updated, err := s.Lockout.RecordFailure(ctx, s.Store, u.ID)
		if errors.As(err, &locked) {
			return s.accountLocked(ctx, updated, locked), nil
		}
		if err != nil {
			return s.storageFailure(ctx, u, "record failure", err)
		}
		res := invalidCredentials()
		s.audit(ctx, updated, res)
		log.Info("login rejected",
			"reason", res.Reason,
			"failed_attempts", updated.FailedAttempts,
			"locked", updated.LockedUntil != nil,
		)
		return res, nil
	}

	if updated, err := s.Lockout.RecordSuccess(ctx, s.Store.Users(), u.ID); errors.As(err, &locked) {
		return s.accountLocked(ctx, updated, locked), nil
	} else if err != nil {
		return s.storageFailure(ctx, u, "record success", err)
	}
	s.upgradeDigest(ctx, u, password)

	res := domain.AuthResult{Success: true, Reason: domain.ReasonNone}
	s.audit(ctx, u, res)
	log.Info("login succeeded", "user_id", u.ID)
	return res, nil
}

func (s *AuthenticationService) accountLocked(ctx context.Context, u domain.User, locked *LockedError) domain.AuthResult {
	res := domain.AuthResult{Reason: domain.ReasonAccountLocked, RetryAfter: locked.RetryAfter}
	s.audit(ctx, u, res)
	slogx.FromContext(ctx).Warn("login rejected",
		"username", u.Username,
		"reason", res.Reason,
		"retry_after", locked.RetryAfter.Round(time.Second),
	)
	return res
}

func invalidCredentials() domain.AuthResult {
	return domain.AuthResult{Reason: domain.ReasonInvalidCredentials}
}

func (s *AuthenticationService) storageFailure(ctx context.Context, u domain.User, op string, err error) (domain.AuthResult, error) {
	res := domain.AuthResult{Reason: domain.ReasonStorageUnavailable}
	slogx.FromContext(ctx).Error("login aborted", "username", u.Username, "op", op, "error", err)
	s.audit(ctx, u, res)
	return res, fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// upgradeDigest replaces a legacy digest with one from the primary hasher
// once the plaintext has been proven correct. Failure only costs the upgrade.
func (s *AuthenticationService) upgradeDigest(ctx context.Context, u domain.User, password string) {
	rh, ok := s.Hasher.(rehasher)
	if !ok || !rh.NeedsRehash(u.PasswordHash) {
		return
	}

	log := slogx.FromContext(ctx)
	digest, err := s.Hasher.Hash(password)
	if err != nil {
		log.Warn("failed to rehash legacy digest", "user_id", u.ID, "error", err)
		return
	}
	if _, err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, digest); err != nil {
		log.Warn("failed to store upgraded digest", "user_id", u.ID, "error", err)
		return
	}
	log.Info("upgraded legacy password digest", "user_id", u.ID)
}

// audit records the attempt with whatever client identity the caller put on
// the context. Audit failures never affect the result.
func (s *AuthenticationService) audit(ctx context.Context, u domain.User, res domain.AuthResult) {
	attempt := domain.LoginAttempt{
		ID:        idx.New().String(),
		UserID:    u.ID,
		Username:  u.Username,
		Success:   res.Success,
		Reason:    res.Reason,
		CreatedAt: s.Lockout.now(),
	}
	if ci, ok := identity.FromContext(ctx); ok {
		attempt.ClientAddress = ci.Address
		attempt.ClientSource = ci.Source
	}

	if err := s.Store.LoginAttempts().RecordLoginAttempt(ctx, attempt); err != nil {
		slogx.FromContext(ctx).Warn("failed to record login attempt", "username", u.Username, "error", err)
	}
}
