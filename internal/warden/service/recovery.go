package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/pkg/idx"
)

// RecoveryService holds the operator-only account operations. It is used by
// the out-of-band reset tool and is never mounted on the HTTP surface.
type RecoveryService struct {
	Store   store.Store
	Hasher  Hasher
	Lockout LockoutPolicy
}

// ResetCredentials sets a new password and unconditionally unlocks the
// account in one transaction.
func (s *RecoveryService) ResetCredentials(ctx context.Context, username, newPassword string) (domain.User, error) {
	if len(newPassword) < MinPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}

	u, err := s.lookup(ctx, username)
	if err != nil {
		return domain.User{}, err
	}

	digest, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	var out domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().UpdatePasswordHash(ctx, u.ID, digest); err != nil {
			return err
		}
		out, err = s.Lockout.Reset(ctx, tx.Users(), u.ID)
		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("reset credentials: %w", err)
	}
	return out, nil
}

// Unlock clears the lock and counter without touching the password.
func (s *RecoveryService) Unlock(ctx context.Context, username string) (domain.User, error) {
	u, err := s.lookup(ctx, username)
	if err != nil {
		return domain.User{}, err
	}

	out, err := s.Lockout.Reset(ctx, s.Store.Users(), u.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("unlock: %w", err)
	}
	return out, nil
}

// Provision creates a new account.
func (s *RecoveryService) Provision(ctx context.Context, username, password string) (domain.User, error) {
	if username == "" {
		return domain.User{}, ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: digest,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return s.Store.Users().GetUserByID(ctx, u.ID)
}

// Lookup returns the current record for diagnostics.
func (s *RecoveryService) Lookup(ctx context.Context, username string) (domain.User, error) {
	return s.lookup(ctx, username)
}

func (s *RecoveryService) lookup(ctx context.Context, username string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
