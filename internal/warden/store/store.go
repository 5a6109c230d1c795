package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrLocked is returned by the conditional attempt transitions when the
	// record is locked at the given instant. The current record is returned
	// alongside it.
	ErrLocked = errors.New("store: account locked")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement it. Sub-repositories are exposed as methods so a Tx can
// hand out the same repos bound to the transaction, which also stops callers
// from nesting transactions by accident.
type Store interface {
	Users() Users
	LoginAttempts() LoginAttempts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the durable account record store. Every mutation is a single
// statement that returns the row as it is after the change, so concurrent
// attempts against the same record are never lost.
type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername returns ErrNotFound when no account has that exact
	// (case-sensitive) username.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the caller via ULID).
	// Returns ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// RecordFailedAttempt atomically increments failed_attempts unless the
	// record is locked at at (locked_until > at), in which case nothing
	// changes and ErrLocked is returned with the current record.
	RecordFailedAttempt(ctx context.Context, id string, at time.Time) (domain.User, error)

	// RecordSuccess resets failed_attempts to 0 and clears locked_until,
	// under the same condition and with the same ErrLocked result as
	// RecordFailedAttempt.
	RecordSuccess(ctx context.Context, id string, at time.Time) (domain.User, error)

	// SetLock sets locked_until.
	SetLock(ctx context.Context, id string, until time.Time) (domain.User, error)

	// ClearLockAndAttempts resets failed_attempts and clears locked_until.
	ClearLockAndAttempts(ctx context.Context, id string) (domain.User, error)

	// UpdatePasswordHash replaces the stored digest.
	UpdatePasswordHash(ctx context.Context, id string, hash string) (domain.User, error)
}

// LoginAttempts is the audit trail of authentication attempts.
type LoginAttempts interface {
	RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error

	// ListRecentLoginAttempts returns up to limit attempts for username,
	// newest first.
	ListRecentLoginAttempts(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error)

	// DeleteLoginAttemptsBefore is housekeeping; it returns the number of
	// rows removed.
	DeleteLoginAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
