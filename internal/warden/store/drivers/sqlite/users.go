package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/store"
)

type usersRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, failed_attempts, locked_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Username,
		u.PasswordHash,
		u.FailedAttempts,
		mapOptionalMillis(u.LockedUntil),
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) RecordFailedAttempt(ctx context.Context, id string, at time.Time) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = ?
		 WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)
		 RETURNING `+userColumns,
		toMillis(r.now()), id, toMillis(at),
	)
	return r.unlessLocked(ctx, id, row)
}

func (r *usersRepo) RecordSuccess(ctx context.Context, id string, at time.Time) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = ?
		 WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)
		 RETURNING `+userColumns,
		toMillis(r.now()), id, toMillis(at),
	)
	return r.unlessLocked(ctx, id, row)
}

// unlessLocked scans the result of a conditional update. No row means either
// an unknown id or a lock that held, which are told apart by reading the row.
func (r *usersRepo) unlessLocked(ctx context.Context, id string, row *sql.Row) (domain.User, error) {
	u, err := scanUser(row)
	if !errors.Is(err, store.ErrNotFound) {
		return u, err
	}
	cur, err := r.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return cur, store.ErrLocked
}

func (r *usersRepo) SetLock(ctx context.Context, id string, until time.Time) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET locked_until = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		toMillis(until), toMillis(r.now()), id,
	)
	return scanUser(row)
}

func (r *usersRepo) ClearLockAndAttempts(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		toMillis(r.now()), id,
	)
	return scanUser(row)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		hash, toMillis(r.now()), id,
	)
	return scanUser(row)
}
