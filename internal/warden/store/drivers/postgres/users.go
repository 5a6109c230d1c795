package postgres

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
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	var lockedUntil sql.NullTime
	if u.LockedUntil != nil {
		lockedUntil = sql.NullTime{Time: *u.LockedUntil, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, failed_attempts, locked_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.PasswordHash, u.FailedAttempts, lockedUntil, u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

// RecordFailedAttempt is conditional on the lock. Under READ COMMITTED a
// concurrent writer holding the row makes the update wait and re-evaluate the
// WHERE clause against the committed row, so a lock set meanwhile holds.
func (r *usersRepo) RecordFailedAttempt(ctx context.Context, id string, at time.Time) (domain.User, error) {
	return r.unlessLocked(ctx, id, r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = $2
		 WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $3)
		 RETURNING `+userColumns,
		id, r.now().UTC(), at.UTC(),
	))
}

func (r *usersRepo) RecordSuccess(ctx context.Context, id string, at time.Time) (domain.User, error) {
	return r.unlessLocked(ctx, id, r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		 WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $3)
		 RETURNING `+userColumns,
		id, r.now().UTC(), at.UTC(),
	))
}

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
	return scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET locked_until = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, until.UTC(), r.now().UTC(),
	))
}

func (r *usersRepo) ClearLockAndAttempts(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, r.now().UTC(),
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, hash, r.now().UTC(),
	))
}
