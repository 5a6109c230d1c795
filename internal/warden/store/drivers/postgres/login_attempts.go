package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
)

type loginAttemptsRepo struct {
	db dbtx
}

func (r *loginAttemptsRepo) RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	var userID sql.NullString
	if a.UserID != "" {
		userID = sql.NullString{String: a.UserID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (id, user_id, username, success, reason, client_address, client_source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, userID, a.Username, a.Success, string(a.Reason), a.ClientAddress, string(a.ClientSource), a.CreatedAt.UTC(),
	)
	return mapErr(err)
}

func (r *loginAttemptsRepo) ListRecentLoginAttempts(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, username, success, reason, client_address, client_source, created_at
		 FROM login_attempts
		 WHERE username = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		username, limit,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a      domain.LoginAttempt
			userID sql.NullString
			reason string
			source string
		)
		if err := rows.Scan(&a.ID, &userID, &a.Username, &a.Success, &reason, &a.ClientAddress, &source, &a.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		a.UserID = userID.String
		a.Reason = domain.Reason(reason)
		a.ClientSource = domain.IdentitySource(source)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *loginAttemptsRepo) DeleteLoginAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
