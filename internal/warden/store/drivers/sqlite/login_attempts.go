package sqlite

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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (id, user_id, username, success, reason, client_address, client_source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		mapStringNull(a.UserID),
		a.Username,
		a.Success,
		string(a.Reason),
		a.ClientAddress,
		string(a.ClientSource),
		toMillis(a.CreatedAt),
	)
	return err
}

func (r *loginAttemptsRepo) ListRecentLoginAttempts(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, username, success, reason, client_address, client_source, created_at
		 FROM login_attempts
		 WHERE username = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		username, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a         domain.LoginAttempt
			userID    sql.NullString
			reason    string
			source    string
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &userID, &a.Username, &a.Success, &reason, &a.ClientAddress, &source, &createdAt); err != nil {
			return nil, err
		}
		a.UserID = mapNullString(userID)
		a.Reason = domain.Reason(reason)
		a.ClientSource = domain.IdentitySource(source)
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *loginAttemptsRepo) DeleteLoginAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
