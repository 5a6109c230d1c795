package domain

import "time"

// User is the persisted state of a credential subject.
type User struct {
	ID             string
	Username       string     // unique, case-sensitive, immutable
	PasswordHash   string     // opaque digest produced by a cryptox.PasswordHasher
	FailedAttempts int        // consecutive failures since the last success or reset
	LockedUntil    *time.Time // nil when unlocked
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockedAt reports whether the account is locked at now.
func (u User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
