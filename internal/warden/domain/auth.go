package domain

import "time"

// Reason classifies the outcome of a single authentication attempt.
type Reason string

const (
	ReasonNone               Reason = "none"
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonAccountLocked      Reason = "account_locked"
	ReasonStorageUnavailable Reason = "storage_unavailable"
)

// AuthResult is the outcome of one authentication attempt. It never carries
// the password or the stored digest.
type AuthResult struct {
	Success    bool
	Reason     Reason
	RetryAfter time.Duration // only set when Reason is ReasonAccountLocked
}

// LoginAttempt is one audited authentication attempt.
type LoginAttempt struct {
	ID            string
	UserID        string // empty when the username did not match an account
	Username      string
	Success       bool
	Reason        Reason
	ClientAddress string
	ClientSource  IdentitySource
	CreatedAt     time.Time
}
