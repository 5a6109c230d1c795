package service

import "errors"

var (
	// ErrStorageUnavailable wraps any store failure during an attempt. It is
	// never reported as a failed login.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidUsername  = errors.New("invalid username")
)

// MinPasswordLength is enforced by callers before hashing.
const MinPasswordLength = 6
