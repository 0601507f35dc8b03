package deletion

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrRequestNotFound covers wrong token, expired window, and
	// already-used token uniformly so token probing reveals nothing.
	ErrRequestNotFound     = errors.New("deletion request not found")
	ErrEmptyReason         = errors.New("reason must not be empty")
	ErrActiveRequestExists = errors.New("an active deletion request already exists for this user")
)
