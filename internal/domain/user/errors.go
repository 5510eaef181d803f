package user

import "errors"

// Storage-level sentinels shared by every UserStore implementation.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email is already in use")
)
