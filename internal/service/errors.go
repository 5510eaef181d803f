package service

import "net/http"

type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryConflict       Category = "conflict"
	CategoryAuthentication Category = "authentication"
)

type Kind string

const (
	KindInvalidEmail   Kind = "invalid_email"
	KindWeakPassword   Kind = "weak_password"
	KindMalformedToken Kind = "malformed_token"
	KindExpiredToken   Kind = "expired_token"
	KindDuplicateEmail Kind = "duplicate_email"
	KindUserNotFound   Kind = "user_not_found"
	KindWrongPassword  Kind = "wrong_password"
)

// Error is a domain failure that carries the HTTP status it maps to.
type Error struct {
	Category Category
	Kind     Kind
	Message  string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrDuplicateEmail) works on any copy.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

func (e *Error) with(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrInvalidEmail = &Error{
		Category: CategoryValidation,
		Kind:     KindInvalidEmail,
		Message:  "Invalid email",
		Status:   http.StatusUnprocessableEntity,
	}
	ErrWeakPassword = &Error{
		Category: CategoryValidation,
		Kind:     KindWeakPassword,
		Message:  "Password must be at least 8 characters.",
		Status:   http.StatusUnprocessableEntity,
	}
	ErrMalformedToken = &Error{
		Category: CategoryValidation,
		Kind:     KindMalformedToken,
		Message:  "Invalid token",
		Status:   http.StatusUnprocessableEntity,
	}
	ErrExpiredToken = &Error{
		Category: CategoryValidation,
		Kind:     KindExpiredToken,
		Message:  "Token has expired",
		Status:   http.StatusUnprocessableEntity,
	}
	ErrDuplicateEmail = &Error{
		Category: CategoryConflict,
		Kind:     KindDuplicateEmail,
		Message:  "User with this email already exists",
		Status:   http.StatusConflict,
	}
	// Login keeps two distinct messages under the same status.
	ErrUserNotFound = &Error{
		Category: CategoryAuthentication,
		Kind:     KindUserNotFound,
		Message:  "User not found",
		Status:   http.StatusBadRequest,
	}
	ErrWrongPassword = &Error{
		Category: CategoryAuthentication,
		Kind:     KindWrongPassword,
		Message:  "Invalid password",
		Status:   http.StatusBadRequest,
	}
)

// VerificationError is returned by VerifyPassword for both a wrong password
// and an undecodable hash; Unwrap exposes which one.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return "password verification failed: " + e.Err.Error()
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
