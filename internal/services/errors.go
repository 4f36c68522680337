package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller could not be authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCooldown is returned when a code is requested again too soon.
	ErrCooldown = errors.New("please wait before requesting another code")
	// ErrNotFound is returned when the requested record does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIdentity is returned when the caller id is missing or malformed.
	ErrInvalidIdentity = errors.New("invalid user id")
)

// ValidationError describes a client input problem.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// notFoundError carries a client-facing message and matches ErrNotFound.
type notFoundError struct {
	message string
}

func (e *notFoundError) Error() string {
	return e.message
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(message string) error {
	return &notFoundError{message: message}
}
