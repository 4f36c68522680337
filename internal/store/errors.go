package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (such as a user email) is already taken.
var ErrDuplicate = errors.New("duplicate key")

// ErrInvalidID is returned when an identifier is not well-formed for the backend.
var ErrInvalidID = errors.New("invalid id")
