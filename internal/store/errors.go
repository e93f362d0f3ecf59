package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a record exists but belongs to another user.
var ErrForbidden = errors.New("forbidden")
