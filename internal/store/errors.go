package store

import "errors"

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrDuplicateToken is returned when an insert would violate the unique
// index on api_keys.token.
var ErrDuplicateToken = errors.New("duplicate token")
