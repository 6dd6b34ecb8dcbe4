package storage

import "errors"

var (
	// ErrNotFound is returned when the object key does not exist in the bucket.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid object key")
)
