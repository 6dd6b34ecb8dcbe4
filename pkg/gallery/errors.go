package gallery

import "errors"

var (
	// ErrNoFile is returned when an upload carries no file body.
	ErrNoFile = errors.New("no file supplied")
	// ErrInvalidFilename is returned when nothing usable is left after sanitizing.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrNotFound is returned when no catalog row matches the requested name.
	ErrNotFound = errors.New("image not found")
	// ErrInvalidEmail is returned for blank subscription endpoints.
	ErrInvalidEmail = errors.New("invalid email")
)
