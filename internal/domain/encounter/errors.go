package encounter

import "errors"

var (
	// ErrInvalidTemplate is returned when a raid template is missing its zone,
	// its name, or its adversary list.
	ErrInvalidTemplate = errors.New("invalid raid template")
	// ErrInvalidRecord is returned when a stored record cannot be rebuilt.
	ErrInvalidRecord = errors.New("invalid encounter record")
)
