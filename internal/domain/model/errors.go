package model

import "errors"

// Sentinel errors for event decoding.
var (
	ErrUnknownKind     = errors.New("unknown event kind")
	ErrUnknownModifier = errors.New("unknown modifier")
	ErrInvalidEvent    = errors.New("invalid event")
)
