package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("encounter not found")
	ErrAlreadyExists = errors.New("encounter already stored")
	ErrInvalidLimit  = errors.New("invalid limit")
)
