package types

import "errors"

// Validation errors shared across the handshake, router, and REST layers.
var (
	ErrInvalidUserID   = errors.New("user ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole     = errors.New("role must be 'student' or 'instructor'")
	ErrInvalidRoomCode = errors.New("room code must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrMissingRoomID   = errors.New("room ID is required")
	ErrContentTooLarge = errors.New("document content exceeds 256KB limit")
)
