package interfaces

import "errors"

// Shared error values crossing component boundaries.
var (
	ErrRoomNotFound     = errors.New("classroom not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrRoomCodeTaken    = errors.New("room code already in use")
	ErrNotRoomOwner     = errors.New("access denied: not the instructor of this classroom")
)
