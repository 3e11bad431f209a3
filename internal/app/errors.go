package app

import "errors"

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrForeignRoom    = errors.New("personal room belongs to another user")
	ErrNotInRoom      = errors.New("session is not in room")
	ErrRateLimited    = errors.New("too many room joins")
	ErrEmptyMessage   = errors.New("empty message")
)
