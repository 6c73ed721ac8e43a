package game

import "errors"

// Domain failures. Callers wrap these with context and match them with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("incorrect password")
	ErrFull           = errors.New("room is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotHost        = errors.New("only the host can perform this action")
	ErrWrongState     = errors.New("action not allowed in the current game state")
)
