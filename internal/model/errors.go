package model

import "errors"

var (
	ErrNotFound       = errors.New("event not found")
	ErrDuplicateID    = errors.New("duplicate event id")
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	ErrInvalidInput   = errors.New("invalid input")

	// ErrMirror wraps store failures after an in-memory mutation succeeded.
	// The in-memory state is kept; the caller may retry the mutation.
	ErrMirror = errors.New("durable mirror")
)
