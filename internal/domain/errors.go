package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidItem        = errors.New("invalid queue item")
	ErrMissingMailID      = errors.New("mail content id must not be empty")
	ErrUndecodablePayload = errors.New("queue payload cannot be decoded")
	ErrWrongContentKind   = errors.New("mail content is not of kind email")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrJobEmpty           = errors.New("mail job must contain at least one recipient")
	ErrInvalidChunkSize   = errors.New("chunk size must be between 1 and 1000")
	ErrQueueFull          = errors.New("queue is at capacity, try again later")
)
