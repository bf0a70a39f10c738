package givebridge_errors

import "errors"

// Common errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrNoRecipient    = errors.New("no recipient selected")
	ErrClosed         = errors.New("session is closed")
	ErrNotConnected   = errors.New("channel is not connected")
	ErrInvalidPayload = errors.New("invalid event payload")
)
