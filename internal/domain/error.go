package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAdvisorOffline     = errors.New("advisor is not accepting chats")
	ErrAdvisorBusy        = errors.New("another chat session is already active")
	ErrInvalidTransition  = errors.New("operation not allowed in current session state")
	ErrSessionNotActive   = errors.New("chat session is not active")
	ErrEmptyMessage       = errors.New("message body is empty")
	ErrMessageTooLong     = errors.New("message body exceeds maximum length")
	ErrRateLimited        = errors.New("too many messages, slow down")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
