package protocol

import "errors"

var (
	// ErrUnknownPrefix marks bytes that are not a control message; callers drop them.
	ErrUnknownPrefix          = errors.New("unknown control prefix")
	ErrMalformedCursorPayload = errors.New("malformed cursor payload")
	ErrMalformedChatPayload   = errors.New("malformed chat payload")
	ErrEmptyMessage           = errors.New("empty message")
)
