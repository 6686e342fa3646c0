package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration        = errors.New("configuration error")
	ErrJoinFailed           = errors.New("join failed")
	ErrSendFailed           = errors.New("send failed")
	ErrNotInitialized       = errors.New("session not initialized")
	ErrAlreadyInitialized   = errors.New("session already initialized")
	ErrPrimaryNotJoined     = errors.New("primary not joined")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrPurposeNotConfigured = errors.New("purpose has no uid for this role")
	ErrUIDCollision         = errors.New("uid collision")
	ErrNotFound             = errors.New("no sub-connection for purpose")
)

// CodeJoinTimeout is reported when the transport never acknowledged a join.
const CodeJoinTimeout = -10000

// ConfigError is fatal to session start; nothing retries it.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// JoinFailedError carries the transport code of a rejected join.
type JoinFailedError struct {
	Purpose Purpose
	UID     UID
	Code    int
}

func (e *JoinFailedError) Error() string {
	if e.Code == CodeJoinTimeout {
		return fmt.Sprintf("join failed: %s uid=%d timed out", e.Purpose, e.UID)
	}
	return fmt.Sprintf("join failed: %s uid=%d code=%d", e.Purpose, e.UID, e.Code)
}

func (e *JoinFailedError) Is(target error) bool { return target == ErrJoinFailed }
