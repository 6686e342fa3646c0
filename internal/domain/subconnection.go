package domain

import (
	"fmt"
	"time"
)

// ConnState is the lifecycle state of a SubConnection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether the transport holds resources for this state.
func (s ConnState) Active() bool {
	return s == StateJoining || s == StateJoined
}

var transitions = map[ConnState][]ConnState{
	StateIdle:    {StateJoining},
	StateJoining: {StateJoined, StateIdle, StateLeaving},
	StateJoined:  {StateLeaving},
	StateLeaving: {StateIdle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to ConnState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SubConnection is one logical join of the Session under its own UID.
type SubConnection struct {
	UID           UID
	Purpose       Purpose
	Options       MediaOptions
	State         ConnState
	JoinStartedAt time.Time
	JoinedAt      time.Time
}

// NewSubConnection builds an idle SubConnection with the purpose's options.
func NewSubConnection(uid UID, p Purpose) *SubConnection {
	return &SubConnection{UID: uid, Purpose: p, Options: PurposeOptions(p)}
}

// Transition moves the connection to a new state or fails with ErrInvalidTransition.
func (s *SubConnection) Transition(to ConnState, now time.Time) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%s %s -> %s: %w", s.Purpose, s.State, to, ErrInvalidTransition)
	}
	switch to {
	case StateJoining:
		s.JoinStartedAt = now
	case StateJoined:
		s.JoinedAt = now
	case StateIdle:
		s.JoinStartedAt = time.Time{}
		s.JoinedAt = time.Time{}
	}
	s.State = to
	return nil
}
