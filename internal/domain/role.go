package domain

import (
	"fmt"
	"time"
)

// Role is the side of the tutoring session this process plays.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleTeacher || r == RoleStudent }

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleTeacher {
		return RoleStudent
	}
	return RoleTeacher
}

// UIDTable is the static UID partition agreed by both roles at configuration time.
type UIDTable map[Role]map[Purpose]UID

// DefaultUIDTable mirrors the partition both roles shipped with.
func DefaultUIDTable() UIDTable {
	return UIDTable{
		RoleTeacher: {
			PurposePrimary:     321,
			PurposeScreenShare: 654,
		},
		RoleStudent: {
			PurposePrimary:     123,
			PurposeScreenShare: 456,
			PurposeAvatar:      785,
		},
	}
}

// Validate fails fast on zero UIDs, collisions, or a role without a Primary.
func (t UIDTable) Validate() error {
	seen := make(map[UID]string)
	for _, role := range []Role{RoleTeacher, RoleStudent} {
		uids, ok := t[role]
		if !ok || uids[PurposePrimary] == 0 {
			return &ConfigError{Field: "uids." + string(role) + ".primary", Reason: "missing"}
		}
		for _, p := range Purposes {
			uid, ok := uids[p]
			if !ok {
				continue
			}
			where := string(role) + "." + p.String()
			if uid == 0 {
				return &ConfigError{Field: "uids." + where, Reason: "must be non-zero"}
			}
			if other, dup := seen[uid]; dup {
				return fmt.Errorf("uid %d used by %s and %s: %w", uid, other, where, ErrUIDCollision)
			}
			seen[uid] = where
		}
	}
	return nil
}

// RoleConfig parameterizes the Session Role Controller.
type RoleConfig struct {
	Role        Role
	Local       map[Purpose]UID
	Peer        map[Purpose]UID
	AutoJoin    []Purpose
	JoinTimeout time.Duration
	CursorRate  float64
}

// NewRoleConfig derives the local and peer halves of a validated table.
func NewRoleConfig(role Role, table UIDTable) (RoleConfig, error) {
	if !role.Valid() {
		return RoleConfig{}, &ConfigError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if err := table.Validate(); err != nil {
		return RoleConfig{}, err
	}
	return RoleConfig{
		Role:  role,
		Local: table[role],
		Peer:  table[role.Peer()],
	}, nil
}

// Session is the one physical transport context of the process.
type Session struct {
	Role       Role
	Identity   string
	Credential string
	Channel    ChannelName
	CreatedAt  time.Time
}

// NewSession validates the identity triple.
func NewSession(role Role, identity, credential, channel string, now time.Time) (*Session, error) {
	switch {
	case identity == "":
		return nil, &ConfigError{Field: "identity", Reason: "empty"}
	case credential == "":
		return nil, &ConfigError{Field: "credential", Reason: "empty"}
	case channel == "":
		return nil, &ConfigError{Field: "channel", Reason: "empty"}
	}
	return &Session{
		Role:       role,
		Identity:   identity,
		Credential: credential,
		Channel:    ChannelName(channel),
		CreatedAt:  now,
	}, nil
}
