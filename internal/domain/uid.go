// Package domain contains entities of a tutoring session, no transport logic.
package domain

import "strconv"

// UID identifies a publisher within a channel.
type UID uint32

func (u UID) String() string { return strconv.FormatUint(uint64(u), 10) }

// ChannelName is the shared channel both roles join.
type ChannelName string

// Purpose is what a SubConnection is used for.
type Purpose int

const (
	PurposeUnknown Purpose = iota
	PurposePrimary
	PurposeScreenShare
	PurposeAvatar
)

// Purposes lists every purpose in join order.
var Purposes = []Purpose{PurposePrimary, PurposeScreenShare, PurposeAvatar}

func (p Purpose) String() string {
	switch p {
	case PurposePrimary:
		return "primary"
	case PurposeScreenShare:
		return "screen_share"
	case PurposeAvatar:
		return "avatar"
	default:
		return "unknown"
	}
}

// ParsePurpose is the inverse of Purpose.String.
func ParsePurpose(s string) (Purpose, bool) {
	for _, p := range Purposes {
		if p.String() == s {
			return p, true
		}
	}
	return PurposeUnknown, false
}
