package domain

import "time"

// RemoteParticipant is a peer publisher seen on the channel.
// No transport or lifecycle logic here.
type RemoteParticipant struct {
	UID      UID         `json:"uid"`
	Channel  ChannelName `json:"channel"`
	Purpose  Purpose     `json:"-"`
	LastSeen time.Time   `json:"last_seen"`
}

// NewRemoteParticipant avoids raw literals in the registry.
func NewRemoteParticipant(uid UID, channel ChannelName, p Purpose, now time.Time) *RemoteParticipant {
	return &RemoteParticipant{UID: uid, Channel: channel, Purpose: p, LastSeen: now}
}
