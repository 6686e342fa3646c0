package core

import "github.com/dkeye/Tutor/internal/domain"

// SubConnectionView is a read-only view of a SubConnection for APIs.
type SubConnectionView struct {
	Purpose string     `json:"purpose"`
	UID     domain.UID `json:"uid"`
	State   string     `json:"state"`
}

// RemoteView is a read-only view of a RemoteParticipant.
type RemoteView struct {
	UID     domain.UID `json:"uid"`
	Purpose string     `json:"purpose"`
}

// ChatEntry is a chat message as shown to the rendering side.
type ChatEntry struct {
	Key       int64  `json:"key"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// SessionSnapshot is the state exposed by the view API.
type SessionSnapshot struct {
	Role           string              `json:"role"`
	Identity       string              `json:"identity,omitempty"`
	Channel        string              `json:"channel,omitempty"`
	Initialized    bool                `json:"initialized"`
	SubConnections []SubConnectionView `json:"sub_connections"`
	Remotes        []RemoteView        `json:"remotes"`
	PeerCursor     *CursorView         `json:"peer_cursor,omitempty"`
}

// CursorView is the peer's pointer in view coordinates.
type CursorView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ViewSink is the rendering collaborator. Calls come from the update loop
// and must not block.
type ViewSink interface {
	SubConnectionChanged(v SubConnectionView, err error)
	RemoteJoined(v RemoteView)
	RemoteLeft(v RemoteView)
	CursorMoved(x, y float64)
	CursorHidden()
	ChatAppended(e ChatEntry)
	Triggered(name string)
}
