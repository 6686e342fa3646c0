package core

import (
	"fmt"
	"time"

	"github.com/dkeye/Tutor/internal/domain"
)

// Connection addresses one SubConnection inside the Session.
type Connection struct {
	Channel  domain.ChannelName
	LocalUID domain.UID
}

func (c Connection) String() string {
	return fmt.Sprintf("%s/%d", c.Channel, c.LocalUID)
}

// StreamConfig configures a reliable byte stream on the Primary connection.
type StreamConfig struct {
	Ordered  bool
	Reliable bool
}

// EngineConfig is what a TransportFactory needs to build a handle.
type EngineConfig struct {
	AppID string
}

// LeaveStats is reported when a connection has been torn down.
type LeaveStats struct {
	Duration time.Duration
}

// EventSink receives transport callbacks. Implementations run on the update loop;
// adapters must never call it from their own goroutines.
type EventSink interface {
	OnJoined(conn Connection, elapsed time.Duration)
	OnJoinFailed(conn Connection, code int)
	OnLeft(conn Connection, stats LeaveStats)
	OnRemoteJoined(conn Connection, uid domain.UID)
	OnRemoteLeft(conn Connection, uid domain.UID, reason int)
	OnStreamMessage(conn Connection, uid domain.UID, streamID int, data []byte)
	OnStreamMessageError(conn Connection, uid domain.UID, streamID int, code, missed, cached int)
}

// Transport is the wide-area real-time provider. Every call returns after
// scheduling work; outcomes arrive through the EventSink.
type Transport interface {
	// SetEventSink installs or, with nil, removes the callback target.
	SetEventSink(EventSink)
	Join(token string, conn Connection, opts domain.MediaOptions) error
	JoinSecondary(token string, conn Connection, opts domain.MediaOptions) error
	Leave() error
	LeaveSecondary(conn Connection) error
	CreateReliableStream(cfg StreamConfig) (int, error)
	SendOnStream(streamID int, data []byte) error
	// Release frees every resource held by the handle.
	Release()
}

// TransportFactory creates a Transport for an app identity.
type TransportFactory func(EngineConfig) (Transport, error)

// CodeError is a synchronous rejection by the transport.
type CodeError struct {
	Op   string
	Code int
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("transport %s rejected: code=%d", e.Op, e.Code)
}

// Poster schedules fn on the update loop.
type Poster interface {
	Post(fn func()) error
}
