package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Tutor/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// signalMessage is the envelope of every signaling frame in both directions.
type signalMessage struct {
	Type string `json:"type"`

	Token     string                 `json:"token,omitempty"`
	Channel   string                 `json:"channel,omitempty"`
	UID       uint32                 `json:"uid,omitempty"`
	Publish   *domain.PublishFlags   `json:"publish,omitempty"`
	Subscribe *domain.SubscribeFlags `json:"subscribe,omitempty"`
	SDP       string                 `json:"sdp,omitempty"`

	Code       int    `json:"code,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms,omitempty"`
	Reason     int    `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`

	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (m signalMessage) iceCandidate() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: m.Candidate, SDPMid: m.SDPMid, SDPMLineIndex: m.SDPMLineIndex}
}

// wsSignalConn is the signaling socket of one SubConnection.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(conn *websocket.Conn, readLimit int64) *wsSignalConn {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &wsSignalConn{conn: conn, send: make(chan []byte, 32)}
}

func (c *wsSignalConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) sendJSON(v signalMessage) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

// Close stops accepting frames; writePump flushes what is queued and closes the socket.
func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *wsSignalConn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.sendJSON(signalMessage{Type: "ping"}); err != nil {
				log.Warn().Err(err).Str("module", "adapters.rtc").Msg("ping not queued")
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.rtc").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.rtc").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump delivers decoded frames to handle until the socket fails.
func (c *wsSignalConn) readPump(handle func(signalMessage)) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("bad json")
			continue
		}
		handle(msg)
	}
}
