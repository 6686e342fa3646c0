package rtc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/rs/zerolog/log"
)

// uidPrefixLen is the sender UID prepended by the server to control frames.
const uidPrefixLen = 4

// link is one SubConnection: a peer connection plus its signaling socket.
type link struct {
	t       *Transport
	conn    core.Connection
	opts    domain.MediaOptions
	token   string
	primary bool
	peer    *peerConn

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sig       *wsSignalConn
	startedAt time.Time
	joinedAt  time.Time
	leaving   bool
}

func (l *link) run() {
	defer l.t.forget(l)
	log.Info().Str("module", "adapters.rtc").Str("conn", l.conn.String()).Msg("dialing signaling")

	ws, _, err := l.t.dialer.DialContext(l.ctx, l.t.opts.SignalURL, nil)
	if err != nil {
		if l.ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Str("module", "adapters.rtc").Str("url", l.t.opts.SignalURL).Msg("signaling dial")
		l.fail(CodeSignalUnreachable)
		return
	}
	sig := newWsSignalConn(ws, l.t.opts.ReadLimit)
	l.mu.Lock()
	if l.leaving {
		l.mu.Unlock()
		_ = ws.Close()
		return
	}
	l.sig = sig
	l.mu.Unlock()
	go sig.writePump(l.ctx, l.t.opts.PingPeriod)

	offer, err := l.peer.createOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Msg("create offer")
		l.fail(CodeNegotiation)
		return
	}
	pub, sub := l.opts.Publish, l.opts.Subscribe
	if err := sig.sendJSON(signalMessage{
		Type:      "join",
		Token:     l.token,
		Channel:   string(l.conn.Channel),
		UID:       uint32(l.conn.LocalUID),
		Publish:   &pub,
		Subscribe: &sub,
		SDP:       offer.SDP,
	}); err != nil {
		l.fail(CodeSignalLost)
		return
	}

	err = sig.readPump(l.handle)

	l.mu.Lock()
	leaving, joinedAt := l.leaving, l.joinedAt
	l.mu.Unlock()
	if leaving {
		return
	}
	log.Warn().Err(err).Str("module", "adapters.rtc").Str("conn", l.conn.String()).Msg("signaling lost")
	if joinedAt.IsZero() {
		l.fail(CodeSignalLost)
		return
	}
	l.t.emit(func(s core.EventSink) { s.OnLeft(l.conn, core.LeaveStats{Duration: time.Since(joinedAt)}) })
	l.stop()
}

func (l *link) handle(msg signalMessage) {
	switch msg.Type {
	case "joined":
		if msg.Code != CodeOK {
			l.fail(msg.Code)
			return
		}
		if err := l.peer.applyAnswer(msg.SDP); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("apply answer")
			l.fail(CodeNegotiation)
			return
		}
		l.mu.Lock()
		l.joinedAt = time.Now()
		elapsed := time.Duration(msg.ElapsedMS) * time.Millisecond
		if elapsed == 0 {
			elapsed = l.joinedAt.Sub(l.startedAt)
		}
		l.mu.Unlock()
		l.t.emit(func(s core.EventSink) { s.OnJoined(l.conn, elapsed) })
	case "join_failed":
		l.fail(msg.Code)
	case "offer":
		answer, err := l.peer.applyOfferAndCreateAnswer(msg.SDP)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("apply offer")
			return
		}
		l.send(signalMessage{Type: "answer", SDP: answer.SDP})
	case "candidate":
		if err := l.peer.addICECandidate(msg.iceCandidate()); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("add ice candidate")
		}
	case "member_joined":
		uid := domain.UID(msg.UID)
		l.t.emit(func(s core.EventSink) { s.OnRemoteJoined(l.conn, uid) })
	case "member_left":
		uid, reason := domain.UID(msg.UID), msg.Reason
		l.t.emit(func(s core.EventSink) { s.OnRemoteLeft(l.conn, uid, reason) })
	case "left":
		l.mu.Lock()
		l.leaving = true
		l.mu.Unlock()
		stats := core.LeaveStats{Duration: time.Duration(msg.DurationMS) * time.Millisecond}
		l.t.emit(func(s core.EventSink) { s.OnLeft(l.conn, stats) })
		l.stop()
	case "pong":
	case "error":
		log.Warn().Str("module", "adapters.rtc").Str("conn", l.conn.String()).Str("error", msg.Error).Msg("signaling error")
	default:
		log.Warn().Str("module", "adapters.rtc").Str("type", msg.Type).Msg("unknown signal")
	}
}

// onControl splits the sender UID prefix off a control frame.
func (l *link) onControl(data []byte) {
	if len(data) < uidPrefixLen {
		l.t.emit(func(s core.EventSink) {
			s.OnStreamMessageError(l.conn, 0, ControlStreamID, CodeShortFrame, 1, 0)
		})
		return
	}
	uid := domain.UID(binary.BigEndian.Uint32(data[:uidPrefixLen]))
	payload := append([]byte(nil), data[uidPrefixLen:]...)
	l.t.emit(func(s core.EventSink) { s.OnStreamMessage(l.conn, uid, ControlStreamID, payload) })
}

// onPeerFailed reports a dead media path as a dropped connection.
func (l *link) onPeerFailed() {
	l.mu.Lock()
	leaving, joinedAt := l.leaving, l.joinedAt
	l.leaving = true
	l.mu.Unlock()
	if leaving {
		return
	}
	if joinedAt.IsZero() {
		l.t.emit(func(s core.EventSink) { s.OnJoinFailed(l.conn, CodeNegotiation) })
	} else {
		l.t.emit(func(s core.EventSink) { s.OnLeft(l.conn, core.LeaveStats{Duration: time.Since(joinedAt)}) })
	}
	l.stop()
}

func (l *link) send(msg signalMessage) {
	l.mu.Lock()
	sig := l.sig
	l.mu.Unlock()
	if sig == nil {
		return
	}
	if err := sig.sendJSON(msg); err != nil {
		log.Warn().Err(err).Str("module", "adapters.rtc").Str("type", msg.Type).Msg("signal not sent")
	}
}

// fail reports a join that never completed and tears the link down.
func (l *link) fail(code int) {
	l.mu.Lock()
	if l.leaving {
		l.mu.Unlock()
		return
	}
	l.leaving = true
	l.mu.Unlock()
	l.t.emit(func(s core.EventSink) { s.OnJoinFailed(l.conn, code) })
	l.stop()
}

// leave tells the server we are going and tears the link down.
func (l *link) leave() {
	l.mu.Lock()
	already := l.leaving
	l.leaving = true
	l.mu.Unlock()
	if !already {
		l.send(signalMessage{Type: "leave", Channel: string(l.conn.Channel), UID: uint32(l.conn.LocalUID)})
	}
	l.stop()
}

// stop flushes queued signaling, then releases the socket and peer connection.
func (l *link) stop() {
	l.mu.Lock()
	sig := l.sig
	l.mu.Unlock()
	if sig == nil {
		l.cancel()
	} else {
		sig.Close()
		time.AfterFunc(time.Second, l.cancel)
	}
	l.peer.close()
}
