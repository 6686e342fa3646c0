// Package rtc implements the session transport over pion/webrtc: one peer
// connection and one signaling websocket per SubConnection.
package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Options struct {
	SignalURL  string
	ICEServers []string
	PingPeriod time.Duration
	ReadLimit  int64
}

// Transport implements core.Transport. Events are never delivered from pion
// or websocket goroutines; they are posted to the update loop.
type Transport struct {
	appID  string
	opts   Options
	poster core.Poster
	dialer *websocket.Dialer
	webrtc webrtc.Configuration

	mu       sync.Mutex
	sink     core.EventSink
	primary  *link
	links    map[domain.UID]*link
	released bool
}

var _ core.Transport = (*Transport)(nil)

// NewFactory returns a factory building transports that post events through poster.
func NewFactory(opts Options, poster core.Poster) core.TransportFactory {
	return func(cfg core.EngineConfig) (core.Transport, error) {
		t, err := New(cfg, opts, poster)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func New(cfg core.EngineConfig, opts Options, poster core.Poster) (*Transport, error) {
	if cfg.AppID == "" {
		return nil, &domain.ConfigError{Field: "app_id", Reason: "empty"}
	}
	if opts.SignalURL == "" {
		return nil, &domain.ConfigError{Field: "transport.signal_url", Reason: "empty"}
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &Transport{
		appID:  cfg.AppID,
		opts:   opts,
		poster: poster,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		webrtc: webRTCConfig(opts.ICEServers),
		links:  make(map[domain.UID]*link),
	}, nil
}

func (t *Transport) SetEventSink(s core.EventSink) {
	t.mu.Lock()
	t.sink = s
	t.mu.Unlock()
}

// emit posts fn to the loop; the sink is resolved when fn runs there, so a
// sink removed in between never sees the event.
func (t *Transport) emit(fn func(core.EventSink)) {
	err := t.poster.Post(func() {
		t.mu.Lock()
		s := t.sink
		t.mu.Unlock()
		if s != nil {
			fn(s)
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.rtc").Msg("event dropped")
	}
}

func (t *Transport) Join(token string, conn core.Connection, opts domain.MediaOptions) error {
	return t.join("join", token, conn, opts, true)
}

func (t *Transport) JoinSecondary(token string, conn core.Connection, opts domain.MediaOptions) error {
	return t.join("join_secondary", token, conn, opts, false)
}

func (t *Transport) join(op, token string, conn core.Connection, opts domain.MediaOptions, primary bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.released:
		return &core.CodeError{Op: op, Code: CodeNotInitialized}
	case token == "" || conn.Channel == "" || conn.LocalUID == 0:
		return &core.CodeError{Op: op, Code: CodeInvalidArgument}
	case primary && t.primary != nil:
		return &core.CodeError{Op: op, Code: CodeAlreadyInChannel}
	}
	if _, ok := t.links[conn.LocalUID]; ok {
		return &core.CodeError{Op: op, Code: CodeAlreadyInChannel}
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &link{
		t: t, conn: conn, opts: opts, token: token, primary: primary,
		ctx: ctx, cancel: cancel, startedAt: time.Now(),
	}
	peer, err := newPeerConn(t.webrtc, conn, opts, primary)
	if err != nil {
		cancel()
		log.Error().Err(err).Str("module", "adapters.rtc").Str("conn", conn.String()).Msg("peer connection")
		return &core.CodeError{Op: op, Code: CodeFailed}
	}
	peer.onClosed = l.onPeerFailed
	if primary {
		peer.onControl = l.onControl
		t.primary = l
	}
	l.peer = peer
	t.links[conn.LocalUID] = l
	go l.run()
	return nil
}

func (t *Transport) Leave() error {
	t.mu.Lock()
	l := t.primary
	t.primary = nil
	if l != nil {
		delete(t.links, l.conn.LocalUID)
	}
	t.mu.Unlock()
	if l != nil {
		l.leave()
	}
	return nil
}

func (t *Transport) LeaveSecondary(conn core.Connection) error {
	t.mu.Lock()
	l, ok := t.links[conn.LocalUID]
	if ok && l.primary {
		t.mu.Unlock()
		return &core.CodeError{Op: "leave_secondary", Code: CodeInvalidArgument}
	}
	delete(t.links, conn.LocalUID)
	t.mu.Unlock()
	if ok {
		l.leave()
	}
	return nil
}

// CreateReliableStream returns the control data channel of the Primary connection.
func (t *Transport) CreateReliableStream(cfg core.StreamConfig) (int, error) {
	if !cfg.Ordered {
		return 0, &core.CodeError{Op: "create_stream", Code: CodeInvalidArgument}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.primary == nil {
		return 0, &core.CodeError{Op: "create_stream", Code: CodeNotJoined}
	}
	return ControlStreamID, nil
}

func (t *Transport) SendOnStream(streamID int, data []byte) error {
	if streamID != ControlStreamID {
		return &core.CodeError{Op: "send", Code: CodeInvalidArgument}
	}
	t.mu.Lock()
	l := t.primary
	t.mu.Unlock()
	if l == nil {
		return &core.CodeError{Op: "send", Code: CodeNotJoined}
	}
	return l.peer.send(data)
}

func (t *Transport) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	links := make([]*link, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, l)
	}
	t.links = make(map[domain.UID]*link)
	t.primary = nil
	t.sink = nil
	t.mu.Unlock()
	for _, l := range links {
		l.leave()
	}
	log.Info().Str("module", "adapters.rtc").Str("app_id", t.appID).Msg("transport released")
}

func (t *Transport) forget(l *link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.links[l.conn.LocalUID]; ok && cur == l {
		delete(t.links, l.conn.LocalUID)
	}
	if t.primary == l {
		t.primary = nil
	}
}
