package rtc

import (
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ControlStreamID is the pre-negotiated data channel id of the control stream.
const ControlStreamID = 0

// maxBuffered bounds unsent control bytes before SendOnStream pushes back.
const maxBuffered = 1 << 20

func webRTCConfig(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

// peerConn is the media half of one SubConnection.
type peerConn struct {
	pc      *webrtc.PeerConnection
	conn    core.Connection
	control *webrtc.DataChannel
	tracks  map[string]*webrtc.TrackLocalStaticSample

	onClosed  func()
	onControl func(data []byte)
}

func newPeerConn(cfg webrtc.Configuration, conn core.Connection, opts domain.MediaOptions, withControl bool) (*peerConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &peerConn{pc: pc, conn: conn, tracks: make(map[string]*webrtc.TrackLocalStaticSample)}
	if err := p.addMedia(opts); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add media: %w", err)
	}
	if withControl {
		if err := p.openControl(); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("control channel: %w", err)
		}
	}
	p.bind()
	return p, nil
}

func (p *peerConn) addMedia(opts domain.MediaOptions) error {
	pub := opts.Publish
	switch {
	case pub.Camera:
		if err := p.addTrack(webrtc.MimeTypeVP8, "camera", opts.Subscribe.Video); err != nil {
			return err
		}
	case pub.Screen:
		if err := p.addTrack(webrtc.MimeTypeVP8, "screen", opts.Subscribe.Video); err != nil {
			return err
		}
	case pub.CustomVideo:
		if err := p.addTrack(webrtc.MimeTypeVP8, "custom_video", opts.Subscribe.Video); err != nil {
			return err
		}
	case opts.Subscribe.Video:
		if err := p.addRecvOnly(webrtc.RTPCodecTypeVideo); err != nil {
			return err
		}
	}
	if pub.Mic {
		return p.addTrack(webrtc.MimeTypeOpus, "mic", opts.Subscribe.Audio)
	}
	if opts.Subscribe.Audio {
		return p.addRecvOnly(webrtc.RTPCodecTypeAudio)
	}
	return nil
}

func (p *peerConn) addTrack(mime, label string, recv bool) error {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, label, "uid-"+p.conn.LocalUID.String())
	if err != nil {
		return err
	}
	dir := webrtc.RTPTransceiverDirectionSendonly
	if recv {
		dir = webrtc.RTPTransceiverDirectionSendrecv
	}
	tr, err := p.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{Direction: dir})
	if err != nil {
		return err
	}
	p.tracks[label] = track
	go drainRTCP(tr.Sender())
	return nil
}

func (p *peerConn) addRecvOnly(kind webrtc.RTPCodecType) error {
	_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
	return err
}

func (p *peerConn) openControl() error {
	negotiated := true
	ordered := true
	id := uint16(ControlStreamID)
	dc, err := p.pc.CreateDataChannel("control", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
		Ordered:    &ordered,
	})
	if err != nil {
		return err
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.onControl != nil {
			p.onControl(msg.Data)
		}
	})
	dc.OnOpen(func() {
		log.Info().Str("module", "adapters.rtc").Str("conn", p.conn.String()).Msg("control stream open")
	})
	p.control = dc
	return nil
}

func (p *peerConn) bind() {
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "adapters.rtc").Str("conn", p.conn.String()).Str("ice_state", s.String()).Msg("ICE state")
	})
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "adapters.rtc").Str("conn", p.conn.String()).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed && p.onClosed != nil {
			p.onClosed()
		}
	})
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "adapters.rtc").
			Str("conn", p.conn.String()).
			Str("kind", track.Kind().String()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		go drainTrack(track)
	})
}

// createOffer returns the local offer once ICE gathering is complete.
func (p *peerConn) createOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return p.pc.LocalDescription(), nil
}

func (p *peerConn) applyAnswer(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// applyOfferAndCreateAnswer handles renegotiation started by the server.
func (p *peerConn) applyOfferAndCreateAnswer(sdp string) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return p.pc.LocalDescription(), nil
}

func (p *peerConn) addICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *peerConn) send(data []byte) error {
	if p.control == nil {
		return &core.CodeError{Op: "send", Code: CodeNoStream}
	}
	if p.control.ReadyState() != webrtc.DataChannelStateOpen {
		return &core.CodeError{Op: "send", Code: CodeNotReady}
	}
	if p.control.BufferedAmount() > maxBuffered {
		return ErrBackpressure
	}
	return p.control.Send(data)
}

func (p *peerConn) close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Str("conn", p.conn.String()).Msg("close error")
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// drainTrack keeps the receive buffer empty; rendering lives elsewhere.
func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("module", "adapters.rtc").Msg("remote track ended")
			}
			return
		}
	}
}
