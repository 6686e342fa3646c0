// Package orch holds the session role controller: it owns the Session, drives
// SubConnection lifecycles and routes control-channel traffic.
package orch

import (
	"fmt"
	"time"

	"github.com/dkeye/Tutor/internal/app/chat"
	"github.com/dkeye/Tutor/internal/app/cursor"
	"github.com/dkeye/Tutor/internal/app/registry"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/protocol"
	"github.com/rs/zerolog/log"
)

const DefaultJoinTimeout = 10 * time.Second

// Orchestrator is parameterized by a RoleConfig; teacher and student differ
// only in configuration. All methods must be called from the update loop.
type Orchestrator struct {
	Registry  *registry.Registry
	Chat      *chat.Channel
	Cursor    *cursor.Streamer
	Indicator *cursor.Indicator
	Input     *cursor.Input

	cfg     domain.RoleConfig
	factory core.TransportFactory
	view    core.ViewSink
	now     func() time.Time

	session   *domain.Session
	transport core.Transport
	sinkSet   bool

	streamID  int
	hasStream bool

	// secondaries waiting for Primary to reach Joined
	pending []domain.Purpose
}

func New(cfg domain.RoleConfig, factory core.TransportFactory, view core.ViewSink) *Orchestrator {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if view == nil {
		view = nopView{}
	}
	o := &Orchestrator{
		Registry:  registry.New(cfg),
		Indicator: cursor.NewIndicator(view),
		Input:     &cursor.Input{},
		cfg:       cfg,
		factory:   factory,
		view:      view,
		now:       time.Now,
	}
	o.Cursor = cursor.NewStreamer(cfg.CursorRate, o)
	o.Chat = chat.NewChannel(o, o.onChatAppended)
	return o
}

// WithClock replaces the time source of the orchestrator and its collaborators.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.Registry.WithClock(now)
	o.Chat.WithClock(now)
	return o
}

// Initialize creates the transport handle and installs the event sink.
func (o *Orchestrator) Initialize(identity, credential, channel string) error {
	if o.session != nil {
		return domain.ErrAlreadyInitialized
	}
	sess, err := domain.NewSession(o.cfg.Role, identity, credential, channel, o.now())
	if err != nil {
		return err
	}
	t, err := o.factory(core.EngineConfig{AppID: identity})
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	o.session = sess
	o.transport = t
	o.installSink()
	log.Info().Str("module", "app.orch").Str("role", string(o.cfg.Role)).Str("channel", channel).Msg("session initialized")
	return nil
}

// Shutdown leaves everything and releases the transport. Safe to call twice.
func (o *Orchestrator) Shutdown() {
	o.LeaveAll()
	if o.transport == nil {
		return
	}
	o.transport.Release()
	o.transport = nil
	o.session = nil
	o.sinkSet = false
	log.Info().Str("module", "app.orch").Msg("session shut down")
}

// Tick runs once per update loop iteration.
func (o *Orchestrator) Tick(now time.Time) {
	o.expireJoins(now)
	frame := o.Input.Take()
	if o.State(domain.PurposePrimary) != domain.StateJoined {
		if o.Cursor.Streaming() {
			o.Cursor.Stop()
		}
		return
	}
	o.Cursor.Tick(now, frame)
}

// OnTrigger forwards a global input trigger to the view.
func (o *Orchestrator) OnTrigger(name string) {
	log.Info().Str("module", "app.orch").Str("trigger", name).Msg("trigger fired")
	o.view.Triggered(name)
}

func (o *Orchestrator) Role() domain.Role { return o.cfg.Role }

func (o *Orchestrator) Identity() string {
	if o.session == nil {
		return ""
	}
	return o.session.Identity
}

func (o *Orchestrator) Channel() domain.ChannelName {
	if o.session == nil {
		return ""
	}
	return o.session.Channel
}

func (o *Orchestrator) Initialized() bool { return o.session != nil }

// State returns Idle for purposes that hold no SubConnection.
func (o *Orchestrator) State(p domain.Purpose) domain.ConnState {
	sc, ok := o.Registry.ByPurpose(p)
	if !ok {
		return domain.StateIdle
	}
	return sc.State
}

// Snapshot describes every configured purpose and the known peers.
func (o *Orchestrator) Snapshot() core.SessionSnapshot {
	snap := core.SessionSnapshot{
		Role:        string(o.cfg.Role),
		Identity:    o.Identity(),
		Channel:     string(o.Channel()),
		Initialized: o.Initialized(),
	}
	for _, p := range domain.Purposes {
		uid, ok := o.cfg.Local[p]
		if !ok {
			continue
		}
		snap.SubConnections = append(snap.SubConnections, core.SubConnectionView{
			Purpose: p.String(), UID: uid, State: o.State(p).String(),
		})
	}
	for _, rp := range o.Registry.Remotes() {
		snap.Remotes = append(snap.Remotes, remoteView(rp))
	}
	if pos, ok := o.Indicator.Visible(); ok {
		snap.PeerCursor = &core.CursorView{X: pos.X, Y: pos.Y}
	}
	return snap
}

func (o *Orchestrator) installSink() {
	if o.transport == nil || o.sinkSet {
		return
	}
	o.transport.SetEventSink(o)
	o.sinkSet = true
}

func (o *Orchestrator) conn(uid domain.UID) core.Connection {
	return core.Connection{Channel: o.session.Channel, LocalUID: uid}
}

func remoteView(rp domain.RemoteParticipant) core.RemoteView {
	return core.RemoteView{UID: rp.UID, Purpose: rp.Purpose.String()}
}

func chatEntry(m protocol.Chat) core.ChatEntry {
	return core.ChatEntry{Key: m.Key, Timestamp: m.Timestamp, Content: m.Content}
}

type nopView struct{}

func (nopView) SubConnectionChanged(core.SubConnectionView, error) {}
func (nopView) RemoteJoined(core.RemoteView)                       {}
func (nopView) RemoteLeft(core.RemoteView)                         {}
func (nopView) CursorMoved(float64, float64)                       {}
func (nopView) CursorHidden()                                      {}
func (nopView) ChatAppended(core.ChatEntry)                        {}
func (nopView) Triggered(string)                                   {}
