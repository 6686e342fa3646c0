package orch

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/metrics"
	"github.com/rs/zerolog/log"
)

var stateNames = []string{
	domain.StateIdle.String(),
	domain.StateJoining.String(),
	domain.StateJoined.String(),
	domain.StateLeaving.String(),
}

// JoinPrimary joins the webcam/mic SubConnection. It only reaches Joined on a
// positive transport acknowledgment.
func (o *Orchestrator) JoinPrimary() error {
	return o.join(domain.PurposePrimary)
}

// JoinScreenShare joins the sender-only desktop SubConnection.
func (o *Orchestrator) JoinScreenShare() error {
	return o.joinSecondary(domain.PurposeScreenShare)
}

// JoinAvatar joins the sender-only synthetic video SubConnection.
func (o *Orchestrator) JoinAvatar() error {
	return o.joinSecondary(domain.PurposeAvatar)
}

// Join dispatches on purpose.
func (o *Orchestrator) Join(p domain.Purpose) error {
	switch p {
	case domain.PurposePrimary:
		return o.JoinPrimary()
	case domain.PurposeScreenShare:
		return o.JoinScreenShare()
	case domain.PurposeAvatar:
		return o.JoinAvatar()
	default:
		return fmt.Errorf("join %s: %w", p, domain.ErrPurposeNotConfigured)
	}
}

// joinSecondary runs now if Primary is Joined, or is queued as a continuation
// of Primary's Joined event while Primary is still Joining.
func (o *Orchestrator) joinSecondary(p domain.Purpose) error {
	if o.transport == nil {
		return domain.ErrNotInitialized
	}
	if _, ok := o.cfg.Local[p]; !ok {
		return fmt.Errorf("join %s for %s: %w", p, o.cfg.Role, domain.ErrPurposeNotConfigured)
	}
	switch o.State(domain.PurposePrimary) {
	case domain.StateJoined:
		return o.join(p)
	case domain.StateJoining:
		o.deferJoin(p)
		return nil
	default:
		return fmt.Errorf("join %s: %w", p, domain.ErrPrimaryNotJoined)
	}
}

func (o *Orchestrator) deferJoin(p domain.Purpose) {
	for _, q := range o.pending {
		if q == p {
			return
		}
	}
	o.pending = append(o.pending, p)
	log.Info().Str("module", "app.orch").Str("purpose", p.String()).Msg("join deferred until primary joined")
}

func (o *Orchestrator) join(p domain.Purpose) error {
	if o.transport == nil {
		return domain.ErrNotInitialized
	}
	uid, ok := o.cfg.Local[p]
	if !ok {
		return fmt.Errorf("join %s for %s: %w", p, o.cfg.Role, domain.ErrPurposeNotConfigured)
	}
	if sc, ok := o.Registry.ByPurpose(p); ok {
		if sc.State.Active() {
			return nil
		}
		return fmt.Errorf("join %s while %s: %w", p, sc.State, domain.ErrInvalidTransition)
	}
	if err := o.Registry.Register(uid, p); err != nil {
		return err
	}
	if err := o.Registry.Transition(uid, domain.StateJoining); err != nil {
		o.Registry.Unregister(uid)
		return err
	}
	o.installSink()

	conn := o.conn(uid)
	opts := domain.PurposeOptions(p)
	var err error
	if p == domain.PurposePrimary {
		err = o.transport.Join(o.session.Credential, conn, opts)
	} else {
		err = o.transport.JoinSecondary(o.session.Credential, conn, opts)
	}
	if err != nil {
		code := -1
		var ce *core.CodeError
		if errors.As(err, &ce) {
			code = ce.Code
		}
		log.Error().Err(err).Str("module", "app.orch").Str("purpose", p.String()).Msg("join rejected")
		return o.failJoin(uid, code)
	}
	o.publish(uid, nil)
	log.Info().Str("module", "app.orch").Str("purpose", p.String()).Uint32("uid", uint32(uid)).Msg("join requested")
	return nil
}

// failJoin reverts a Joining SubConnection to Idle and reports why.
func (o *Orchestrator) failJoin(uid domain.UID, code int) error {
	sc, ok := o.Registry.Lookup(uid)
	if !ok {
		return nil
	}
	jerr := &domain.JoinFailedError{Purpose: sc.Purpose, UID: uid, Code: code}
	if err := o.Registry.Transition(uid, domain.StateIdle); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("revert failed join")
	}
	o.Registry.Unregister(uid)
	metrics.JoinFailuresTotal.WithLabelValues(sc.Purpose.String()).Inc()
	o.publishView(sc.Purpose, uid, domain.StateIdle, jerr)
	if sc.Purpose == domain.PurposePrimary && len(o.pending) > 0 {
		log.Warn().Str("module", "app.orch").Int("dropped", len(o.pending)).Msg("primary failed, dropping deferred joins")
		o.pending = nil
	}
	log.Warn().Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Int("code", code).Msg("join failed")
	return jerr
}

// expireJoins fails joins that have not been acknowledged within the timeout.
func (o *Orchestrator) expireJoins(now time.Time) {
	if o.transport == nil {
		return
	}
	for _, sc := range o.Registry.JoinOrder() {
		if sc.State != domain.StateJoining || now.Sub(sc.JoinStartedAt) < o.cfg.JoinTimeout {
			continue
		}
		o.leaveTransport(sc)
		_ = o.failJoin(sc.UID, domain.CodeJoinTimeout)
	}
}

// onPrimaryJoined runs deferred joins, then configured auto-joins.
func (o *Orchestrator) onPrimaryJoined() {
	next := o.pending
	o.pending = nil
	for _, p := range o.cfg.AutoJoin {
		if p == domain.PurposePrimary {
			continue
		}
		seen := false
		for _, q := range next {
			seen = seen || q == p
		}
		if !seen {
			next = append(next, p)
		}
	}
	for _, p := range next {
		if err := o.join(p); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("purpose", p.String()).Msg("continuation join failed")
		}
	}
}

// LeaveAll tears every active SubConnection down, secondaries first. The sink
// is removed before anything else is sent, so late callbacks never arrive here.
func (o *Orchestrator) LeaveAll() {
	o.teardown(0)
}

// teardown is LeaveAll; dropped names a connection the far side already
// closed, which gets no transport leave.
func (o *Orchestrator) teardown(dropped domain.UID) {
	o.pending = nil
	active := o.Registry.JoinOrder()
	if o.transport == nil {
		active = nil
	}
	if len(active) > 0 {
		o.transport.SetEventSink(nil)
		o.sinkSet = false
	}
	if o.Cursor.Streaming() {
		o.Cursor.Stop()
	}
	o.Indicator.Hide()
	o.hasStream = false

	for i := len(active) - 1; i >= 0; i-- {
		o.leave(active[i], active[i].UID != dropped)
	}
	for _, rp := range o.Registry.Remotes() {
		o.view.RemoteLeft(remoteView(rp))
	}
	o.Registry.ClearRemotes()
	metrics.RemoteParticipants.Set(0)
}

// Leave tears down a single purpose, including a join still waiting for
// Primary. Leaving Primary leaves everything.
func (o *Orchestrator) Leave(p domain.Purpose) error {
	sc, registered := o.Registry.ByPurpose(p)
	registered = registered && sc.State.Active()
	if p == domain.PurposePrimary {
		if !registered {
			return fmt.Errorf("leave %s: %w", p, domain.ErrNotFound)
		}
		o.LeaveAll()
		return nil
	}
	cancelled := o.cancelPending(p)
	if registered {
		o.leave(sc, true)
		return nil
	}
	if cancelled {
		log.Info().Str("module", "app.orch").Str("purpose", p.String()).Msg("deferred join cancelled")
		return nil
	}
	return fmt.Errorf("leave %s: %w", p, domain.ErrNotFound)
}

func (o *Orchestrator) cancelPending(p domain.Purpose) bool {
	for i, q := range o.pending {
		if q == p {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Orchestrator) leave(sc domain.SubConnection, callTransport bool) {
	if err := o.Registry.Transition(sc.UID, domain.StateLeaving); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("leave transition")
		return
	}
	o.publish(sc.UID, nil)
	if callTransport {
		o.leaveTransport(sc)
	}
	if err := o.Registry.Transition(sc.UID, domain.StateIdle); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("leave transition")
	}
	o.Registry.Unregister(sc.UID)
	o.publishView(sc.Purpose, sc.UID, domain.StateIdle, nil)
	log.Info().Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Msg("left")
}

func (o *Orchestrator) leaveTransport(sc domain.SubConnection) {
	var err error
	if sc.Purpose == domain.PurposePrimary {
		err = o.transport.Leave()
	} else {
		err = o.transport.LeaveSecondary(o.conn(sc.UID))
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Msg("transport leave")
	}
}

func (o *Orchestrator) publish(uid domain.UID, err error) {
	sc, ok := o.Registry.Lookup(uid)
	if !ok {
		return
	}
	o.publishView(sc.Purpose, uid, sc.State, err)
}

func (o *Orchestrator) publishView(p domain.Purpose, uid domain.UID, st domain.ConnState, err error) {
	metrics.SetState(p.String(), st.String(), stateNames)
	o.view.SubConnectionChanged(core.SubConnectionView{Purpose: p.String(), UID: uid, State: st.String()}, err)
}
