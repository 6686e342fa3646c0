package orch

import (
	"time"

	"github.com/dkeye/Tutor/internal/app/registry"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/metrics"
	"github.com/rs/zerolog/log"
)

var _ core.EventSink = (*Orchestrator)(nil)

// known guards every callback: events for SubConnections that are no longer
// registered are late and ignored.
func (o *Orchestrator) known(conn core.Connection, event string) (domain.SubConnection, bool) {
	sc, ok := o.Registry.Lookup(conn.LocalUID)
	if !ok || o.session == nil || conn.Channel != o.session.Channel {
		log.Debug().Str("module", "app.orch").Str("event", event).Str("conn", conn.String()).Msg("late callback ignored")
		return domain.SubConnection{}, false
	}
	return sc, true
}

func (o *Orchestrator) OnJoined(conn core.Connection, elapsed time.Duration) {
	sc, ok := o.known(conn, "joined")
	if !ok {
		return
	}
	if sc.State != domain.StateJoining {
		log.Warn().Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Str("state", sc.State.String()).Msg("unexpected join ack")
		return
	}
	if err := o.Registry.Transition(sc.UID, domain.StateJoined); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("join ack transition")
		return
	}
	metrics.JoinDuration.WithLabelValues(sc.Purpose.String()).Observe(elapsed.Seconds())
	o.publish(sc.UID, nil)
	log.Info().Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Dur("elapsed", elapsed).Msg("joined")
	if sc.Purpose == domain.PurposePrimary {
		o.onPrimaryJoined()
	}
}

func (o *Orchestrator) OnJoinFailed(conn core.Connection, code int) {
	sc, ok := o.known(conn, "join_failed")
	if !ok || sc.State != domain.StateJoining {
		return
	}
	_ = o.failJoin(sc.UID, code)
}

// OnLeft handles a connection dropped by the far side.
func (o *Orchestrator) OnLeft(conn core.Connection, stats core.LeaveStats) {
	sc, ok := o.known(conn, "left")
	if !ok || !sc.State.Active() {
		return
	}
	log.Warn().Str("module", "app.orch").Str("purpose", sc.Purpose.String()).Dur("duration", stats.Duration).Msg("connection dropped")
	if sc.State == domain.StateJoining {
		_ = o.failJoin(sc.UID, -1)
		return
	}
	if sc.Purpose == domain.PurposePrimary {
		o.teardown(sc.UID)
		return
	}
	if err := o.Registry.Transition(sc.UID, domain.StateLeaving); err == nil {
		_ = o.Registry.Transition(sc.UID, domain.StateIdle)
	}
	o.Registry.Unregister(sc.UID)
	o.publishView(sc.Purpose, sc.UID, domain.StateIdle, nil)
}

func (o *Orchestrator) OnRemoteJoined(conn core.Connection, uid domain.UID) {
	if !o.fromPrimary(conn, "remote_joined") {
		return
	}
	cls := o.Registry.ClassifyRemoteUID(uid)
	switch cls.Owner {
	case registry.OwnerPeer:
		rp, added := o.Registry.AddRemote(uid, conn.Channel, cls.Purpose)
		if added {
			metrics.RemoteParticipants.Inc()
			o.view.RemoteJoined(remoteView(rp))
		}
	case registry.OwnerSelf:
		log.Debug().Str("module", "app.orch").Uint32("uid", uint32(uid)).Msg("own secondary seen, not subscribing")
	default:
		log.Debug().Str("module", "app.orch").Uint32("uid", uint32(uid)).Msg("unknown uid ignored")
	}
}

func (o *Orchestrator) OnRemoteLeft(conn core.Connection, uid domain.UID, reason int) {
	if !o.fromPrimary(conn, "remote_left") {
		return
	}
	rp, ok := o.Registry.RemoveRemote(uid)
	if !ok {
		return
	}
	metrics.RemoteParticipants.Dec()
	if rp.Purpose == domain.PurposePrimary {
		o.Indicator.Hide()
	}
	o.view.RemoteLeft(remoteView(rp))
	log.Info().Str("module", "app.orch").Uint32("uid", uint32(uid)).Int("reason", reason).Msg("peer left")
}

func (o *Orchestrator) OnStreamMessage(conn core.Connection, uid domain.UID, streamID int, data []byte) {
	if !o.fromPrimary(conn, "stream_message") {
		return
	}
	if cls := o.Registry.ClassifyRemoteUID(uid); cls.Owner != registry.OwnerPeer {
		log.Debug().Str("module", "app.orch").Uint32("uid", uint32(uid)).Msg("stream message from non-peer ignored")
		return
	}
	o.Registry.Touch(uid)
	o.dispatch(data)
}

func (o *Orchestrator) OnStreamMessageError(conn core.Connection, uid domain.UID, streamID int, code, missed, cached int) {
	if _, ok := o.known(conn, "stream_error"); !ok {
		return
	}
	metrics.ControlMessagesTotal.WithLabelValues("unknown", "stream_error").Add(float64(max(missed, 1)))
	log.Warn().Str("module", "app.orch").Uint32("uid", uint32(uid)).Int("stream", streamID).
		Int("code", code).Int("missed", missed).Int("cached", cached).Msg("stream message error")
}

// fromPrimary accepts channel-wide events only once, through Primary.
func (o *Orchestrator) fromPrimary(conn core.Connection, event string) bool {
	sc, ok := o.known(conn, event)
	return ok && sc.Purpose == domain.PurposePrimary && sc.State == domain.StateJoined
}
