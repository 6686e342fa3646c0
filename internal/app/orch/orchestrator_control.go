package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Tutor/internal/app/cursor"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/metrics"
	"github.com/dkeye/Tutor/internal/protocol"
	"github.com/rs/zerolog/log"
)

// SendControl encodes msg onto the reliable stream, creating it on first use.
func (o *Orchestrator) SendControl(msg protocol.Message) error {
	if o.transport == nil {
		return domain.ErrNotInitialized
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if o.State(domain.PurposePrimary) != domain.StateJoined {
		return domain.ErrPrimaryNotJoined
	}
	kind := msg.Kind().String()
	if !o.hasStream {
		id, err := o.transport.CreateReliableStream(core.StreamConfig{Ordered: true, Reliable: true})
		if err != nil {
			metrics.ControlMessagesTotal.WithLabelValues(kind, "send_failed").Inc()
			return fmt.Errorf("%w: create stream: %v", domain.ErrSendFailed, err)
		}
		o.streamID, o.hasStream = id, true
		log.Info().Str("module", "app.orch").Int("stream", id).Msg("control stream created")
	}
	if err := o.transport.SendOnStream(o.streamID, data); err != nil {
		metrics.ControlMessagesTotal.WithLabelValues(kind, "send_failed").Inc()
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	metrics.ControlMessagesTotal.WithLabelValues(kind, "sent").Inc()
	return nil
}

// SendChat reports false on failure; an optimistic local echo stays as is.
func (o *Orchestrator) SendChat(content string) bool {
	return o.Chat.Send(content)
}

// SetTrackedRect sets the area pointer gestures are taken from and the peer's
// pointer is drawn onto.
func (o *Orchestrator) SetTrackedRect(r cursor.Rect) {
	o.Cursor.SetRect(r)
	o.Indicator.SetRect(r)
}

// SetCursorExclusion sets an area inside the tracked rect where presses are ignored.
func (o *Orchestrator) SetCursorExclusion(r cursor.Rect) {
	o.Cursor.SetExclusion(r)
}

// SetFocus stops an ongoing gesture when the application loses focus.
func (o *Orchestrator) SetFocus(focused bool) {
	if !focused && o.Cursor.Streaming() {
		o.Cursor.Stop()
	}
}

// ChatEntries returns the inbound chat log in receipt order.
func (o *Orchestrator) ChatEntries() []core.ChatEntry {
	entries := o.Chat.Log().Entries()
	out := make([]core.ChatEntry, len(entries))
	for i, m := range entries {
		out[i] = chatEntry(m)
	}
	return out
}

func (o *Orchestrator) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrUnknownPrefix):
		metrics.ControlMessagesTotal.WithLabelValues("unknown", "dropped").Inc()
		log.Debug().Str("module", "app.orch").Int("len", len(data)).Msg("unknown control prefix dropped")
		return
	case errors.Is(err, protocol.ErrMalformedCursorPayload):
		metrics.ControlMessagesTotal.WithLabelValues("cursor", "dropped").Inc()
		log.Warn().Err(err).Str("module", "app.orch").Msg("malformed cursor payload dropped")
		return
	case err != nil:
		metrics.ControlMessagesTotal.WithLabelValues("chat", "dropped").Inc()
		log.Warn().Err(err).Str("module", "app.orch").Msg("malformed chat payload dropped")
		return
	}
	metrics.ControlMessagesTotal.WithLabelValues(msg.Kind().String(), "received").Inc()
	if o.Indicator.Apply(msg) {
		return
	}
	if m, ok := msg.(protocol.Chat); ok {
		o.Chat.Deliver(m)
	}
}

func (o *Orchestrator) onChatAppended(m protocol.Chat) {
	o.view.ChatAppended(chatEntry(m))
}
