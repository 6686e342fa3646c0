// Package view pushes session events to the local rendering client over
// websocket and feeds its pointer, rect and chat input back into the session.
package view

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Hub fans session events out to every connected view client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*WsViewConn
	policy  Policy
}

var _ core.ViewSink = (*Hub)(nil)

func NewHub(policy Policy) *Hub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{clients: make(map[string]*WsViewConn), policy: policy}
}

func (h *Hub) add(c *WsViewConn) {
	h.mu.Lock()
	old := h.clients[c.id]
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
	metrics.ViewClients.Set(float64(n))
	log.Info().Str("module", "adapters.view").Str("client", c.id).Msg("view client added")
}

func (h *Hub) remove(c *WsViewConn) {
	h.mu.Lock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.ViewClients.Set(float64(n))
	log.Info().Str("module", "adapters.view").Str("client", c.id).Msg("view client removed")
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.view").Msg("broadcast marshal")
		return
	}
	h.mu.RLock()
	clients := make([]*WsViewConn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		err := c.TrySend(data)
		streak := c.markSlow(err != nil)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrClosed) {
			h.remove(c)
			continue
		}
		switch h.policy.OnBackPressure(c.id, streak) {
		case KickClient:
			log.Warn().Str("module", "adapters.view").Str("client", c.id).Int("streak", streak).Msg("kicking slow view client")
			c.Close()
			h.remove(c)
		case DropFrame, NoAction:
		}
	}
}

type subConnectionEvent struct {
	Type string `json:"type"`
	core.SubConnectionView
	Error string `json:"error,omitempty"`
}

type remoteEvent struct {
	Type string `json:"type"`
	core.RemoteView
}

type cursorEvent struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type chatEvent struct {
	Type string `json:"type"`
	core.ChatEntry
}

type typed struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

func (h *Hub) SubConnectionChanged(v core.SubConnectionView, err error) {
	ev := subConnectionEvent{Type: "subconnection", SubConnectionView: v}
	if err != nil {
		ev.Error = err.Error()
	}
	h.broadcast(ev)
}

func (h *Hub) RemoteJoined(v core.RemoteView) {
	h.broadcast(remoteEvent{Type: "remote_joined", RemoteView: v})
}

func (h *Hub) RemoteLeft(v core.RemoteView) {
	h.broadcast(remoteEvent{Type: "remote_left", RemoteView: v})
}

func (h *Hub) CursorMoved(x, y float64) {
	h.broadcast(cursorEvent{Type: "cursor", X: x, Y: y})
}

func (h *Hub) CursorHidden() {
	h.broadcast(typed{Type: "cursor_hidden"})
}

func (h *Hub) ChatAppended(e core.ChatEntry) {
	h.broadcast(chatEvent{Type: "chat", ChatEntry: e})
}

func (h *Hub) Triggered(name string) {
	h.broadcast(typed{Type: "trigger", Name: name})
}
