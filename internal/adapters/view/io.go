package view

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Tutor/internal/app/cursor"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsViewConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.view").Str("client", c.id).Msg("ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.view").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.view").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *WsViewConn) {
	defer func() {
		c.Close()
		ctl.hub.remove(c)
		ctl.limiter.Forget(c.id)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "adapters.view").Str("client", c.id).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(c, data)
		}
	}
}

type pointerMessage struct {
	Event string  `json:"event"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type rectMessage struct {
	X       float64      `json:"x"`
	Y       float64      `json:"y"`
	W       float64      `json:"w"`
	H       float64      `json:"h"`
	Exclude *cursor.Rect `json:"exclude,omitempty"`
}

func (ctl *Controller) handleMessage(c *WsViewConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.view").Msg("bad json")
		return
	}

	switch env.Type {
	case "pointer":
		ctl.handlePointer(c, data)
	case "rect":
		ctl.handleRect(c, data)
	case "focus":
		ctl.handleFocus(c, data)
	case "chat":
		ctl.handleChat(c, data)
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "adapters.view").Str("type", env.Type).Msg("unknown view message")
	}
}

func (ctl *Controller) handlePointer(c *WsViewConn, data []byte) {
	var msg pointerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad pointer payload")
		return
	}
	p := cursor.Point{X: msg.X, Y: msg.Y}
	switch msg.Event {
	case "move":
		ctl.pointer.Move(p)
	case "press":
		ctl.pointer.Press(p)
	case "release":
		ctl.pointer.Release(p)
	default:
		ctl.sendError(c, "unknown pointer event")
	}
}

func (ctl *Controller) handleRect(c *WsViewConn, data []byte) {
	var msg rectMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad rect payload")
		return
	}
	r := cursor.Rect{X: msg.X, Y: msg.Y, W: msg.W, H: msg.H}
	var exclude cursor.Rect
	if msg.Exclude != nil {
		exclude = *msg.Exclude
	}
	ctl.post(c, func() {
		ctl.session.SetTrackedRect(r)
		ctl.session.SetCursorExclusion(exclude)
	})
}

func (ctl *Controller) handleFocus(c *WsViewConn, data []byte) {
	var msg struct {
		Focused bool `json:"focused"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad focus payload")
		return
	}
	ctl.post(c, func() { ctl.session.SetFocus(msg.Focused) })
}

func (ctl *Controller) handleChat(c *WsViewConn, data []byte) {
	var msg struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Content == "" {
		ctl.sendError(c, "bad chat payload")
		return
	}
	if !ctl.limiter.Allow(c.id) {
		ctl.sendError(c, "chat rate limited")
		return
	}
	ctl.post(c, func() {
		ok := ctl.session.SendChat(msg.Content)
		ctl.sendJSON(c, map[string]any{"type": "chat_result", "ok": ok})
	})
}

func (ctl *Controller) post(c *WsViewConn, fn func()) {
	if err := ctl.poster.Post(fn); err != nil {
		log.Warn().Err(err).Str("module", "adapters.view").Str("client", c.id).Msg("loop busy")
		ctl.sendError(c, "busy")
	}
}

func (ctl *Controller) sendError(c *WsViewConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

func (ctl *Controller) sendJSON(c *WsViewConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.view").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
