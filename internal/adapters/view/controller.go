package view

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Tutor/internal/app/cursor"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Session is the part of the orchestrator the view drives. Every call is made
// on the update loop.
type Session interface {
	Snapshot() core.SessionSnapshot
	ChatEntries() []core.ChatEntry
	SendChat(content string) bool
	SetTrackedRect(r cursor.Rect)
	SetCursorExclusion(r cursor.Rect)
	SetFocus(focused bool)
}

// Pointer receives raw pointer input; it is safe to call from any goroutine.
type Pointer interface {
	Move(p cursor.Point)
	Press(p cursor.Point)
	Release(p cursor.Point)
}

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendBuffer   int
	ChatLimit    int
	ChatInterval time.Duration
}

type Controller struct {
	hub     *Hub
	session Session
	pointer Pointer
	poster  core.Poster
	limiter *RateLimiter
	opts    Options
}

func NewController(hub *Hub, session Session, pointer Pointer, poster core.Poster, opts Options) *Controller {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	if opts.ChatLimit <= 0 {
		opts.ChatLimit = 5
	}
	if opts.ChatInterval <= 0 {
		opts.ChatInterval = time.Second
	}
	return &Controller{
		hub:     hub,
		session: session,
		pointer: pointer,
		poster:  poster,
		limiter: NewRateLimiter(opts.ChatLimit, opts.ChatInterval),
		opts:    opts,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleView upgrades the request and attaches a view client to the hub.
func (ctl *Controller) HandleView(ctx context.Context, c *gin.Context) {
	id := c.GetString("client_token")
	if id == "" {
		id = c.ClientIP()
	}
	log.Info().Str("module", "adapters.view").Str("client", id).Msg("new view connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.view").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := newWsViewConn(id, ws, ctl.opts.SendBuffer)
	ctl.hub.add(conn)
	ctl.sendState(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}

func (ctl *Controller) sendState(c *WsViewConn) {
	err := ctl.poster.Post(func() {
		ctl.sendJSON(c, map[string]any{
			"type":    "state",
			"session": ctl.session.Snapshot(),
			"chat":    ctl.session.ChatEntries(),
		})
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.view").Str("client", c.id).Msg("state snapshot not queued")
	}
}
