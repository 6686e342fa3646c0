package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Tutor/internal/adapters/view"
	"github.com/dkeye/Tutor/internal/config"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/dkeye/Tutor/internal/loop"
	"github.com/dkeye/Tutor/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session is the orchestrator surface exposed over REST. Calls are made on
// the update loop.
type Session interface {
	Snapshot() core.SessionSnapshot
	ChatEntries() []core.ChatEntry
	SendChat(content string) bool
	Join(p domain.Purpose) error
	Leave(p domain.Purpose) error
	LeaveAll()
}

const callTimeout = 2 * time.Second

func genClientToken() string {
	return uuid.NewString()
}

const (
	sessionName     = "TutorSessions"
	clientTokenKey  = "client_token"
	sessionLifetime = 3600 * 24 * 7
)

// ClientTokenMiddleware keeps a per-browser id in the cookie session and
// exposes it as "client_token" on the gin context.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, sess Session, poster core.Poster, views *view.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: sessionLifetime, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{sess: sess, poster: poster}
	api := r.Group("/api")
	if views != nil {
		api.GET("/ws/view", func(c *gin.Context) {
			views.HandleView(ctx, c)
		})
	}
	api.GET("/state", h.state)
	api.GET("/chat", h.chatLog)
	api.POST("/chat", h.sendChat)
	api.POST("/join/:purpose", h.join)
	api.POST("/leave/:purpose", h.leave)
	api.POST("/leave", h.leaveAll)

	return r
}

type handlers struct {
	sess   Session
	poster core.Poster
}

type chatRequest struct {
	Content string `json:"content"`
}

func call[T any](c *gin.Context, h *handlers, fn func() T) (T, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), callTimeout)
	defer cancel()
	v, err := loop.Call(ctx, h.poster, fn)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("loop call")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session busy"})
		return v, false
	}
	return v, true
}

func (h *handlers) state(c *gin.Context) {
	snap, ok := call(c, h, h.sess.Snapshot)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) chatLog(c *gin.Context) {
	entries, ok := call(c, h, h.sess.ChatEntries)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

func (h *handlers) sendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid content"})
		return
	}
	sent, ok := call(c, h, func() bool { return h.sess.SendChat(req.Content) })
	if !ok {
		return
	}
	if !sent {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) join(c *gin.Context) {
	p, valid := domain.ParsePurpose(c.Param("purpose"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown purpose"})
		return
	}
	err, ok := call(c, h, func() error { return h.sess.Join(p) })
	if !ok {
		return
	}
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"purpose": p.String()})
}

func (h *handlers) leave(c *gin.Context) {
	p, valid := domain.ParsePurpose(c.Param("purpose"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown purpose"})
		return
	}
	err, ok := call(c, h, func() error { return h.sess.Leave(p) })
	if !ok {
		return
	}
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"purpose": p.String()})
}

func (h *handlers) leaveAll(c *gin.Context) {
	if _, ok := call(c, h, func() struct{} { h.sess.LeaveAll(); return struct{}{} }); !ok {
		return
	}
	c.Status(http.StatusAccepted)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotInitialized), errors.Is(err, domain.ErrPrimaryNotJoined):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPurposeNotConfigured), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJoinFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
