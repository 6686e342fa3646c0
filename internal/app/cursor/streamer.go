package cursor

import (
	"time"

	"github.com/dkeye/Tutor/internal/protocol"
	"github.com/rs/zerolog/log"
)

const DefaultRate = 30.0

// Sender delivers a control message to the peer.
type Sender interface {
	SendControl(msg protocol.Message) error
}

// Streamer turns a press-drag-release gesture inside the tracked rectangle
// into rate-limited CursorShow messages closed by exactly one CursorHide.
type Streamer struct {
	send     Sender
	interval time.Duration

	rect    Rect
	exclude Rect

	streaming bool
	lastShow  time.Time
}

func NewStreamer(rate float64, send Sender) *Streamer {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Streamer{
		send:     send,
		interval: time.Duration(float64(time.Second) / rate),
	}
}

// SetRect replaces the tracked rectangle.
func (s *Streamer) SetRect(r Rect) { s.rect = r }

// SetExclusion sets an area inside the rectangle where a press does not start
// a gesture. An empty rect disables it.
func (s *Streamer) SetExclusion(r Rect) { s.exclude = r }

func (s *Streamer) Rect() Rect              { return s.rect }
func (s *Streamer) Streaming() bool         { return s.streaming }
func (s *Streamer) Interval() time.Duration { return s.interval }

// Tick consumes one frame. Late ticks are not compensated.
func (s *Streamer) Tick(now time.Time, f Frame) {
	if s.streaming && (f.Released || !f.Down || !s.rect.Contains(f.Pos)) {
		s.hide()
		if !f.Pressed || !f.Down {
			return
		}
	}
	if !s.streaming {
		if !f.Pressed || !s.startsGesture(f.Pos) {
			return
		}
		s.streaming = true
	}
	s.show(now, f.Pos)
	if !f.Down {
		s.hide()
	}
}

// Stop ends an ongoing gesture, e.g. on focus loss or pause.
func (s *Streamer) Stop() {
	if s.streaming {
		s.hide()
	}
}

func (s *Streamer) startsGesture(p Point) bool {
	return s.rect.Contains(p) && !s.exclude.Contains(p)
}

func (s *Streamer) show(now time.Time, p Point) {
	if !s.lastShow.IsZero() && now.Sub(s.lastShow) < s.interval {
		return
	}
	s.lastShow = now
	x, y := Normalize(s.rect, p)
	if err := s.send.SendControl(protocol.CursorShow{X: x, Y: y}); err != nil {
		log.Debug().Err(err).Str("module", "app.cursor").Msg("cursor show not sent")
	}
}

func (s *Streamer) hide() {
	s.streaming = false
	if err := s.send.SendControl(protocol.CursorHide{}); err != nil {
		log.Warn().Err(err).Str("module", "app.cursor").Msg("cursor hide not sent")
	}
}
