package cursor

import (
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/protocol"
)

// Indicator renders the peer's pointer onto the local view.
type Indicator struct {
	view    core.ViewSink
	rect    Rect
	visible bool
	pos     Point
}

func NewIndicator(view core.ViewSink) *Indicator {
	return &Indicator{view: view, rect: UnitRect}
}

// SetRect sets the view area the peer's normalized coordinates map onto.
func (i *Indicator) SetRect(r Rect) {
	if r.Empty() {
		r = UnitRect
	}
	i.rect = r
}

// Apply reports whether msg was a cursor message.
func (i *Indicator) Apply(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.CursorShow:
		i.pos = Denormalize(i.rect, m.X, m.Y)
		i.visible = true
		i.view.CursorMoved(i.pos.X, i.pos.Y)
	case protocol.CursorHide:
		i.Hide()
	default:
		return false
	}
	return true
}

// Hide clears the indicator if it is showing.
func (i *Indicator) Hide() {
	if !i.visible {
		return
	}
	i.visible = false
	i.view.CursorHidden()
}

// Visible returns the last drawn position while the peer pointer is shown.
func (i *Indicator) Visible() (Point, bool) { return i.pos, i.visible }
