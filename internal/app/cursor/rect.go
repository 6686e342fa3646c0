// Package cursor streams a local pointer gesture and renders the remote one.
package cursor

// Point is a position in view pixels, y growing downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned area in view pixels anchored at its top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// UnitRect maps normalized coordinates onto themselves.
var UnitRect = Rect{W: 1, H: 1}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains is inclusive on every edge.
func (r Rect) Contains(p Point) bool {
	if r.Empty() {
		return false
	}
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// OriginConvention fixes where (0,0) lies in normalized space.
type OriginConvention int

const (
	OriginTopLeft OriginConvention = iota
	OriginCenter
)

// Origin is shared by sender and receiver. Changing it breaks interop with peers.
const Origin = OriginTopLeft

// Normalize maps p inside r to [0,1]x[0,1].
func Normalize(r Rect, p Point) (x, y float64) {
	if r.Empty() {
		return 0, 0
	}
	x = clamp01((p.X - r.X) / r.W)
	y = clamp01((p.Y - r.Y) / r.H)
	if Origin == OriginCenter {
		x, y = x-0.5, y-0.5
	}
	return x, y
}

// Denormalize is the inverse of Normalize.
func Denormalize(r Rect, x, y float64) Point {
	if Origin == OriginCenter {
		x, y = x+0.5, y+0.5
	}
	return Point{X: r.X + clamp01(x)*r.W, Y: r.Y + clamp01(y)*r.H}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
