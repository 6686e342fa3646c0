package cursor

import "sync"

// Frame is the pointer state observed over one tick.
type Frame struct {
	Pos      Point
	Down     bool
	Pressed  bool // a press happened since the previous frame
	Released bool // a release happened since the previous frame
}

// Input accumulates pointer events between ticks so that a press and release
// landing inside one tick still reach the streamer.
type Input struct {
	mu       sync.Mutex
	pos      Point
	down     bool
	pressed  bool
	released bool
}

func (in *Input) Move(p Point) {
	in.mu.Lock()
	in.pos = p
	in.mu.Unlock()
}

func (in *Input) Press(p Point) {
	in.mu.Lock()
	in.pos = p
	in.down = true
	in.pressed = true
	in.mu.Unlock()
}

func (in *Input) Release(p Point) {
	in.mu.Lock()
	in.pos = p
	in.down = false
	in.released = true
	in.mu.Unlock()
}

// Take returns the current frame and clears the edges.
func (in *Input) Take() Frame {
	in.mu.Lock()
	defer in.mu.Unlock()
	f := Frame{Pos: in.pos, Down: in.down, Pressed: in.pressed, Released: in.released}
	in.pressed, in.released = false, false
	return f
}
