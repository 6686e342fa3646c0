package view

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickClient
)

// Policy decides what happens to a view client whose send buffer is full.
type Policy interface {
	OnBackPressure(clientID string, slowStreak int) BackpressureAction
}

// SimplePolicy drops frames for a while and kicks clients that never catch up.
type SimplePolicy struct {
	MaxStreak int
}

func (p SimplePolicy) OnBackPressure(_ string, slowStreak int) BackpressureAction {
	limit := p.MaxStreak
	if limit <= 0 {
		limit = 64
	}
	if slowStreak >= limit {
		return KickClient
	}
	return DropFrame
}
