package loop

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultMailboxSize = 1024

// TickFunc is called once per tick after the mailbox has been drained.
type TickFunc func(now time.Time)

// Loop serializes closures posted from any goroutine onto one goroutine.
type Loop struct {
	mailbox *Queue[func()]
	period  time.Duration
	onTick  TickFunc
}

// New creates a loop ticking rate times per second.
func New(rate float64, mailboxSize int, onTick TickFunc) *Loop {
	if rate <= 0 {
		rate = 60
	}
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &Loop{
		mailbox: NewQueue[func()](mailboxSize),
		period:  time.Duration(float64(time.Second) / rate),
		onTick:  onTick,
	}
}

// Post schedules fn for the next tick.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	if err := l.mailbox.TryPush(fn); err != nil {
		log.Warn().Str("module", "loop").Int("pending", l.mailbox.Len()).Msg("mailbox full, dropping work")
		return err
	}
	return nil
}

// Step runs one iteration: pending closures first, then the tick handler.
func (l *Loop) Step(now time.Time) {
	for _, fn := range l.mailbox.Drain() {
		fn()
	}
	if l.onTick != nil {
		l.onTick(now)
	}
}

// Run ticks until ctx is done. Work still queued at cancellation is run once
// more so teardown posted during shutdown is not lost.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	log.Info().Str("module", "loop").Dur("period", l.period).Msg("update loop started")
	for {
		select {
		case <-ctx.Done():
			for _, fn := range l.mailbox.Drain() {
				fn()
			}
			log.Info().Str("module", "loop").Msg("update loop stopped")
			return
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}
