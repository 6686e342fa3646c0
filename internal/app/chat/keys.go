// Package chat sends and receives deduplicated chat lines over the control channel.
package chat

import (
	"sync"
	"time"
)

// KeySource hands out strictly increasing keys seeded from the wall clock,
// so keys stay unique across restarts of the same sender.
type KeySource struct {
	mu   sync.Mutex
	last int64
}

func (k *KeySource) Next(now time.Time) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := now.UnixMicro()
	if key <= k.last {
		key = k.last + 1
	}
	k.last = key
	return key
}
