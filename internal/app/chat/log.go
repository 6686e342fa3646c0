package chat

import (
	"sync"

	"github.com/dkeye/Tutor/internal/protocol"
)

// Log is an append-only chat history in receipt order.
type Log struct {
	mu      sync.RWMutex
	entries []protocol.Chat
	keys    map[int64]struct{}
}

func NewLog() *Log {
	return &Log{keys: make(map[int64]struct{})}
}

// Append stores m unless its key is already present.
func (l *Log) Append(m protocol.Chat) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.keys[m.Key]; dup {
		return false
	}
	l.keys[m.Key] = struct{}{}
	l.entries = append(l.entries, m)
	return true
}

// Entries returns a copy in receipt order.
func (l *Log) Entries() []protocol.Chat {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]protocol.Chat, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
