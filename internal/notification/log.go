package notification

import (
	"sync"
	"time"
)

// Entry is one real-time message recorded for observability
type Entry struct {
	Type       string
	Message    string
	EntityType string
	ReceivedAt time.Time
}

// Log keeps received entries most-recent-first. A capacity of zero means
// unbounded; otherwise the oldest entries are dropped.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

func NewLog(capacity int) *Log {
	if capacity < 0 {
		capacity = 0
	}
	return &Log{capacity: capacity}
}

// Append records e as the newest entry
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, Entry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e
	if l.capacity > 0 && len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Entries returns a copy, newest first
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
