// Package memlog holds the listener's in-memory notification log: an
// append-only, arrival-ordered buffer that lives and dies with the
// process. Nothing in it survives a restart.
package memlog

import (
	"sync"
	"time"

	"github.com/subrelay/subscription-relay/internal/domain"
)

type Entry struct {
	ReceivedAt   time.Time           `json:"received_at"`
	Notification domain.Notification `json:"notification"`
}

// Log is safe for concurrent appends, reads, and clears.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

// Append stamps the notification with the current time and adds it to
// the end of the log.
func (l *Log) Append(n domain.Notification) Entry {
	entry := Entry{
		ReceivedAt:   time.Now().UTC(),
		Notification: n,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return entry
}

// Tail returns the most recent limit entries in arrival order, oldest of
// the window first. A limit at or below zero returns an empty slice; a
// limit beyond the log size returns everything. The result is a copy.
func (l *Log) Tail(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		return []Entry{}
	}
	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}

	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Clear discards the entire log.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
