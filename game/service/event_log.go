package service

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// DefaultEventLogSize is the number of events a session keeps
const DefaultEventLogSize = 500

// EventLog is a bounded, chronological record of engine events. Once full,
// the oldest events are dropped.
type EventLog struct {
	mu     sync.RWMutex
	events deque.Deque[engine.Event]
	size   int
	total  int
}

// NewEventLog creates a log holding at most size events
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{size: size}
}

// Record appends an event, evicting the oldest one when the log is full
func (l *EventLog) Record(ev engine.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events.Len() == l.size {
		l.events.PopFront()
	}
	l.events.PushBack(ev)
	l.total++
}

// Events returns the retained events, oldest first
func (l *EventLog) Events() []engine.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := make([]engine.Event, l.events.Len())
	for i := range events {
		events[i] = l.events.At(i)
	}
	return events
}

// Len returns the number of retained events
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.events.Len()
}

// Total returns the number of events ever recorded. It is used as a cursor
// for Since.
func (l *EventLog) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Since returns the retained events recorded after cursor
func (l *EventLog) Since(cursor int) []engine.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.total - cursor
	if n <= 0 {
		return nil
	}
	if n > l.events.Len() {
		n = l.events.Len()
	}
	events := make([]engine.Event, 0, n)
	for i := l.events.Len() - n; i < l.events.Len(); i++ {
		events = append(events, l.events.At(i))
	}
	return events
}
