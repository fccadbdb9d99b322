package source

import (
	"context"
	"sort"
	"sync"

	"github.com/openvault/recur/internal/event"
)

// Log is an append-only in-memory event log with replay-from-cursor reads.
//
// Append is safe from any goroutine. Next scans for the first event beyond
// the given cursor, so a reader can resume from any position, including
// positions it has already consumed. That is how at-least-once redelivery
// is exercised in tests.
//
// The signal channel is buffered with size 1: multiple appends coalesce
// into one wakeup, and waiting readers recheck the log each time.
type Log struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
	signal chan struct{}
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{signal: make(chan struct{}, 1)}
}

// Append adds an event to the log. Events must arrive in strictly
// increasing (seq, subIndex) order; out-of-order appends panic, because a
// disordered authoritative log is unrecoverable corruption, not a runtime
// condition.
func (l *Log) Append(ev event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		panic("source: append to closed log")
	}
	if n := len(l.events); n > 0 && !l.events[n-1].Cursor().Before(ev.Cursor()) {
		panic("source: out-of-order append " + ev.Cursor().String())
	}
	l.events = append(l.events, ev)

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Close marks the log complete. Pending and future Next calls drain the
// remaining events, then return ErrClosed.
func (l *Log) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of appended events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot returns a copy of the full log, for tests and the simulator.
func (l *Log) Snapshot() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Next returns the first event strictly beyond after, blocking until one is
// appended, the log is closed, or ctx is cancelled.
func (l *Log) Next(ctx context.Context, after event.Cursor) (event.Event, error) {
	for {
		l.mu.Lock()
		i := sort.Search(len(l.events), func(i int) bool {
			return after.Before(l.events[i].Cursor())
		})
		if i < len(l.events) {
			ev := l.events[i]
			l.mu.Unlock()
			return ev, nil
		}
		closed := l.closed
		l.mu.Unlock()

		if closed {
			return event.Event{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		case <-l.signal:
		}
	}
}
