// Package events collects the audit log emitted by the payments engine.
package events

import (
	"sync"

	"github.com/vitwit/payments/types"
)

// Sink receives events after the operation that produced them committed.
type Sink interface {
	Emit(e types.Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e types.Event)

func (f SinkFunc) Emit(e types.Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(types.Event) {})

// Log is an append-only in-memory event log.
type Log struct {
	mu     sync.RWMutex
	events []types.Event
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) Emit(e types.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// All returns a copy of every event in emission order.
func (l *Log) All() []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]types.Event(nil), l.events...)
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Last returns the most recent event.
func (l *Log) Last() (types.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return types.Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Kinds returns the kind of every event in emission order.
func (l *Log) Kinds() []types.EventKind {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

// ForPayment returns the events of payment id in emission order.
func (l *Log) ForPayment(id types.PaymentID) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.Event
	for _, e := range l.events {
		if e.PaymentID == id {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans each event out to every sink.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e types.Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}
