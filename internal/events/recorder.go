package events

import (
	"context"
	"sync"
)

// Recorded is one captured event.
type Recorded struct {
	Key   string
	Event any
}

// Recorder keeps published events in memory; used in tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Publish(_ context.Context, key string, event any) error {
	r.mu.Lock()
	r.events = append(r.events, Recorded{Key: key, Event: event})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Keys returns the routing keys in publish order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i, e := range r.events {
		keys[i] = e.Key
	}
	return keys
}
