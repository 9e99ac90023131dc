// Package events is an observable bus for task lifecycle notifications: the
// dispatch loop publishes a Event every time a task's status changes, and
// any number of taps can observe the stream without coupling to the
// registry itself. cmd/pueued registers one tap at startup to emit a
// structured log line per event; more can be added (an HTTP SSE/websocket
// surface is the obvious next one) without touching dispatch.go.
//
// Grounded on the teacher's internal/bus/bus.go: identical non-blocking,
// drop-on-full fan-out shape, generalized from a typed pub/sub keyed by
// agent MessageType to a single event kind keyed by task id.
package events

import (
	"log/slog"
	"sync"

	"pueued/internal/types"
)

const tapBufSize = 256

// Kind identifies what changed about a task.
type Kind string

const (
	KindStatusChanged Kind = "status_changed"
	KindEnqueued      Kind = "enqueued"
)

// Event is one published notification.
type Event struct {
	Kind   Kind
	TaskId int
	Status types.Status
}

// Bus fans out Events to every registered tap.
type Bus struct {
	mu   sync.RWMutex
	taps []chan Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Publish fans evt out to every tap. Non-blocking: a full tap channel drops
// the event with a warning rather than stalling the dispatch loop that
// calls Publish.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range taps {
		select {
		case ch <- evt:
		default:
			slog.Warn("events: tap channel full, dropping event", "kind", evt.Kind, "task_id", evt.TaskId)
		}
	}
}

// NewTap registers and returns a new read-only tap channel. Each caller gets
// an independent channel that receives every event published after it was
// created.
func (b *Bus) NewTap() <-chan Event {
	ch := make(chan Event, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
