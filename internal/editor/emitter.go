package editor

import (
	"sync"
	"time"
)

// SnapshotEmitter fans selection snapshots out to subscribed listeners
// with replay-last semantics: a new subscriber is invoked synchronously
// with the latest known snapshot before any further changes. Both
// backends own exactly one emitter; listener sets are never shared
// across instances.
type SnapshotEmitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(SelectionSnapshot)
	last      SelectionSnapshot
	seeded    bool
}

func NewSnapshotEmitter() *SnapshotEmitter {
	return &SnapshotEmitter{listeners: map[int]func(SelectionSnapshot){}}
}

// Seed records the initial snapshot without notifying anyone; used at
// init so the first subscriber has something to replay.
func (e *SnapshotEmitter) Seed(snap SelectionSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.seeded {
		e.last = snap
		e.seeded = true
	}
}

func (e *SnapshotEmitter) Subscribe(listener func(SelectionSnapshot)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = listener
	replay := e.last
	seeded := e.seeded
	e.mu.Unlock()

	if seeded {
		listener(replay)
	}
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Emit publishes snap to every listener. ChangedAt is clamped so
// emissions never move backwards in time.
func (e *SnapshotEmitter) Emit(snap SelectionSnapshot) {
	e.mu.Lock()
	if e.seeded && snap.ChangedAt.Before(e.last.ChangedAt) {
		snap.ChangedAt = e.last.ChangedAt
	}
	e.last = snap
	e.seeded = true
	targets := make([]func(SelectionSnapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		targets = append(targets, fn)
	}
	e.mu.Unlock()

	for _, fn := range targets {
		fn(snap)
	}
}

// Latest returns the last emitted snapshot, if any.
func (e *SnapshotEmitter) Latest() (SelectionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.seeded
}

// Clear drops every listener; used on teardown.
func (e *SnapshotEmitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = map[int]func(SelectionSnapshot){}
}

// SnapshotFor classifies text into a snapshot stamped with the current
// time.
func SnapshotFor(text string) SelectionSnapshot {
	selType := SelectionNone
	if text != "" {
		selType = SelectionRange
	}
	return SelectionSnapshot{Text: text, SelectionType: selType, ChangedAt: time.Now()}
}
