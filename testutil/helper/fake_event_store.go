package helper

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// FakeEventStore is an in-memory eventsim.EventStore.
// It assigns sequential IDs, records the wall-clock time of each insert, and can be told to fail.
type FakeEventStore struct {
	mu           sync.Mutex
	events       []eventsim.Event
	insertedAt   []time.Time
	schemaCalls  int
	closed       bool
	failNext     int
	failWith     error
	failAlways   error
	insertSignal chan eventsim.Event
}

// NewFakeEventStore creates an empty FakeEventStore.
func NewFakeEventStore() *FakeEventStore {
	return &FakeEventStore{}
}

// FailNextInserts makes the next n inserts fail with err.
func (f *FakeEventStore) FailNextInserts(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
	f.failWith = err
}

// FailAllInserts makes every insert fail with err, nil resets it.
func (f *FakeEventStore) FailAllInserts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAlways = err
}

// NotifyInserts returns a channel that receives every successfully inserted event.
// The channel is buffered with the given capacity; inserts block when it is full.
func (f *FakeEventStore) NotifyInserts(capacity int) <-chan eventsim.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertSignal = make(chan eventsim.Event, capacity)

	return f.insertSignal
}

// EnsureSchema implements eventsim.EventStore.
func (f *FakeEventStore) EnsureSchema(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls++

	return nil
}

// Insert implements eventsim.EventStore.
func (f *FakeEventStore) Insert(ctx context.Context, event eventsim.Event) (eventsim.Event, error) {
	if err := ctx.Err(); err != nil {
		return eventsim.Event{}, err
	}

	f.mu.Lock()

	if f.failAlways != nil {
		err := f.failAlways
		f.mu.Unlock()

		return eventsim.Event{}, err
	}

	if f.failNext > 0 {
		f.failNext--
		err := f.failWith
		f.mu.Unlock()

		return eventsim.Event{}, err
	}

	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	f.insertedAt = append(f.insertedAt, time.Now())
	signal := f.insertSignal
	f.mu.Unlock()

	if signal != nil {
		signal <- event
	}

	return event, nil
}

// Count implements eventsim.EventStore.
func (f *FakeEventStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.events)), nil
}

// Close implements eventsim.EventStore.
func (f *FakeEventStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true

	return nil
}

// Events returns a copy of all inserted events.
func (f *FakeEventStore) Events() []eventsim.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.events)
}

// InsertedAt returns the wall-clock times of all successful inserts.
func (f *FakeEventStore) InsertedAt() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.insertedAt)
}

// SchemaCalls returns how often EnsureSchema was called.
func (f *FakeEventStore) SchemaCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.schemaCalls
}

// IsClosed reports whether Close was called.
func (f *FakeEventStore) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// Ensure FakeEventStore implements eventsim.EventStore.
var _ eventsim.EventStore = (*FakeEventStore)(nil)
