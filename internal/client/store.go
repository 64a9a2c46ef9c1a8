// Package client holds the reactive state of one event subscription and ties
// registering it to a consumer's mount and unmount.
package client

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// Binding fixes what a store subscribes to. It is chosen once, at creation.
type Binding struct {
	Filter   string   `json:"filter" yaml:"filter"`
	Category string   `json:"category" yaml:"category"`
	Event    string   `json:"event" yaml:"event"`
	Actions  []string `json:"actions" yaml:"actions"`
	Where    string   `json:"where,omitempty" yaml:"where,omitempty"`
}

// Spec converts b to a receiver spec.
func (b Binding) Spec() receiver.Spec {
	return receiver.Spec{
		Filter:   b.Filter,
		Category: b.Category,
		Actions:  b.Actions,
		Event:    b.Event,
		Where:    b.Where,
		Source:   "client",
	}
}

// Broadcaster is the outbound path used by Store.SendBroadcast.
type Broadcaster interface {
	Send(ctx context.Context, action, key, value, category string) (*payload.Payload, error)
}

// State is a snapshot of a store. Event is nil until data arrives and after
// Clear. Timestamp is the epoch millis of the last SetData.
type State struct {
	Event      *payload.Event  `json:"event"`
	Timestamp  int64           `json:"timestamp"`
	Handle     receiver.Handle `json:"handle"`
	Registered bool            `json:"registered"`
}

// Data returns the delivered fields, or nil.
func (s State) Data() map[string]string {
	if s.Event == nil {
		return nil
	}
	return maps.Clone(s.Event.Fields)
}

// Store is the state holder for one binding.
type Store struct {
	binding Binding
	out     Broadcaster
	now     func() time.Time

	mu       sync.Mutex
	state    State
	watchers map[int]chan State
	nextW    int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty, unregistered store.
func NewStore(b Binding, out Broadcaster, opts ...StoreOption) *Store {
	s := &Store{
		binding:  b,
		out:      out,
		now:      time.Now,
		watchers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Binding() Binding { return s.binding }

// SetData stores ev unless it is the very same event already held. The
// timestamp advances on every call either way.
func (s *Store) SetData(ev *payload.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Event != ev {
		s.state.Event = ev
	}
	s.state.Timestamp = s.now().UnixMilli()
	s.notify()
}

// Clear is SetData(nil).
func (s *Store) Clear() { s.SetData(nil) }

// Event returns the last delivered event, or nil.
func (s *Store) Event() *payload.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Event
}

// Data returns the last delivered fields, or nil.
func (s *Store) Data() map[string]string { return s.Snapshot().Data() }

// Timestamp returns the epoch millis of the last SetData, 0 if never called.
func (s *Store) Timestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Timestamp
}

// Handle returns the receiver handle and whether one is held.
func (s *Store) Handle() (receiver.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Handle, s.state.Registered
}

func (s *Store) SetReceiverHandle(h receiver.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Handle = h
	s.state.Registered = true
	s.notify()
}

func (s *Store) ClearReceiverHandle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Handle = 0
	s.state.Registered = false
	s.notify()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch returns a feed of state changes and a cancel func. A slow reader
// only ever sees the latest state.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
			close(ch)
		})
	}
}

// notify must be called with mu held.
func (s *Store) notify() {
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.state:
		default:
		}
	}
}

// SendBroadcast emits {key: message} on the store's filter and category,
// whether or not the store is registered.
func (s *Store) SendBroadcast(ctx context.Context, message, key string) error {
	_, err := s.out.Send(ctx, s.binding.Filter, key, message, s.binding.Category)
	return err
}
